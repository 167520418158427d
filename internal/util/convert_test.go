package util

import "testing"

func TestBoolRoundTrip(t *testing.T) {
	if BoolToInt64(true) != 1 || BoolToInt64(false) != 0 {
		t.Error("bool to int64 mapping broken")
	}
	if !Int64ToBool(1) || Int64ToBool(0) {
		t.Error("int64 to bool mapping broken")
	}
	if !Int64ToBool(2) {
		t.Error("any nonzero value is true")
	}
}
