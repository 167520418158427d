package util

// BoolToInt64 converts a bool to int64 (true=1, false=0).
// SQLite has no native boolean type.
func BoolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Int64ToBool converts a stored SQLite integer flag back to a bool.
func Int64ToBool(i int64) bool {
	return i != 0
}
