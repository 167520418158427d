package main

import "github.com/emiliopalmerini/pennant/internal/cli"

func main() {
	cli.Execute()
}
