package main

import (
	"os"

	"gridtask/cmd/gridtask/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
