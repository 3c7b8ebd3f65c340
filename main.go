package main

import (
	"os"
	"runtime/debug"

	"github.com/crillab/pledge/cmd"
)

func main() {
	debug.SetGCPercent(300)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
