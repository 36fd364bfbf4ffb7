package main

import (
	"os"

	"github.com/johnnohj/mu2-runtime/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
