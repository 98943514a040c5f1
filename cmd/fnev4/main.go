package main

import (
	"os"

	"github.com/mikaelarth/fnev4/cmd/fnev4/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
