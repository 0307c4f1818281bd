package main

import (
	"os"

	"github.com/solatis/linewarden/cmd/linewarden/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
