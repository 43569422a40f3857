package main

import (
	"os"

	"pron-dist/cmd"
	"pron-dist/internal/dist"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(dist.ExitCode(err))
	}
}
