//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Sources builds the CLI and prints the adapter table, a quick check that
// configuration and secrets load.
func Sources() error {
	mg.Deps(Build)
	return sh.RunV("./bin/paperfetch", "sources")
}

// Fetch builds the CLI and downloads the paper named by $PAPER, e.g.
// PAPER=10.1038/nature12373 mage fetch.
func Fetch() error {
	paper := os.Getenv("PAPER")
	if paper == "" {
		return mg.Fatal(2, "PAPER is not set")
	}
	mg.Deps(Build)
	return sh.RunV("./bin/paperfetch", "fetch", "-v", paper)
}
