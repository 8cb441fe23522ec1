// resolve identifies Pokemon cards from the command line.
//
// Usage:
//
//	resolve [--local <dir>] [--db <path>] resolve [attributes.json]
//	resolve scan <image>
//	resolve family <set name>
//	resolve correct --set "Base Set" --number 110 [--total 130] [--symbol "..."]
//
// Attributes are read from stdin when no file is given. Without --local the
// Pokemon TCG API is used, configured from the environment (.env supported).
package main

import (
	"fmt"
	"os"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	app := newCLIApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
