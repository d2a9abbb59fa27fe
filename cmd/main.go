/*
Package main is the entry point for the swiftchat command.

It hands control to the cobra command tree in internal/cli, which loads configuration,
initializes the global logger and runs the chosen subcommand until it finishes or the
process receives SIGINT or SIGTERM.
*/
package main

import (
	"os"

	"swiftchat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
