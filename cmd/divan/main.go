// Package main provides the entry point for the divan LDAP server CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Args))
}

// run executes the CLI and returns an exit code. Separated from main()
// so tests can call it.
func run(args []string) int {
	if len(args) < 2 {
		printUsage(os.Stdout)
		return 1
	}

	switch args[1] {
	case "serve":
		return serveCmd(args[2:])
	case "passwd":
		return passwdCmd(args[2:])
	case "config":
		return configCmd(args[2:])
	case "version":
		return versionCmd(args[2:])
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[1])
		fmt.Fprintln(os.Stderr, "Run 'divan help' for usage.")
		return 1
	}
}
