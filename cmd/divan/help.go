package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage information to the given writer.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `divan - LDAP connection front end

Usage:
  divan <command> [options]

Commands:
  serve       Start the LDAP server
  passwd      Generate a password hash for the config file
  config      Configuration management
  version     Show version information

Use "divan <command> -h" for more information about a command.
`)
}

// printServeUsage prints the serve command usage.
func printServeUsage(w io.Writer) {
	fmt.Fprint(w, `Start the LDAP server

Usage:
  divan serve [options]

Options:
  -config string
        Path to configuration file
  -address string
        Listen address (overrides config, default ":389")
  -ldaps-address string
        LDAPS listen address (overrides config)
  -log-level string
        Log level: debug, info, warn, error (overrides config)
  -h, -help
        Show this help message
`)
}

// printPasswdUsage prints the passwd command usage.
func printPasswdUsage(w io.Writer) {
	fmt.Fprint(w, `Generate a password hash for the config file

Usage:
  divan passwd [options] <password>

Options:
  -scheme string
        Hash scheme: {CLEARTEXT}, {SHA256}, {SSHA256}, {SHA512},
        {SSHA512}, {BCRYPT} (default "{SSHA256}")
  -h, -help
        Show this help message
`)
}

// printConfigUsage prints the config command usage.
func printConfigUsage(w io.Writer) {
	fmt.Fprint(w, `Configuration management

Usage:
  divan config <subcommand> [options]

Subcommands:
  validate    Check a configuration file for errors
  init        Write an example configuration file
  show        Print the effective configuration

Options:
  -config string
        Path to configuration file
  -h, -help
        Show this help message
`)
}
