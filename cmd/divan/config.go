package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/KilimcininKorOglu/divan/internal/config"
)

// exampleConfig is written by "config init" as a starting point.
const exampleConfig = `# divan server configuration

[server]
address = ":389"
# ldaps_address = ":636"
max_connections = 4096
read_timeout = "5m"
write_timeout = "30s"

# [tls]
# cert_file = "/etc/divan/server.crt"
# key_file = "/etc/divan/server.key"
# min_version = "1.2"

[auth]
allow_anonymous = true
require_tls_for_bind = false

# Generate password hashes with: divan passwd <password>
# [[auth.users]]
# dn = "cn=admin,dc=example,dc=com"
# password = "{SSHA256}..."

[logging]
level = "info"
format = "json"
output = "stderr"
`

// configCmd handles the config command and its subcommands.
func configCmd(args []string) int {
	if len(args) < 1 {
		printConfigUsage(os.Stderr)
		return 1
	}

	switch args[0] {
	case "validate":
		return configValidateCmd(args[1:])
	case "init":
		return configInitCmd(args[1:])
	case "show":
		return configShowCmd(args[1:])
	case "-h", "-help", "--help", "help":
		printConfigUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 1
	}
}

func configValidateCmd(args []string) int {
	fs := flag.NewFlagSet("config validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configFile := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		return 1
	}

	if _, err := config.Load(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("%s: OK\n", *configFile)
	return 0
}

func configInitCmd(args []string) int {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	output := fs.String("output", "divan.toml", "Output file path")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if _, err := os.Stat(*output); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", *output)
		return 1
	}
	if err := os.WriteFile(*output, []byte(exampleConfig), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote %s\n", *output)
	return 0
}

func configShowCmd(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configFile := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
