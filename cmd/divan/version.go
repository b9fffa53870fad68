package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
)

// Version information - these can be set at build time using ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version   = "0.1.0"
	commit    = "unknown"
	buildDate = "unknown"
)

// versionCmd handles the version command.
func versionCmd(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	short := fs.Bool("short", false, "Show only version number")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *short {
		fmt.Println(version)
		return 0
	}

	fmt.Printf("divan version %s\n", version)
	fmt.Printf("  Commit:     %s\n", commit)
	fmt.Printf("  Built:      %s\n", buildDate)
	fmt.Printf("  Go version: %s\n", runtime.Version())
	fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return 0
}
