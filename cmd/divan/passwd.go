package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/KilimcininKorOglu/divan/internal/auth"
)

// passwdCmd handles the passwd command: it prints a stored hash suitable
// for the password field of an [[auth.users]] entry.
func passwdCmd(args []string) int {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { printPasswdUsage(os.Stderr) }

	scheme := fs.String("scheme", auth.SchemeSSHA256, "Hash scheme")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		printPasswdUsage(os.Stderr)
		return 1
	}

	hash, err := auth.HashPassword(fs.Arg(0), *scheme)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
