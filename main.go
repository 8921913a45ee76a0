// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for Quartermaster.
//
// Usage:
//
//	go run . [flags]
//	./quartermaster [flags]
//
// This launches the Quartermaster CLI. See --help for options.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/opsforge/quartermaster/internal/cli"
)

// version is set at build time using -ldflags, e.g.:
// go build -ldflags "-X main.version=1.2.3"
var version = "dev"

// main is the entrypoint for the Quartermaster CLI.
func main() {
	if os.Getenv("QUARTERMASTER_SHOW_VERSION") == "1" {
		fmt.Fprintf(os.Stderr, "Quartermaster version: %s\n", version)
	}

	if err := cli.Execute(); err != nil {
		log.Printf("Quartermaster CLI error: %v", err)
		os.Exit(1)
	}
}
