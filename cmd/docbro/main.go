// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the docbro CLI for managing ingestion projects
// and driving uploads into them.
//
// Usage:
//
//	docbro serve                   Start the JSON-RPC server over stdio
//	docbro project create <name>   Create a project
//	docbro project list            List projects
//	docbro project remove <name>   Remove a project
//	docbro upload <project> <src>  Upload a source into a project
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the global CLI flags that apply to every command.
type GlobalFlags struct {
	JSON  bool
	Debug bool
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `docbro - project and ingestion manager

Usage:
  docbro <command> [options]

Commands:
  serve                        Start the JSON-RPC server over stdio
  project create <name> [--type crawling|data|storage] [--set k=v ...]
  project list                 List projects
  project show <name>          Show one project's settings summary
  project remove <name> [--backup] [--force]
  upload <project> <source>    Upload a source into a project
                                [--recursive] [--conflict skip|overwrite|rename|backup]
  metrics-addr <addr>          (flag on serve) expose Prometheus /metrics

Global Options:
  --json       Output in JSON format
  --debug      Enable debug logging
  -V, --version

Environment Variables:
  DOCBRO_DATA_DIR     Data directory (default ~/.docbro/data)
  DOCBRO_CONFIG_DIR   Config directory (default ~/.docbro/config)

For detailed command help: docbro <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("docbro version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{JSON: *jsonOutput, Debug: *debug}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "serve":
		runServe(cmdArgs, globals)
	case "project":
		runProject(cmdArgs, globals)
	case "upload":
		runUpload(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
