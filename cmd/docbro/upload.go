// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/behemotion/docbro/pkg/upload"
)

// runUpload drives a single upload operation to completion from the CLI,
// polling the operation snapshot until it reaches a terminal status.
func runUpload(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	sourceType := fs.String("source-type", string(upload.SourceLocal), "Source type: local|ftp|sftp|smb|http|https")
	username := fs.String("username", "", "Source username")
	password := fs.String("password", "", "Source password")
	key := fs.String("key", "", "Source key (SFTP private key or HTTP bearer token)")
	recursive := fs.Bool("recursive", true, "Recurse into subdirectories")
	exclude := fs.StringArray("exclude", nil, "Exclude glob pattern (repeatable)")
	verifySSL := fs.Bool("verify-ssl", true, "Verify TLS certificates for https sources")
	conflict := fs.String("conflict", string(upload.ConflictRename), "Conflict policy: skip|overwrite|rename|backup|ask")
	dryRun := fs.Bool("dry-run", false, "Enumerate and validate without fetching")
	_ = fs.Parse(args)

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: docbro upload [flags] <project> <source-location>")
		os.Exit(1)
	}
	projectName, location := fs.Arg(0), fs.Arg(1)

	a, err := newApp()
	if err != nil {
		fatal(err, globals.JSON)
	}
	defer a.Close()

	var creds *upload.Credentials
	if *username != "" || *password != "" || *key != "" {
		creds = &upload.Credentials{Username: *username, Password: *password, Key: *key}
	}
	source := &upload.Source{
		Type: upload.SourceType(*sourceType), Location: location, Credentials: creds,
		Recursive: *recursive, ExcludePatterns: *exclude, VerifySSL: *verifySSL,
	}

	op, err := a.uploads.Start(context.Background(), projectName, source, upload.ConflictPolicy(*conflict), *dryRun)
	if err != nil {
		fatal(err, globals.JSON)
	}

	for {
		status := op.Status()
		if isTerminalStatus(status) {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	snap := op.Snapshot()
	if globals.JSON {
		encoded, _ := json.MarshalIndent(snapshotResult(snap), "", "  ")
		fmt.Println(string(encoded))
	} else {
		fmt.Printf("status: %s\n", snap.Status)
		fmt.Printf("files:  %d/%d succeeded (%d failed, %d skipped)\n", snap.FilesSucceeded, snap.FilesTotal, snap.FilesFailed, snap.FilesSkipped)
		if len(snap.Errors) > 0 {
			fmt.Println("errors:")
			for _, e := range snap.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
	}

	if snap.Status != upload.StatusComplete {
		os.Exit(1)
	}
}

func isTerminalStatus(s upload.Status) bool {
	switch s {
	case upload.StatusComplete, upload.StatusFailed, upload.StatusCancelled, upload.StatusRejected:
		return true
	default:
		return false
	}
}
