// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/behemotion/docbro/pkg/config"
	"github.com/behemotion/docbro/pkg/project"
)

// runProject dispatches the "project" subcommands: create, list, show,
// remove.
func runProject(args []string, globals GlobalFlags) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: docbro project <create|list|show|remove> ...")
		os.Exit(1)
	}

	a, err := newApp()
	if err != nil {
		fatal(err, globals.JSON)
	}
	defer a.Close()

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "create":
		runProjectCreate(a, subArgs, globals)
	case "list":
		runProjectList(a, subArgs, globals)
	case "show":
		runProjectShow(a, subArgs, globals)
	case "remove":
		runProjectRemove(a, subArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "unknown project subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runProjectCreate(a *app, args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("project create", flag.ExitOnError)
	projectType := fs.String("type", string(config.TypeStorage), "Project type: crawling|data|storage")
	settingsFlags := fs.StringArray("set", nil, "Setting override, key=value (repeatable)")
	force := fs.Bool("force", false, "Overwrite an existing project of the same name")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: docbro project create <name> [--type t] [--set k=v ...]")
		os.Exit(1)
	}
	name := fs.Arg(0)

	settings := map[string]any{}
	for _, kv := range *settingsFlags {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "invalid --set value %q, expected key=value\n", kv)
			os.Exit(1)
		}
		settings[k] = v
	}

	proj, err := a.projects.Create(context.Background(), name, config.ProjectType(*projectType), settings, *force)
	if err != nil {
		fatal(err, globals.JSON)
	}
	printProject(proj, globals)
}

func runProjectList(a *app, args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("project list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status")
	projectType := fs.String("type", "", "Filter by type")
	limit := fs.Int("limit", 0, "Maximum results (0 = unlimited)")
	_ = fs.Parse(args)

	projects, err := a.projects.List(project.Status(*status), config.ProjectType(*projectType), *limit)
	if err != nil {
		fatal(err, globals.JSON)
	}
	if globals.JSON {
		out := make([]map[string]any, 0, len(projects))
		for _, p := range projects {
			out = append(out, projectSummary(p))
		}
		encoded, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(encoded))
		return
	}
	for _, p := range projects {
		fmt.Printf("%-24s %-10s %s\n", p.Name, p.Type, p.Status)
	}
}

func runProjectShow(a *app, args []string, globals GlobalFlags) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: docbro project show <name>")
		os.Exit(1)
	}
	proj, err := a.projects.Get(args[0])
	if err != nil {
		fatal(err, globals.JSON)
	}
	printProject(proj, globals)
}

func runProjectRemove(a *app, args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("project remove", flag.ExitOnError)
	backup := fs.Bool("backup", false, "Snapshot the project before removing it")
	force := fs.Bool("force", false, "Continue removal when the backup or handler cleanup fails")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: docbro project remove <name> [--backup] [--force]")
		os.Exit(1)
	}
	if err := a.projects.Remove(context.Background(), fs.Arg(0), *backup, *force); err != nil {
		fatal(err, globals.JSON)
	}
	fmt.Printf("removed project %q\n", fs.Arg(0))
}

func printProject(p *project.Project, globals GlobalFlags) {
	if globals.JSON {
		encoded, _ := json.MarshalIndent(projectSummary(p), "", "  ")
		fmt.Println(string(encoded))
		return
	}
	fmt.Printf("name:    %s\n", p.Name)
	fmt.Printf("type:    %s\n", p.Type)
	fmt.Printf("status:  %s\n", p.Status)
	fmt.Printf("created: %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
}
