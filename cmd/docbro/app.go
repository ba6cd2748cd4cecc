// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"log/slog"
	"os"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/config"
	"github.com/behemotion/docbro/pkg/metrics"
	"github.com/behemotion/docbro/pkg/progress"
	"github.com/behemotion/docbro/pkg/project"
	"github.com/behemotion/docbro/pkg/upload"
)

// app bundles the subsystems a docbro command wires together: the project
// registry and lifecycle manager, the upload manager, and the shared
// progress and metrics sinks every command observes operations through.
type app struct {
	layout   project.Layout
	repo     *project.Repository
	factory  *project.HandlerFactory
	resolver *config.Resolver
	projects *project.Manager
	uploads  *upload.Manager
	reporter *progress.Reporter
	metrics  *metrics.Metrics
}

func newApp() (*app, error) {
	layout, err := layoutFromEnv()
	if err != nil {
		return nil, err
	}
	cfgDir, err := configDir()
	if err != nil {
		return nil, err
	}

	repo, err := project.NewRepository(layout)
	if err != nil {
		return nil, err
	}
	factory, err := project.NewHandlerFactory(repo, layout)
	if err != nil {
		repo.Close()
		return nil, err
	}
	resolver, err := config.NewResolver(cfgDir)
	if err != nil {
		repo.Close()
		return nil, err
	}

	projects := project.NewManager(repo, factory, layout, resolver)
	reporter := progress.NewReporter()
	m := metrics.NewMetrics()
	uploads := upload.NewManager(upload.NewRegistry(), projects, repo, layout, factory,
		upload.Chain(reporter.ObserveUpload(), m.ObserveUpload()))

	return &app{
		layout: layout, repo: repo, factory: factory, resolver: resolver,
		projects: projects, uploads: uploads, reporter: reporter, metrics: m,
	}, nil
}

func (a *app) Close() {
	if a.repo != nil {
		a.repo.Close()
	}
}

// fatal renders err for the terminal and exits; any non-UserError is
// wrapped as an internal error first so the CLI never prints a bare Go
// error to the user. With jsonOutput set nothing is printed; the process
// only exits with status 1.
func fatal(err error, jsonOutput bool) {
	if _, ok := err.(*errors.UserError); !ok {
		err = errors.NewInternalError("Command failed", err.Error(), "Check the error detail above", err)
	}
	errors.FatalError(err, jsonOutput)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
