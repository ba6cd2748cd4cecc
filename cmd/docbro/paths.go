// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/project"
)

// dataDir resolves the storage root with precedence: DOCBRO_DATA_DIR >
// ~/.docbro/data.
func dataDir() (string, error) {
	if envDir := os.Getenv("DOCBRO_DATA_DIR"); envDir != "" {
		return absPath(envDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternalError(
			"Cannot determine home directory",
			"Operating system did not provide user home directory path",
			"Check your system configuration or set the HOME environment variable",
			err,
		)
	}
	return filepath.Join(home, ".docbro", "data"), nil
}

// configDir resolves the global config root with precedence:
// DOCBRO_CONFIG_DIR > ~/.docbro/config.
func configDir() (string, error) {
	if envDir := os.Getenv("DOCBRO_CONFIG_DIR"); envDir != "" {
		return absPath(envDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternalError(
			"Cannot determine home directory",
			"Operating system did not provide user home directory path",
			"Check your system configuration or set the HOME environment variable",
			err,
		)
	}
	return filepath.Join(home, ".docbro", "config"), nil
}

func layoutFromEnv() (project.Layout, error) {
	dir, err := dataDir()
	if err != nil {
		return project.Layout{}, err
	}
	return project.Layout{DataDir: dir}, nil
}

func absPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
