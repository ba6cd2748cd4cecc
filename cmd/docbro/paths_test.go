// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"path/filepath"
	"testing"
)

func TestDataDir_Default(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DOCBRO_DATA_DIR", "")

	dir, err := dataDir()
	if err != nil {
		t.Fatalf("dataDir() error = %v", err)
	}
	want := filepath.Join(home, ".docbro", "data")
	if dir != want {
		t.Fatalf("dataDir() = %q, want %q", dir, want)
	}
}

func TestDataDir_EnvOverride(t *testing.T) {
	t.Setenv("DOCBRO_DATA_DIR", "/tmp/custom-docbro")

	dir, err := dataDir()
	if err != nil {
		t.Fatalf("dataDir() error = %v", err)
	}
	if dir != "/tmp/custom-docbro" {
		t.Fatalf("dataDir() = %q, want %q", dir, "/tmp/custom-docbro")
	}
}

func TestConfigDir_EnvOverride(t *testing.T) {
	t.Setenv("DOCBRO_CONFIG_DIR", "/tmp/custom-docbro-config")

	dir, err := configDir()
	if err != nil {
		t.Fatalf("configDir() error = %v", err)
	}
	if dir != "/tmp/custom-docbro-config" {
		t.Fatalf("configDir() = %q, want %q", dir, "/tmp/custom-docbro-config")
	}
}
