// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/behemotion/docbro/internal/errors"
)

// backupProject writes a timestamped snapshot directory containing a
// project.json manifest and a recursive copy of the project's data.
func (m *Manager) backupProject(p *Project) error {
	timestamp := nowUTC().Format("20060102_150405")
	dest := m.layout.BackupDir(p.Name, timestamp)

	if err := os.MkdirAll(dest, 0o750); err != nil {
		return errors.NewPermissionError("Cannot create backup", "Failed to create backup directory", "Check directory permissions", err)
	}

	manifest, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.NewInternalError("Cannot create backup", "Failed to encode project manifest", "This is a bug", err)
	}
	if err := os.WriteFile(filepath.Join(dest, "project.json"), manifest, 0o600); err != nil {
		return errors.NewPermissionError("Cannot create backup", "Failed to write project manifest", "Check directory permissions", err)
	}

	src := m.layout.ProjectRoot(p.Name)
	if err := copyTree(src, filepath.Join(dest, "data")); err != nil {
		return errors.NewInternalError("Cannot create backup", "Failed to copy project data", "Check available disk space", err)
	}
	return nil
}

func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		return copyFile(path, target, info)
	})
}

func copyFile(src, dest string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
