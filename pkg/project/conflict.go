// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"fmt"
	"strings"
)

// ResolveRenameConflict returns the smallest-numbered "name_<n>.ext" variant
// of filename that does not already exist in the named storage project,
// so a rename never overwrites an existing file.
func ResolveRenameConflict(repo *Repository, projectName, filename string) (string, error) {
	base, ext := splitExt(filename)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		existing, err := repo.GetStorageFileByFilename(projectName, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
	}
}

func splitExt(filename string) (base, ext string) {
	if idx := strings.LastIndexByte(filename, '.'); idx > 0 {
		return filename[:idx], filename[idx:]
	}
	return filename, ""
}
