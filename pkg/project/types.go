// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package project implements the project registry, lifecycle manager, and
// per-type handlers: the typed workspaces docbro ingests files, pages, and
// documents into.
package project

import (
	"strings"
	"time"

	"github.com/behemotion/docbro/pkg/config"
	"github.com/google/uuid"
)

// Status is a project's current lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
)

// Project is a named, typed workspace owning its storage, settings, and
// per-project database.
type Project struct {
	ID        uuid.UUID
	Name      string
	Type      config.ProjectType
	Status    Status
	Settings  map[string]any
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

const maxNameLength = 100

// reservedDeviceNames mirrors the Windows reserved device names; checked
// case-insensitively since the registry must be portable across hosts.
var reservedDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

const invalidNameChars = `/\:*?"<>|`

// ValidateName checks a candidate project name:
// non-empty, 1-100 chars, no platform-invalid characters, not a reserved
// device name. Uniqueness is checked by the repository, not here.
func ValidateName(name string) error {
	if name == "" {
		return errNameEmpty
	}
	if len(name) > maxNameLength {
		return errNameTooLong
	}
	if strings.ContainsAny(name, invalidNameChars) {
		return errNameInvalidChars
	}
	if reservedDeviceNames[strings.ToUpper(name)] {
		return errNameReserved
	}
	return nil
}
