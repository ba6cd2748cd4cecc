// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import "github.com/behemotion/docbro/internal/errors"

var (
	errNameEmpty = errors.NewInputError(
		"Invalid project name",
		"Project name cannot be empty",
		"Provide a name between 1 and 100 characters",
	)
	errNameTooLong = errors.NewInputError(
		"Invalid project name",
		"Project name exceeds 100 characters",
		"Shorten the name to 100 characters or fewer",
	)
	errNameInvalidChars = errors.NewInputError(
		"Invalid project name",
		`Project name contains one of the disallowed characters /\:*?"<>|`,
		"Remove the disallowed characters and try again",
	)
	errNameReserved = errors.NewInputError(
		"Invalid project name",
		"Project name is a reserved device name on some platforms",
		"Choose a different name",
	)
)

func errNotFound(kind, name string) *errors.UserError {
	return errors.NewNotFoundError(
		kind+" not found",
		"No "+kind+" named \""+name+"\" exists",
	)
}

func errAlreadyExists(name string) *errors.UserError {
	return errors.NewInputError(
		"Project already exists",
		"A project named \""+name+"\" is already registered",
		"Choose a different name or pass force=true to overwrite",
	)
}
