// Copyright 2026 DocBro Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errors defines the user-facing error taxonomy used across docbro:
// a title, a detail line, an actionable suggestion, and an optional
// underlying cause, rendered in color for a terminal and plainly otherwise.
package errors

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Kind classifies a UserError for callers that need to branch on category
// (for example, mapping to a JSON-RPC error code or an exit status).
type Kind string

const (
	KindConfig     Kind = "config"
	KindInput      Kind = "input"
	KindInternal   Kind = "internal"
	KindPermission Kind = "permission"
	KindDatabase   Kind = "database"
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
)

// UserError is an error meant to be shown directly to an operator: a short
// title, a detail sentence explaining what went wrong, and a suggestion for
// how to fix it. Cause, when set, is the underlying error that triggered it.
type UserError struct {
	Kind       Kind
	Title      string
	Detail     string
	Suggestion string
	Cause      error
}

func (e *UserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

func (e *UserError) Unwrap() error { return e.Cause }

func newError(kind Kind, title, detail, suggestion string, cause error) *UserError {
	return &UserError{Kind: kind, Title: title, Detail: detail, Suggestion: suggestion, Cause: cause}
}

func NewConfigError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindConfig, title, detail, suggestion, cause)
}

func NewInputError(title, detail, suggestion string) *UserError {
	return newError(KindInput, title, detail, suggestion, nil)
}

func NewInternalError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindInternal, title, detail, suggestion, cause)
}

func NewPermissionError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindPermission, title, detail, suggestion, cause)
}

func NewDatabaseError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindDatabase, title, detail, suggestion, cause)
}

func NewNetworkError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindNetwork, title, detail, suggestion, cause)
}

func NewAuthError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindAuth, title, detail, suggestion, cause)
}

func NewNotFoundError(title, detail string) *UserError {
	return newError(KindNotFound, title, detail, "", nil)
}

// Format renders the error for display. Color is used when forceColor is
// set or stderr is a terminal: the title is bold red and the suggestion
// cyan. Otherwise plain text is produced.
func (e *UserError) Format(forceColor bool) string {
	useColor := forceColor || isatty.IsTerminal(os.Stderr.Fd())

	title := color.New(color.FgRed, color.Bold)
	hint := color.New(color.FgCyan)
	if useColor {
		title.EnableColor()
		hint.EnableColor()
	} else {
		title.DisableColor()
		hint.DisableColor()
	}

	out := title.Sprintf("✗ %s", e.Title) + "\n  " + e.Detail
	if e.Cause != nil {
		out += fmt.Sprintf("\n  cause: %v", e.Cause)
	}
	if e.Suggestion != "" {
		out += "\n  " + hint.Sprintf("→ %s", e.Suggestion)
	}
	return out
}

// FatalError prints the formatted error to stderr and exits the process.
// exitOnly suppresses the formatted message and exits silently with status 1
// (used where the caller already printed context).
func FatalError(err error, exitOnly bool) {
	if !exitOnly {
		if ue, ok := err.(*UserError); ok {
			fmt.Fprintln(os.Stderr, ue.Format(false))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	os.Exit(1)
}

// As reports whether err is (or wraps) a *UserError and, if so, returns it.
func As(err error) (*UserError, bool) {
	ue, ok := err.(*UserError)
	if ok {
		return ue, true
	}
	type unwrapper interface{ Unwrap() error }
	for u, ok := err.(unwrapper); ok; u, ok = err.(unwrapper) {
		err = u.Unwrap()
		if ue, ok := err.(*UserError); ok {
			return ue, true
		}
	}
	return nil, false
}
