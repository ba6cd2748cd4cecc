// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError_ErrorIncludesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewNetworkError("Cannot reach server", "Dial failed", "Check the host", cause)
	assert.Contains(t, err.Error(), "Cannot reach server")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cause, err.Unwrap())
}

func TestUserError_KindPerConstructor(t *testing.T) {
	cases := []struct {
		err  *UserError
		kind Kind
	}{
		{NewConfigError("t", "d", "s", nil), KindConfig},
		{NewInputError("t", "d", "s"), KindInput},
		{NewInternalError("t", "d", "s", nil), KindInternal},
		{NewPermissionError("t", "d", "s", nil), KindPermission},
		{NewDatabaseError("t", "d", "s", nil), KindDatabase},
		{NewNetworkError("t", "d", "s", nil), KindNetwork},
		{NewAuthError("t", "d", "s", nil), KindAuth},
		{NewNotFoundError("t", "d"), KindNotFound},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, c.err.Kind)
	}
}

func TestFormat_PlainContainsAllParts(t *testing.T) {
	err := NewConfigError("Bad config", "Key missing", "Add the key", fmt.Errorf("boom"))
	out := err.Format(false)
	assert.Contains(t, out, "Bad config")
	assert.Contains(t, out, "Key missing")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "Add the key")
}

func TestAs_UnwrapsThroughWrapping(t *testing.T) {
	inner := NewInputError("Bad name", "Name is empty", "Provide a name")
	wrapped := fmt.Errorf("creating project: %w", inner)

	ue, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindInput, ue.Kind)

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}
