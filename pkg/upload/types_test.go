// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_Reliability(t *testing.T) {
	s := &Source{Type: SourceLocal, Location: "/tmp"}
	assert.Equal(t, 1.0, s.Reliability(), "no attempts yet defaults to 1.0")

	s.RecordSuccess()
	s.RecordSuccess()
	s.RecordSuccess()
	s.RecordFailure()
	assert.Equal(t, 0.75, s.Reliability())
	assert.False(t, s.lastAccessed.IsZero())
}

func TestStatus_Cancellable(t *testing.T) {
	cancellable := []Status{StatusInitiated, StatusDownloading, StatusProcessing, StatusRetrying}
	for _, s := range cancellable {
		assert.True(t, s.cancellable(), string(s))
	}
	terminal := []Status{StatusValidating, StatusRejected, StatusComplete, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		assert.False(t, s.cancellable(), string(s))
	}
}

func TestFormatAllowed(t *testing.T) {
	assert.True(t, formatAllowed("txt", nil), "empty list allows everything")
	assert.True(t, formatAllowed("txt", []string{"*"}))
	assert.True(t, formatAllowed("TXT", []string{"txt"}))
	assert.False(t, formatAllowed("exe", []string{"txt", "md"}))
}
