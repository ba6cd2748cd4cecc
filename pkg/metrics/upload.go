// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"sync"
	"time"

	"github.com/behemotion/docbro/pkg/upload"
)

// ObserveUpload returns an upload.EventFunc that records per-operation
// counters and histograms, composable with pkg/progress's own observer —
// the upload manager accepts exactly one EventFunc, so a caller wanting
// both wires upload.Chain(reporter.ObserveUpload(), metrics.ObserveUpload()).
func (m *Metrics) ObserveUpload() upload.EventFunc {
	var mu sync.Mutex
	seen := make(map[string]struct {
		succeeded, failed, skipped int
		errs                       int
		bytes                      int64
		active                     bool
	})

	return func(op *upload.Operation) {
		snap := op.Snapshot()
		id := snap.ID.String()
		sourceType := "unknown"
		if op.Source != nil {
			sourceType = string(op.Source.Type)
		}

		mu.Lock()
		prev, tracked := seen[id]
		if !tracked {
			m.ActiveOperations.Inc()
		}

		if delta := snap.FilesSucceeded - prev.succeeded; delta > 0 {
			m.FilesProcessed.WithLabelValues(snap.ProjectName, "succeeded").Add(float64(delta))
		}
		if delta := snap.FilesFailed - prev.failed; delta > 0 {
			m.FilesProcessed.WithLabelValues(snap.ProjectName, "failed").Add(float64(delta))
		}
		if delta := snap.FilesSkipped - prev.skipped; delta > 0 {
			m.FilesProcessed.WithLabelValues(snap.ProjectName, "skipped").Add(float64(delta))
		}
		if delta := len(snap.Errors) - prev.errs; delta > 0 {
			m.UploadErrors.WithLabelValues(snap.ProjectName, "upload").Add(float64(delta))
		}
		if delta := snap.BytesProcessed - prev.bytes; delta > 0 {
			m.BytesTransferred.WithLabelValues(snap.ProjectName, sourceType).Add(float64(delta))
		}

		terminal := snap.Status == upload.StatusComplete || snap.Status == upload.StatusFailed ||
			snap.Status == upload.StatusCancelled || snap.Status == upload.StatusRejected
		if terminal && (!tracked || prev.active) {
			m.ActiveOperations.Dec()
			if snap.StartedAt != nil {
				end := time.Now().UTC()
				if snap.CompletedAt != nil {
					end = *snap.CompletedAt
				}
				m.OperationDuration.WithLabelValues(snap.ProjectName, string(snap.Status)).Observe(end.Sub(*snap.StartedAt).Seconds())
			}
		}

		seen[id] = struct {
			succeeded, failed, skipped int
			errs                       int
			bytes                      int64
			active                     bool
		}{snap.FilesSucceeded, snap.FilesFailed, snap.FilesSkipped, len(snap.Errors), snap.BytesProcessed, !terminal}
		mu.Unlock()
	}
}
