// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package progress

import (
	"fmt"
	"sync"

	"github.com/behemotion/docbro/pkg/upload"
)

// ObserveUpload returns an upload.EventFunc that mirrors an Operation's
// state into the reporter under its operation id, letting the RPC and CLI
// layers poll progress through one shared mechanism regardless of which
// subsystem produced it.
func (r *Reporter) ObserveUpload() upload.EventFunc {
	var mu sync.Mutex
	seenErrors := make(map[string]int)

	return func(op *upload.Operation) {
		snap := op.Snapshot()
		id := snap.ID.String()
		description := fmt.Sprintf("upload into project %q", snap.ProjectName)

		r.mu.Lock()
		_, exists := r.records[id]
		r.mu.Unlock()
		if !exists {
			r.Start(id, description, snap.BytesTotal)
		}

		r.Update(Update{OperationID: id, Stage: string(snap.Status), Current: snap.BytesProcessed, Total: snap.BytesTotal})

		mu.Lock()
		for _, e := range snap.Errors[seenErrors[id]:] {
			r.Fail(id, e)
		}
		seenErrors[id] = len(snap.Errors)
		mu.Unlock()

		switch snap.Status {
		case upload.StatusComplete:
			r.Complete(id, true, fmt.Sprintf("%d/%d files succeeded", snap.FilesSucceeded, snap.FilesTotal))
		case upload.StatusFailed:
			r.Complete(id, false, fmt.Sprintf("%d/%d files failed", snap.FilesFailed, snap.FilesTotal))
		case upload.StatusCancelled:
			r.Complete(id, false, "cancelled")
		case upload.StatusRejected:
			r.Complete(id, false, "rejected")
		}
	}
}
