// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

const httpMaxBodySize = 10 * 1024 * 1024

// HTTPHandler wraps a Router as an http.Handler answering one JSON-RPC
// message per POST. Notifications are accepted and acknowledged with 204
// No Content. A non-zero requestTimeout bounds each handler invocation;
// exceeding it produces a CodeRequestTimeout error response.
func HTTPHandler(r *Router, requestTimeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(req.Body, httpMaxBodySize))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		ctx := req.Context()
		if requestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, requestTimeout)
			defer cancel()
		}

		resp := r.Dispatch(ctx, body)
		if resp.IsEmpty() {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		encoded, err := json.Marshal(resp)
		if err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(encoded) //nolint:errcheck // client gone; nothing to report to
	})
}
