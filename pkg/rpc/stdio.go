// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

const (
	stdioInitialBufferSize = 1024 * 1024
	stdioMaxBufferSize     = 10 * 1024 * 1024
)

// ServeStdio runs the read-dispatch-write loop over r/w, one JSON-RPC
// message per line. logf
// receives one line per request/response for diagnostics (pass a no-op
// func to silence it); it is never written to w.
func (r *Router) ServeStdio(ctx context.Context, in io.Reader, out io.Writer, logf func(format string, args ...any)) error {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, stdioInitialBufferSize), stdioMaxBufferSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			logf("parse error: %v", err)
			resp := Response{JSONRPC: "2.0", Error: &Error{Code: CodeParseError, Message: "parse error", Data: err.Error()}}
			if werr := writeStdioResponse(out, resp); werr != nil {
				return werr
			}
			continue
		}

		logf("-> %s", req.Method)
		resp := r.Handle(ctx, req)
		if resp.IsEmpty() {
			continue
		}
		if err := writeStdioResponse(out, resp); err != nil {
			return err
		}
		logf("<- response sent for %s", req.Method)
	}
	return scanner.Err()
}

func writeStdioResponse(w io.Writer, resp Response) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("rpc: marshal response: %w", err)
	}
	encoded = append(encoded, '\n')
	_, err = w.Write(encoded)
	if syncer, ok := w.(interface{ Sync() error }); ok {
		_ = syncer.Sync()
	}
	return err
}
