// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/behemotion/docbro/pkg/rpc"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, a *app) *rpc.Router {
	t.Helper()
	router := rpc.NewRouter(rpc.ServerInfo{Name: "docbro", Version: "test"}, rpc.ProfileReadOnly, nil)
	registerProjectMethods(router, a)
	registerUploadMethods(router, a)

	params, err := json.Marshal(map[string]any{"protocolVersion": "2024-11-05"})
	require.NoError(t, err)
	resp := router.Handle(context.Background(), rpc.Request{JSONRPC: "2.0", ID: float64(1), Method: "initialize", Params: params})
	require.Nil(t, resp.Error)
	router.Handle(context.Background(), rpc.Request{JSONRPC: "2.0", Method: "notifications/initialized"})
	return router
}

func TestRPCMethods_ProjectLifecycle(t *testing.T) {
	a := newTestApp(t)
	router := newTestRouter(t, a)

	createParams, _ := json.Marshal(map[string]any{
		"name": "docs", "type": "storage",
		"settings": map[string]any{"allowed_formats": []any{"*"}, "max_file_size": int64(1024 * 1024)},
	})
	resp := router.Handle(context.Background(), rpc.Request{JSONRPC: "2.0", ID: float64(2), Method: "project.create", Params: createParams})
	require.Nil(t, resp.Error)

	listResp := router.Handle(context.Background(), rpc.Request{JSONRPC: "2.0", ID: float64(3), Method: "project.list"})
	require.Nil(t, listResp.Error)
	result, ok := listResp.Result.(map[string]any)
	require.True(t, ok)
	projects, ok := result["projects"].([]any)
	require.True(t, ok)
	require.Len(t, projects, 1)
}

func TestRPCMethods_UploadStartAndPoll(t *testing.T) {
	a := newTestApp(t)
	router := newTestRouter(t, a)

	createParams, _ := json.Marshal(map[string]any{
		"name": "docs", "type": "storage",
		"settings": map[string]any{"allowed_formats": []any{"*"}, "max_file_size": int64(1024 * 1024)},
	})
	resp := router.Handle(context.Background(), rpc.Request{JSONRPC: "2.0", ID: float64(2), Method: "project.create", Params: createParams})
	require.Nil(t, resp.Error)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o600))

	startParams, _ := json.Marshal(map[string]any{
		"project": "docs",
		"source":  map[string]any{"type": "local", "location": root},
	})
	startResp := router.Handle(context.Background(), rpc.Request{JSONRPC: "2.0", ID: float64(3), Method: "upload.start", Params: startParams})
	require.Nil(t, startResp.Error)
	started, ok := startResp.Result.(map[string]any)
	require.True(t, ok)
	id := started["id"].(string)

	statusParams, _ := json.Marshal(map[string]any{"id": id})
	deadline := time.Now().Add(5 * time.Second)
	var status string
	for time.Now().Before(deadline) {
		statusResp := router.Handle(context.Background(), rpc.Request{JSONRPC: "2.0", ID: float64(4), Method: "upload.status", Params: statusParams})
		require.Nil(t, statusResp.Error)
		result := statusResp.Result.(map[string]any)
		status = result["status"].(string)
		if status == "complete" || status == "failed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, "complete", status)
}
