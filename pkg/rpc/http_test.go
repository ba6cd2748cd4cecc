// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postRPC(t *testing.T, server *httptest.Server, body string) (*http.Response, Response) {
	t.Helper()
	resp, err := http.Post(server.URL, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded Response
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func TestHTTPHandler_InitializeThenPing(t *testing.T) {
	router := NewRouter(ServerInfo{Name: "docbro", Version: "test"}, ProfileReadOnly, nil)
	server := httptest.NewServer(HTTPHandler(router, 0))
	defer server.Close()

	_, initResp := postRPC(t, server, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	require.Nil(t, initResp.Error)

	_, pingResp := postRPC(t, server, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	require.Nil(t, pingResp.Error)
	assert.Equal(t, map[string]any{}, pingResp.Result)
}

func TestHTTPHandler_GatedMethodBeforeInitialize(t *testing.T) {
	router := NewRouter(ServerInfo{Name: "docbro", Version: "test"}, ProfileReadOnly, nil)
	router.Register("tools/list", func(context.Context, json.RawMessage) (any, error) {
		return []any{}, nil
	})
	server := httptest.NewServer(HTTPHandler(router, 0))
	defer server.Close()

	_, resp := postRPC(t, server, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeServerNotInitialized, resp.Error.Code)
}

func TestHTTPHandler_NotificationReturnsNoContent(t *testing.T) {
	router := NewRouter(ServerInfo{Name: "docbro", Version: "test"}, ProfileReadOnly, nil)
	server := httptest.NewServer(HTTPHandler(router, 0))
	defer server.Close()

	httpResp, _ := postRPC(t, server, `{"jsonrpc":"2.0","method":"initialized"}`)
	assert.Equal(t, http.StatusNoContent, httpResp.StatusCode)
}

func TestHTTPHandler_RejectsNonPOST(t *testing.T) {
	router := NewRouter(ServerInfo{Name: "docbro", Version: "test"}, ProfileReadOnly, nil)
	server := httptest.NewServer(HTTPHandler(router, 0))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTPHandler_RequestTimeout(t *testing.T) {
	router := NewRouter(ServerInfo{Name: "docbro", Version: "test"}, ProfileReadOnly, nil)
	router.Register("slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "done", nil
		}
	})
	server := httptest.NewServer(HTTPHandler(router, 50*time.Millisecond))
	defer server.Close()

	postRPC(t, server, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	_, resp := postRPC(t, server, `{"jsonrpc":"2.0","id":2,"method":"slow"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRequestTimeout, resp.Error.Code)
}
