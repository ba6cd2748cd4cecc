// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rangeServer serves body and honors Range requests the way a real file
// server does: 206 with the tail for a satisfiable range, 416 when the
// offset is at or past the end.
func rangeServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if rng := r.Header.Get("Range"); rng != "" {
			offsetStr := strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-")
			offset, err := strconv.ParseInt(offsetStr, 10, 64)
			require.NoError(t, err)
			if offset >= int64(len(body)) {
				w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
				return
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(body)-1, len(body)))
			w.WriteHeader(http.StatusPartialContent)
			w.Write(body[offset:])
			return
		}
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPAdapter_Fetch_DownloadsWholeResource(t *testing.T) {
	body := []byte("0123456789")
	server := rangeServer(t, body)
	dest := filepath.Join(t.TempDir(), "out.bin")

	a := newHTTPAdapter()
	defer a.Close()
	src := &Source{Type: SourceHTTP, Location: server.URL}
	require.NoError(t, a.Fetch(context.Background(), src, server.URL, dest, nil))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestHTTPAdapter_Resume_CompletesInterruptedDownload(t *testing.T) {
	body := []byte("0123456789")
	server := rangeServer(t, body)

	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(dest, body[:4], 0o600)) // interrupted at 4 bytes

	a := newHTTPAdapter()
	defer a.Close()
	src := &Source{Type: SourceHTTP, Location: server.URL}

	var finalDone int64
	require.NoError(t, a.Resume(context.Background(), src, server.URL, dest, 4, func(done, total int64) {
		finalDone = done
		assert.Equal(t, int64(len(body)), total)
	}))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, int64(len(body)), finalDone)

	wantSum := sha256.Sum256(body)
	gotSum := sha256.Sum256(got)
	assert.Equal(t, hex.EncodeToString(wantSum[:]), hex.EncodeToString(gotSum[:]))
}

func TestHTTPAdapter_Resume_RangeNotSatisfiableMeansComplete(t *testing.T) {
	body := []byte("0123456789")
	server := rangeServer(t, body)

	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(dest, body, 0o600)) // already complete

	a := newHTTPAdapter()
	defer a.Close()
	src := &Source{Type: SourceHTTP, Location: server.URL}
	require.NoError(t, a.Resume(context.Background(), src, server.URL, dest, int64(len(body)), nil))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestHTTPAdapter_Fetch_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	a := newHTTPAdapter()
	defer a.Close()
	src := &Source{Type: SourceHTTP, Location: server.URL}
	err := a.Fetch(context.Background(), src, server.URL, filepath.Join(t.TempDir(), "out"), nil)
	require.Error(t, err)
	ue, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindNetwork, ue.Kind)
}

func TestHTTPAdapter_Fetch_NotFoundIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	a := newHTTPAdapter()
	defer a.Close()
	src := &Source{Type: SourceHTTP, Location: server.URL}
	err := a.Fetch(context.Background(), src, server.URL, filepath.Join(t.TempDir(), "out"), nil)
	require.Error(t, err)
	ue, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindInput, ue.Kind)
}

func TestHTTPAdapter_Stat_PrefersContentDispositionFilename(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		w.Header().Set("Content-Length", "42")
	}))
	t.Cleanup(server.Close)

	a := newHTTPAdapter()
	defer a.Close()
	src := &Source{Type: SourceHTTP, Location: server.URL}
	stat, err := a.Stat(context.Background(), src, server.URL+"/archive/latest")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", stat.Filename)
	assert.Equal(t, int64(42), stat.Size)
}

func TestHTTPAdapter_Stat_FallsBackToURLPathTail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	t.Cleanup(server.Close)

	a := newHTTPAdapter()
	defer a.Close()
	src := &Source{Type: SourceHTTP, Location: server.URL}
	stat, err := a.Stat(context.Background(), src, server.URL+"/files/manual.txt")
	require.NoError(t, err)
	assert.Equal(t, "manual.txt", stat.Filename)
}

func TestHTTPAdapter_AppliesBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
	}))
	t.Cleanup(server.Close)

	a := newHTTPAdapter()
	defer a.Close()
	src := &Source{
		Type: SourceHTTP, Location: server.URL,
		Credentials: &Credentials{Username: "alice", Password: "secret"},
	}
	require.NoError(t, a.Fetch(context.Background(), src, server.URL, filepath.Join(t.TempDir(), "out"), nil))
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "secret", gotPass)
}
