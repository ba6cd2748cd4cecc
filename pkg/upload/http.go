// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/behemotion/docbro/internal/errors"
)

// httpAdapter implements Adapter over HTTP(S). A source's Location is the
// single resource URL; List yields exactly that one URL since plain HTTP
// has no directory listing convention.
type httpAdapter struct {
	mu      sync.Mutex
	clients map[string]*http.Client
}

func newHTTPAdapter() *httpAdapter {
	return &httpAdapter{clients: make(map[string]*http.Client)}
}

func (a *httpAdapter) clientKey(source *Source) string {
	user := ""
	if source.Credentials != nil {
		user = source.Credentials.Username
	}
	return fmt.Sprintf("%s|%v|%s", source.Location, source.VerifySSL, user)
}

func (a *httpAdapter) client(source *Source) *http.Client {
	key := a.clientKey(source)

	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[key]; ok {
		return c
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !source.VerifySSL},
	}
	c := &http.Client{
		Transport: transport,
		Timeout:   0, // per-request timeouts are enforced via context
	}
	a.clients[key] = c
	return c
}

func (a *httpAdapter) applyAuth(req *http.Request, source *Source) {
	if source.Credentials == nil {
		return
	}
	switch {
	case source.Credentials.Key != "":
		req.Header.Set("Authorization", "Bearer "+source.Credentials.Key)
	case source.Credentials.Username != "":
		req.SetBasicAuth(source.Credentials.Username, source.Credentials.Password)
	}
}

func (a *httpAdapter) Validate(ctx context.Context, source *Source) (ValidationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, source.Location, nil)
	if err != nil {
		return ValidationResult{OK: false, Errors: []string{"invalid URL: " + source.Location}}, nil
	}
	a.applyAuth(req, source)

	resp, err := a.client(source).Do(req)
	if err != nil {
		return ValidationResult{OK: false, Errors: []string{"request failed: " + err.Error()}}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ValidationResult{OK: false, Errors: []string{fmt.Sprintf("server responded %d", resp.StatusCode)}}, nil
	}
	var warnings []string
	if resp.Header.Get("Accept-Ranges") != "bytes" {
		warnings = append(warnings, "server may not support resumable downloads")
	}
	return ValidationResult{OK: true, Warnings: warnings}, nil
}

// List yields the single resource URL this source points at; HTTP(S)
// sources are always a single file, never a directory tree.
func (a *httpAdapter) List(ctx context.Context, source *Source) (<-chan string, <-chan error) {
	paths := make(chan string, 1)
	errs := make(chan error, 1)
	paths <- source.Location
	close(paths)
	close(errs)
	return paths, errs
}

func filenameFromResponse(loc string, resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	if u, err := url.Parse(loc); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
		return "download_" + u.Host
	}
	return "download_unknown"
}

func (a *httpAdapter) Stat(ctx context.Context, source *Source, p string) (StatResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p, nil)
	if err != nil {
		return StatResult{}, errors.NewInputError("Invalid URL", "Failed to build request for "+p, "Check the URL is well-formed")
	}
	a.applyAuth(req, source)

	resp, err := a.client(source).Do(req)
	if err != nil {
		return StatResult{}, errors.NewNetworkError("Cannot reach HTTP source", "HEAD request failed for "+p, "Check the URL is reachable", err)
	}
	defer resp.Body.Close()

	result := StatResult{
		Filename: filenameFromResponse(p, resp),
		MimeType: resp.Header.Get("Content-Type"),
	}
	if size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		result.Size = size
	}
	if modStr := resp.Header.Get("Last-Modified"); modStr != "" {
		if t, err := time.Parse(http.TimeFormat, modStr); err == nil {
			result.ModifiedAt = &t
		}
	}
	return result, nil
}

func (a *httpAdapter) Fetch(ctx context.Context, source *Source, remoteURL, localPath string, progress ProgressFunc) error {
	return a.fetch(ctx, source, remoteURL, localPath, 0, progress)
}

// Resume issues a Range request from offset. A 416 response means the file
// is already fully downloaded; treat it as success rather than an error.
func (a *httpAdapter) Resume(ctx context.Context, source *Source, remoteURL, localPath string, offset int64, progress ProgressFunc) error {
	return a.fetch(ctx, source, remoteURL, localPath, offset, progress)
}

func (a *httpAdapter) fetch(ctx context.Context, source *Source, remoteURL, localPath string, offset int64, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return errors.NewInputError("Invalid URL", "Failed to build request for "+remoteURL, "Check the URL is well-formed")
	}
	a.applyAuth(req, source)
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := a.client(source).Do(req)
	if err != nil {
		return errors.NewNetworkError("Cannot fetch HTTP resource", "GET request failed for "+remoteURL, "Check the URL is reachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		return nil // already fully downloaded
	}
	switch {
	case resp.StatusCode >= 500:
		// Server-side failures are transient; the manager may retry.
		return errors.NewNetworkError("Cannot fetch HTTP resource", fmt.Sprintf("server responded %d for %s", resp.StatusCode, remoteURL), "Retry the operation", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewAuthError("Cannot fetch HTTP resource", fmt.Sprintf("server responded %d for %s", resp.StatusCode, remoteURL), "Check the source credentials", nil)
	case resp.StatusCode >= 400:
		return errors.NewInputError("Cannot fetch HTTP resource", fmt.Sprintf("server responded %d for %s", resp.StatusCode, remoteURL), "Check the URL")
	}

	resumed := offset > 0 && resp.StatusCode == http.StatusPartialContent
	if offset > 0 && !resumed {
		offset = 0 // server ignored Range; restart from scratch
	}

	total := offset + resp.ContentLength
	if resp.ContentLength < 0 {
		total = 0
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resumed {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	dest, err := os.OpenFile(localPath, flags, 0o600)
	if err != nil {
		return errors.NewPermissionError("Cannot fetch HTTP resource", "Failed to create destination file", "Check directory permissions", err)
	}
	defer dest.Close()

	buf := make([]byte, copyChunkSize)
	done := offset
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := dest.Write(buf[:n]); err != nil {
				return errors.NewInternalError("Cannot fetch HTTP resource", "Failed to write destination file", "Check available disk space", err)
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return errors.NewNetworkError("Cannot fetch HTTP resource", "Connection interrupted while reading "+remoteURL, "Retry; the transfer can resume from the last byte", readErr)
		}
	}
}

func (a *httpAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.clients {
		c.CloseIdleConnections()
	}
	a.clients = make(map[string]*http.Client)
	return nil
}
