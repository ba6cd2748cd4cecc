// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/config"
	"github.com/google/uuid"
)

var crawlingSubdirs = []string{"crawl_data", "pages", "assets", "logs"}

// CrawlConfig is everything a crawler engine needs to run one session.
type CrawlConfig struct {
	URL              string
	Depth            int
	RateLimit        float64
	UserAgent        string
	FollowRedirects  bool
	RespectRobotsTxt bool
	OutputDirectory  string
}

// CrawlerDriver is the seam to the HTML crawler engine. The engine itself
// lives outside this module; the handler only starts sessions and polls or
// stops them through this interface.
type CrawlerDriver interface {
	// Start begins crawling and returns without waiting for completion.
	// The session ends when ctx is cancelled or the crawl finishes.
	Start(ctx context.Context, cfg CrawlConfig) error
	// Stop terminates the session rooted at cfg.OutputDirectory, if the
	// engine tracks one there. Best effort.
	Stop(outputDirectory string) error
}

// stubCrawlerDriver tracks nothing and crawls nothing; it stands in when no
// engine is wired, keeping session bookkeeping testable.
type stubCrawlerDriver struct{}

func (stubCrawlerDriver) Start(ctx context.Context, cfg CrawlConfig) error { return nil }
func (stubCrawlerDriver) Stop(string) error                                { return nil }

type crawlSession struct {
	id     string
	url    string
	depth  int
	cancel context.CancelFunc
}

// crawlingHandler implements Handler for crawling-type projects.
type crawlingHandler struct {
	repo   *Repository
	layout Layout
	driver CrawlerDriver

	mu       sync.Mutex
	sessions map[string]*crawlSession // keyed by project name
}

func (h *crawlingHandler) Initialize(ctx context.Context, p *Project) error {
	root := h.layout.ProjectRoot(p.Name)
	for _, sub := range crawlingSubdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o750); err != nil {
			return errors.NewPermissionError(
				"Cannot initialize crawling project",
				fmt.Sprintf("Failed to create %s", sub),
				"Check directory permissions",
				err,
			)
		}
	}
	logPath := filepath.Join(root, "logs", "session.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return errors.NewPermissionError("Cannot initialize crawling project", "Failed to create session log", "Check directory permissions", err)
	}
	return f.Close()
}

// Cleanup stops any live session, archives crawl_data when the project
// opts in via the archive_on_cleanup setting, and removes temp. With force
// set, archive and temp failures are swallowed so removal can proceed.
func (h *crawlingHandler) Cleanup(ctx context.Context, p *Project, force bool) error {
	h.mu.Lock()
	if s, ok := h.sessions[p.Name]; ok {
		s.cancel()
		delete(h.sessions, p.Name)
	}
	h.mu.Unlock()
	h.crawlerDriver().Stop(filepath.Join(h.layout.ProjectRoot(p.Name), "crawl_data")) //nolint:errcheck // best effort

	if boolSetting(p.Settings, "archive_on_cleanup") {
		if err := h.archiveCrawlData(p.Name); err != nil && !force {
			return err
		}
	}

	tempDir := h.layout.ProjectTempDir(p.Name)
	if err := os.RemoveAll(tempDir); err != nil && !force {
		return errors.NewInternalError("Cannot clean up crawling project", "Failed to remove temp directory", "Retry with force to ignore this error", err)
	}
	return nil
}

// archiveCrawlData writes <data>/backups/<name>_<ts>_crawl_data.tar.gz from
// the project's crawl_data directory. An empty directory produces an
// archive with no entries, not an error.
func (h *crawlingHandler) archiveCrawlData(name string) error {
	src := filepath.Join(h.layout.ProjectRoot(name), "crawl_data")
	if _, err := os.Stat(src); err != nil {
		return nil
	}

	backupsDir := filepath.Join(h.layout.DataDir, "backups")
	if err := os.MkdirAll(backupsDir, 0o750); err != nil {
		return errors.NewPermissionError("Cannot archive crawl data", "Failed to create backups directory", "Check directory permissions", err)
	}
	dest := filepath.Join(backupsDir, name+"_"+time.Now().UTC().Format("20060102_150405")+"_crawl_data.tar.gz")

	out, err := os.Create(dest)
	if err != nil {
		return errors.NewPermissionError("Cannot archive crawl data", "Failed to create archive file", "Check directory permissions", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return errors.NewInternalError("Cannot archive crawl data", "Failed to write archive contents", "Check available disk space", err)
	}
	return nil
}

func (h *crawlingHandler) DefaultSettings() map[string]any {
	return config.DefaultSettings(config.TypeCrawling)
}

func (h *crawlingHandler) ValidateSettings(settings map[string]any) config.ValidationResult {
	return config.Validate(config.TypeCrawling, settings)
}

func (h *crawlingHandler) ProjectStats(ctx context.Context, p *Project) (map[string]any, error) {
	root := filepath.Join(h.layout.ProjectRoot(p.Name), "crawl_data")
	size, fileCount := dirStats(root)

	h.mu.Lock()
	active := 0
	if _, ok := h.sessions[p.Name]; ok {
		active = 1
	}
	h.mu.Unlock()

	return map[string]any{
		"crawl_data_bytes": size,
		"crawl_data_files": fileCount,
		"active_sessions":  active,
	}, nil
}

func (h *crawlingHandler) crawlerDriver() CrawlerDriver {
	if h.driver != nil {
		return h.driver
	}
	return stubCrawlerDriver{}
}

// StartCrawl validates the request, hands the session to the crawler
// engine, and returns its id without waiting for the crawl to finish.
// Callers poll progress through GetCrawlStatus.
func (h *crawlingHandler) StartCrawl(ctx context.Context, p *Project, url string, depth int) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", errors.NewInputError(
			"Invalid crawl URL",
			fmt.Sprintf("%q is not an http(s) URL", url),
			"Provide a URL starting with http:// or https://",
		)
	}
	if depth < 1 || depth > 10 {
		return "", errors.NewInputError(
			"Invalid crawl depth",
			fmt.Sprintf("depth %d is outside the allowed range [1,10]", depth),
			"Choose a depth between 1 and 10",
		)
	}

	cfg := CrawlConfig{
		URL:              url,
		Depth:            depth,
		RateLimit:        floatSetting(p.Settings, "rate_limit", 1.0),
		UserAgent:        stringSetting(p.Settings, "user_agent", "docbro/1.0"),
		FollowRedirects:  boolSetting(p.Settings, "follow_redirects"),
		RespectRobotsTxt: boolSetting(p.Settings, "respect_robots_txt"),
		OutputDirectory:  filepath.Join(h.layout.ProjectRoot(p.Name), "crawl_data"),
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := h.crawlerDriver().Start(sessionCtx, cfg); err != nil {
		cancel()
		return "", err
	}
	sessionID := uuid.NewString()

	h.mu.Lock()
	if h.sessions == nil {
		h.sessions = map[string]*crawlSession{}
	}
	h.sessions[p.Name] = &crawlSession{id: sessionID, url: url, depth: depth, cancel: cancel}
	h.mu.Unlock()

	return sessionID, nil
}

// GetCrawlStatus aggregates directory statistics and live session info.
func (h *crawlingHandler) GetCrawlStatus(p *Project) map[string]any {
	stats, _ := h.ProjectStats(context.Background(), p)

	h.mu.Lock()
	session, active := h.sessions[p.Name]
	h.mu.Unlock()

	status := map[string]any{"stats": stats, "active": active}
	if active {
		status["session_id"] = session.id
		status["url"] = session.url
		status["depth"] = session.depth
	}
	return status
}

func dirStats(root string) (int64, int) {
	var size int64
	var count int
	filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		size += info.Size()
		count++
		return nil
	})
	return size, count
}
