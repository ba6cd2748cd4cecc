// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"context"
	"fmt"
	"sync"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/config"
)

// Handler is the common capability set every project type implements:
// initialize the on-disk layout, validate and default its
// settings, report type-specific stats, and clean up on removal.
type Handler interface {
	Initialize(ctx context.Context, p *Project) error
	Cleanup(ctx context.Context, p *Project, force bool) error
	ValidateSettings(settings map[string]any) config.ValidationResult
	DefaultSettings() map[string]any
	ProjectStats(ctx context.Context, p *Project) (map[string]any, error)
}

// HandlerFactory constructs the Handler for a given project: a closed
// switch validated once at startup rather than an open registration map,
// since ProjectType is a fixed three-member sum. Handlers are created once
// and shared, so in-memory handler state (live crawl sessions) survives
// across dispatches.
type HandlerFactory struct {
	repo   *Repository
	layout Layout

	mu       sync.Mutex
	handlers map[config.ProjectType]Handler
	driver   CrawlerDriver
}

// NewHandlerFactory validates that every ProjectType has a constructible
// handler, failing fast at startup rather than at first use.
func NewHandlerFactory(repo *Repository, layout Layout) (*HandlerFactory, error) {
	return NewHandlerFactoryWithDriver(repo, layout, nil)
}

// NewHandlerFactoryWithDriver is NewHandlerFactory with an explicit crawler
// engine; driver may be nil for the built-in session-tracking stub.
func NewHandlerFactoryWithDriver(repo *Repository, layout Layout, driver CrawlerDriver) (*HandlerFactory, error) {
	f := &HandlerFactory{
		repo: repo, layout: layout, driver: driver,
		handlers: make(map[config.ProjectType]Handler),
	}
	for _, t := range []config.ProjectType{config.TypeCrawling, config.TypeData, config.TypeStorage} {
		if _, err := f.For(t); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// For returns the shared Handler instance for t.
func (f *HandlerFactory) For(t config.ProjectType) (Handler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.handlers[t]; ok {
		return h, nil
	}

	var h Handler
	switch t {
	case config.TypeCrawling:
		h = &crawlingHandler{repo: f.repo, layout: f.layout, driver: f.driver}
	case config.TypeData:
		h = &dataHandler{repo: f.repo, layout: f.layout}
	case config.TypeStorage:
		h = &storageHandler{repo: f.repo, layout: f.layout}
	default:
		return nil, errors.NewInternalError(
			"Unknown project type",
			fmt.Sprintf("No handler registered for type %q", t),
			"This is a bug. Please report it",
			nil,
		)
	}
	f.handlers[t] = h
	return h, nil
}
