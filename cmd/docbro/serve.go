// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/behemotion/docbro/pkg/config"
	"github.com/behemotion/docbro/pkg/project"
	"github.com/behemotion/docbro/pkg/rpc"
	"github.com/behemotion/docbro/pkg/upload"
)

// runServe starts the JSON-RPC server, registering the project and upload
// methods on top of the core router's initialize/initialized/ping
// handshake. By default the server speaks newline-delimited JSON-RPC over
// stdio; --http-addr switches it to one-message-per-POST over HTTP.
//
// Flags:
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
//   - --http-addr: serve JSON-RPC over HTTP POST instead of stdio
//   - --rpc-timeout: per-request handler deadline
//   - --profile: capability profile, "default_read_only" or "default_admin"
func runServe(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	httpAddr := fs.String("http-addr", "", "HTTP listen address for JSON-RPC over POST (empty for stdio)")
	rpcTimeout := fs.Duration("rpc-timeout", 30*time.Second, "Per-request handler deadline (0 to disable)")
	profileFlag := fs.String("profile", string(rpc.ProfileReadOnly), "Capability profile: default_read_only|default_admin")
	_ = fs.Parse(args)

	a, err := newApp()
	if err != nil {
		fatal(err, globals.JSON)
	}
	defer a.Close()

	logger := newLogger(globals.Debug)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.metrics.ServeHTTP(ctx, *metricsAddr, logger)

	router := rpc.NewRouter(rpc.ServerInfo{Name: "docbro", Version: version}, rpc.Profile(*profileFlag), rpc.NopNotifier{})
	registerProjectMethods(router, a)
	registerUploadMethods(router, a)

	if *httpAddr != "" {
		logger.Info("rpc.http.start", "addr", *httpAddr)
		server := &http.Server{Addr: *httpAddr, Handler: rpc.HTTPHandler(router, *rpcTimeout)}
		go func() {
			<-ctx.Done()
			server.Close()
		}()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(err, globals.JSON)
		}
		return
	}

	logger.Info("rpc.stdio.start")
	if err := router.ServeStdio(ctx, os.Stdin, os.Stdout, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}); err != nil {
		fatal(err, globals.JSON)
	}
}

func registerProjectMethods(router *rpc.Router, a *app) {
	router.Register("project.create", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Name     string         `json:"name"`
			Type     string         `json:"type"`
			Settings map[string]any `json:"settings"`
			Force    bool           `json:"force"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid params", Data: err.Error()}
		}
		t := config.ProjectType(p.Type)
		if !t.Valid() {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid project type", Data: p.Type}
		}
		proj, err := a.projects.Create(ctx, p.Name, t, p.Settings, p.Force)
		if err != nil {
			return nil, err
		}
		return projectSummary(proj), nil
	})

	router.Register("project.get", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid params", Data: err.Error()}
		}
		proj, err := a.projects.Get(p.Name)
		if err != nil {
			return nil, err
		}
		return projectSummary(proj), nil
	})

	router.Register("project.list", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Status string `json:"status"`
			Type   string `json:"type"`
			Limit  int    `json:"limit"`
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid params", Data: err.Error()}
			}
		}
		projects, err := a.projects.List(project.Status(p.Status), config.ProjectType(p.Type), p.Limit)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(projects))
		for _, proj := range projects {
			out = append(out, projectSummary(proj))
		}
		return map[string]any{"projects": out}, nil
	})

	router.Register("project.remove", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Name   string `json:"name"`
			Backup bool   `json:"backup"`
			Force  bool   `json:"force"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid params", Data: err.Error()}
		}
		if err := a.projects.Remove(ctx, p.Name, p.Backup, p.Force); err != nil {
			return nil, err
		}
		return map[string]any{"removed": p.Name}, nil
	})

	router.Register("project.stats", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid params", Data: err.Error()}
		}
		return a.projects.GetProjectStats(ctx, p.Name)
	})
}

func projectSummary(p *project.Project) map[string]any {
	return map[string]any{
		"id":         p.ID.String(),
		"name":       p.Name,
		"type":       string(p.Type),
		"status":     string(p.Status),
		"settings":   p.Settings,
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
}

func registerUploadMethods(router *rpc.Router, a *app) {
	router.Register("upload.start", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Project        string             `json:"project"`
			Source         uploadSourceParams `json:"source"`
			ConflictPolicy string             `json:"conflict_policy"`
			DryRun         bool               `json:"dry_run"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid params", Data: err.Error()}
		}
		policy := upload.ConflictPolicy(p.ConflictPolicy)
		if policy == "" {
			policy = upload.ConflictRename
		}
		op, err := a.uploads.Start(ctx, p.Project, p.Source.toSource(), policy, p.DryRun)
		if err != nil && op == nil {
			return nil, err
		}
		// A rejected operation still has a handle; return it so the caller
		// can see the id and the recorded errors.
		return snapshotResult(op.Snapshot()), nil
	})

	router.Register("upload.status", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid params", Data: err.Error()}
		}
		id, err := parseUUID(p.ID)
		if err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid id", Data: err.Error()}
		}
		op, ok := a.uploads.Get(id)
		if !ok {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "unknown operation", Data: p.ID}
		}
		return snapshotResult(op.Snapshot()), nil
	})

	router.Register("upload.cancel", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid params", Data: err.Error()}
		}
		id, err := parseUUID(p.ID)
		if err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid id", Data: err.Error()}
		}
		return map[string]any{"cancelled": a.uploads.Cancel(id)}, nil
	})
}

type uploadSourceParams struct {
	Type            string   `json:"type"`
	Location        string   `json:"location"`
	Username        string   `json:"username"`
	Password        string   `json:"password"`
	Key             string   `json:"key"`
	Domain          string   `json:"domain"`
	Recursive       bool     `json:"recursive"`
	ExcludePatterns []string `json:"exclude_patterns"`
	FollowSymlinks  bool     `json:"follow_symlinks"`
	VerifySSL       bool     `json:"verify_ssl"`
}

func (p uploadSourceParams) toSource() *upload.Source {
	var creds *upload.Credentials
	if p.Username != "" || p.Password != "" || p.Key != "" || p.Domain != "" {
		creds = &upload.Credentials{Username: p.Username, Password: p.Password, Key: p.Key, Domain: p.Domain}
	}
	return &upload.Source{
		Type: upload.SourceType(p.Type), Location: p.Location, Credentials: creds,
		Recursive: p.Recursive, ExcludePatterns: p.ExcludePatterns,
		FollowSymlinks: p.FollowSymlinks, VerifySSL: p.VerifySSL,
	}
}

func snapshotResult(s upload.Snapshot) map[string]any {
	out := map[string]any{
		"id":              s.ID.String(),
		"project":         s.ProjectName,
		"status":          string(s.Status),
		"files_total":     s.FilesTotal,
		"files_processed": s.FilesProcessed,
		"files_succeeded": s.FilesSucceeded,
		"files_failed":    s.FilesFailed,
		"files_skipped":   s.FilesSkipped,
		"bytes_total":     s.BytesTotal,
		"bytes_processed": s.BytesProcessed,
		"current_file":    s.CurrentFile,
		"current_stage":   s.CurrentStage,
		"errors":          s.Errors,
	}
	if s.EstimatedCompletion != nil {
		out["estimated_completion"] = s.EstimatedCompletion
	}
	return out
}
