// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
)

// Handler answers one JSON-RPC method call. It returns a result to be
// marshaled into Response.Result, or an error — a *Error is passed through
// verbatim (code and message preserved); any other error is wrapped as
// CodeInternalError.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// ServerInfo identifies this server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities is the advertised feature set of a capability profile, each
// field present only when the corresponding capability is on.
type Capabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Logging   *struct{}            `json:"logging,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

type PromptsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// Profile names one of the two canned capability sets a server advertises.
// They are structurally identical today; kept distinct so that
// default_admin can diverge (write-capable tools, subscribe-able
// resources) without disturbing default_read_only callers.
type Profile string

const (
	ProfileReadOnly Profile = "default_read_only"
	ProfileAdmin    Profile = "default_admin"
)

func capabilitiesForProfile(p Profile) Capabilities {
	switch p {
	case ProfileAdmin:
		return Capabilities{
			Tools:     &ToolsCapability{ListChanged: true},
			Resources: &ResourcesCapability{Subscribe: true, ListChanged: true},
			Prompts:   &PromptsCapability{ListChanged: true},
			Logging:   &struct{}{},
		}
	default:
		return Capabilities{
			Tools:     &ToolsCapability{ListChanged: true},
			Resources: &ResourcesCapability{Subscribe: true, ListChanged: true},
			Prompts:   &PromptsCapability{ListChanged: true},
			Logging:   &struct{}{},
		}
	}
}

// Notifier delivers server-initiated notifications (progress events, log
// messages) to whatever transport the server is wired behind. The core
// router has no wire implementation of its own; the notification channel
// is left to the transport shim.
type Notifier interface {
	Notify(method string, params any) error
}

// NopNotifier discards every notification, used when a server is run
// without a transport that supports server-initiated pushes.
type NopNotifier struct{}

func (NopNotifier) Notify(string, any) error { return nil }

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ServerInfo     `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

const protocolVersion = "2024-11-05"

// Router dispatches JSON-RPC requests to registered handlers, enforcing
// the initialize/initialized handshake before any other method runs. A
// method table any higher layer can extend with its own project/upload
// methods, rather than a hardcoded dispatch switch.
type Router struct {
	info     ServerInfo
	profile  Profile
	notifier Notifier

	mu          sync.RWMutex
	handlers    map[string]Handler
	initialized bool
}

// NewRouter builds a Router advertising info and profile, with notifier as
// its notification sink (NopNotifier{} if the caller has none).
func NewRouter(info ServerInfo, profile Profile, notifier Notifier) *Router {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	r := &Router{info: info, profile: profile, notifier: notifier, handlers: make(map[string]Handler)}
	r.Register("ping", func(context.Context, json.RawMessage) (any, error) { return map[string]any{}, nil })
	return r
}

// Register adds or replaces the handler for method. Registering
// "initialize" or "notifications/initialized" is rejected — those are
// owned by the router itself so the initialization gate cannot be
// bypassed by an overriding registration.
func (r *Router) Register(method string, h Handler) {
	if method == "initialize" || method == "notifications/initialized" {
		panic("rpc: method " + method + " is reserved")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// Notifier exposes the router's notification sink so higher layers (a
// progress bridge, a log forwarder) can push notifications through the
// same transport the router answers requests on.
func (r *Router) Notifier() Notifier { return r.notifier }

// Handle dispatches a single request and returns its response. For a
// notification (no ID) the returned Response is the zero value and must
// not be written to the wire — callers should check IsEmpty.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	if req.Method == "initialize" {
		return r.handleInitialize(req)
	}
	// Both the bare and the namespaced spelling of the initialized
	// notification are accepted; clients differ.
	if req.Method == "initialized" || req.Method == "notifications/initialized" {
		r.mu.Lock()
		r.initialized = true
		r.mu.Unlock()
		return Response{}
	}

	if req.Method != "ping" {
		r.mu.RLock()
		ready := r.initialized
		r.mu.RUnlock()
		if !ready {
			if req.isNotification() {
				return Response{}
			}
			return errorResponse(req, CodeServerNotInitialized, "server not initialized", nil)
		}
	}

	r.mu.RLock()
	handler, ok := r.handlers[req.Method]
	r.mu.RUnlock()
	if !ok {
		if req.isNotification() {
			return Response{}
		}
		return errorResponse(req, CodeMethodNotFound, "method not found", req.Method)
	}

	result, err := handler(ctx, req.Params)
	if req.isNotification() {
		return Response{}
	}
	if err != nil {
		if rpcErr, ok := err.(*Error); ok {
			return errorResponse(req, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errorResponse(req, CodeRequestTimeout, "request timed out", nil)
		}
		return errorResponse(req, CodeInternalError, "internal error", err.Error())
	}
	return Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (r *Router) handleInitialize(req Request) Response {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req, CodeInvalidParams, "invalid params", err.Error())
		}
	}
	r.mu.Lock()
	r.initialized = true
	r.mu.Unlock()
	return Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    capabilitiesForProfile(r.profile),
			ServerInfo:      r.info,
		},
	}
}

func errorResponse(req Request, code int, message string, data any) Response {
	return Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: code, Message: message, Data: data}}
}

// IsEmpty reports whether resp carries neither id, result, nor error —
// the signal that req was a notification and must not be written back.
func (resp Response) IsEmpty() bool {
	return resp.ID == nil && resp.Result == nil && resp.Error == nil
}

// Dispatch decodes raw as a Request, runs it through Handle, and
// re-encodes the Response — the transport-agnostic entry point the HTTP
// POST handler calls (ServeStdio decodes each line itself and calls Handle
// directly, without the jsonrpc/method check). It returns a parse-error
// Response (code -32700) rather than an error if raw is not valid JSON,
// since a JSON-RPC parse failure must itself be reported as a framed
// error response where possible.
func (r *Router) Dispatch(ctx context.Context, raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Response{JSONRPC: "2.0", Error: &Error{Code: CodeParseError, Message: "parse error", Data: err.Error()}}
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: CodeInvalidRequest, Message: "invalid request"}}
	}
	return r.Handle(ctx, req)
}

// Error implements the error interface so a handler can `return nil,
// &rpc.Error{...}` to control the exact code/message/data sent back,
// bypassing the default CodeInternalError wrapping.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
