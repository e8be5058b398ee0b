// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"neco/internal/controller/handlers"
	"neco/internal/controller/middleware"
	"neco/internal/observability"
)

// Options wires the cross-cutting pieces of the server.
type Options struct {
	Authenticator  middleware.Authenticator
	RateLimiter    *middleware.RateLimiter
	InternalSecret string
	Metrics        http.Handler
	Logger         *slog.Logger
}

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
func New(addr string, h *handlers.Handlers, opts Options) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewHandler(h, opts),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// NewHandler builds the routed API handler.
func NewHandler(h *handlers.Handlers, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	authMW := middleware.Auth(opts.Authenticator)
	protect := func(fn http.HandlerFunc) http.Handler {
		var next http.Handler = fn
		if opts.RateLimiter != nil {
			next = opts.RateLimiter.Middleware()(next)
		}
		return authMW(next)
	}
	// Session endpoints have no caller yet, so they are limited per
	// client address.
	limitAnon := func(fn http.HandlerFunc) http.Handler {
		if opts.RateLimiter == nil {
			return fn
		}
		return opts.RateLimiter.Middleware()(fn)
	}
	internalMW := middleware.RequireInternalAuth(opts.InternalSecret)

	mux := http.NewServeMux()

	// Session endpoints
	mux.Handle("POST /auth/signup", limitAnon(h.Signup))
	mux.Handle("POST /auth/login", limitAnon(h.Login))
	mux.Handle("POST /auth/refresh", limitAnon(h.Refresh))
	mux.Handle("POST /auth/logout", limitAnon(h.Logout))

	// Public authenticated apis
	mux.Handle("GET /user/me", protect(h.Me))

	mux.Handle("POST /workspaces", protect(h.CreateWorkspace))
	mux.Handle("GET /workspaces", protect(h.ListWorkspaces))
	mux.Handle("POST /workspaces/search", protect(h.SearchWorkspaces))
	mux.Handle("GET /workspaces/{id}", protect(h.GetWorkspace))
	mux.Handle("PATCH /workspaces/{id}", protect(h.UpdateWorkspace))
	mux.Handle("DELETE /workspaces/{id}", protect(h.DeleteWorkspace))

	mux.Handle("POST /workspaces/system", protect(h.CreateSystem))
	mux.Handle("GET /workspaces/{workspace_id}/systems", protect(h.ListSystems))
	mux.Handle("GET /workspaces/{workspace_id}/systems/{system_id}", protect(h.GetSystem))
	mux.Handle("POST /workspaces/{workspace_id}/systems/{system_id}/activate", protect(h.ActivateSystem))

	mux.Handle("POST /executions", protect(h.CreateExecution))
	mux.Handle("GET /executions", protect(h.ListExecutions))
	mux.Handle("GET /executions/{id}", protect(h.GetExecution))
	mux.Handle("POST /executions/{id}", protect(h.StartExecution))

	mux.Handle("GET /node-definitions", protect(h.ListNodeDefinitions))
	mux.Handle("GET /node-definitions/{id}", protect(h.GetNodeDefinition))

	// Internal endpoints
	// These are called by queue consumers reporting run results.
	mux.Handle("PUT /internal/executions/{id}/result", internalMW(http.HandlerFunc(h.InternalUpdateResult)))

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return middleware.RequestLog(log)(observability.Middleware(mux))
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
