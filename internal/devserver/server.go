// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

/*
Package devserver is the in-memory VolStory backend stub.

It serves the exact endpoint set the SDK's API client consumes, with real
bearer verification and refresh-token rotation, so the full sign-in,
refresh, and registration sequence can run against localhost without any
production infrastructure.

Architecture:

  - This package is the topmost presentation layer boundary of the stub.
  - It acts as the composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/devserver import net/http server primitives.
*/
package devserver

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/volstory/volstory-go/internal/platform/config"
	"github.com/volstory/volstory-go/internal/platform/constants"
	"github.com/volstory/volstory-go/internal/platform/middleware"
	"github.com/volstory/volstory-go/internal/platform/respond"
)

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in cmd/devserver with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// NewServer constructs the chi router with the full middleware chain and
// registers the endpoint handlers.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, handler *Handler) *Server {
	router := newRouter(ctx, cfg, log, handler)

	return &Server{
		router: router,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// newRouter assembles the middleware chain and routes.
//
// Bearer verification is not part of the global chain: the handler scopes
// it to the routes that require a session, so stale bearers never block
// the sign-in and refresh endpoints.
func newRouter(ctx context.Context, cfg *config.Config, log *slog.Logger, handler *Handler) *chi.Mux {
	router := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(log))
	router.Use(chimw.Timeout(constants.DefaultRequestTimeout))
	router.Use(middleware.RateLimit(ctx))
	router.Use(middleware.PanicRecovery(log))
	router.Use(middleware.CORS(cfg))
	router.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	router.Get("/healthz", func(writer http.ResponseWriter, request *http.Request) {
		respond.OK(writer, map[string]string{
			"status":  "ok",
			"version": constants.AppVersion,
		})
	})

	// # Application API
	// The SDK calls paths at the origin root, so no version prefix here.
	router.Mount("/", handler.Routes())

	return router
}

// NewTestServer starts an [httptest.Server] running the same router the
// real binary serves. Integration tests point the SDK at its URL.
func NewTestServer(ctx context.Context, cfg *config.Config, log *slog.Logger, handler *Handler) *httptest.Server {
	return httptest.NewServer(newRouter(ctx, cfg, log, handler))
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
