// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the analysis pipeline over HTTP.
//
// Routes:
//
//	POST /api/chat     {"message": "scope: <s>, path: <p>", "type": "controller|unit_test"}
//	POST /api/analyze  {"message": "scope: <s>, url: <p>"}
//	POST /api/scan     {"repo_url": "...", "scope": "...", "path": "..."}
//	GET  /health
//	GET  /metrics
//
// Chat messages that do not follow the scope/path form are sent to the
// controller agent as they are. Every request gets its own request id and
// its own workspace. Responses are JSON objects with a "message" field.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kraklabs/routescope/pkg/analysis"
	"github.com/kraklabs/routescope/pkg/decision"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"

	// DefaultRequestTimeout bounds one request, collaborators included.
	DefaultRequestTimeout = 5 * time.Minute
)

// Config configures a Server.
type Config struct {
	Addr string

	// RepoURL is the archive analyzed by /api/chat and /api/analyze.
	RepoURL string

	// AllowedRepoHosts lists the hosts a /api/scan repo_url may name.
	// Empty means the host of RepoURL only.
	AllowedRepoHosts []string

	RequestTimeout time.Duration

	Pipeline   *analysis.Pipeline
	Dispatcher *decision.Dispatcher
}

// Server is the HTTP front end. It accepts HTTP/1.1 and cleartext HTTP/2.
type Server struct {
	cfg        Config
	pipeline   *analysis.Pipeline
	dispatcher *decision.Dispatcher
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pipeline == nil || cfg.Dispatcher == nil {
		return nil, errors.New("server: pipeline and dispatcher are required")
	}
	if cfg.RepoURL == "" {
		return nil, errors.New("server: repository URL is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if len(cfg.AllowedRepoHosts) == 0 {
		if u, err := url.Parse(cfg.RepoURL); err == nil && u.Hostname() != "" {
			cfg.AllowedRepoHosts = []string{u.Hostname()}
		}
	}

	s := &Server{cfg: cfg, pipeline: cfg.Pipeline, dispatcher: cfg.Dispatcher, logger: logger}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler without the h2c wrapper.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", s.instrument("/api/chat", s.handleChat))
	mux.Handle("POST /api/analyze", s.instrument("/api/analyze", s.handleAnalyze))
	mux.Handle("POST /api/scan", s.instrument("/api/scan", s.handleScan))
	mux.Handle("GET /health", s.instrument("/health", s.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server.start", "addr", s.cfg.Addr, "repo_url", s.cfg.RepoURL)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server.shutdown")
	return s.httpServer.Shutdown(ctx)
}
