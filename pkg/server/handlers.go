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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/routescope/internal/contract"
	"github.com/kraklabs/routescope/pkg/analysis"
	"github.com/kraklabs/routescope/pkg/decision"
)

var (
	chatPattern    = regexp.MustCompile(`^scope:\s*([^,]+),\s*path:\s*(.+)$`)
	analyzePattern = regexp.MustCompile(`^scope:\s*([^,]+),\s*url:\s*(.+)$`)
)

const (
	chatUsage    = `The message cannot be empty. For repository analysis use: {"message": "scope: ping, path: ping/scope", "type": "controller or unit_test"}`
	analyzeUsage = `The payload must be sent as: {"message": "scope: ping, url: ping/scope"}`
)

type chatRequest struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type scanRequest struct {
	RepoURL string `json:"repo_url"`
	Scope   string `json:"scope"`
	Path    string `json:"path"`
}

type response struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Type      string `json:"type,omitempty"`
	Kind      string `json:"kind,omitempty"`
	File      string `json:"file,omitempty"`
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument assigns a request id, bounds the request, and records
// metrics for route.
func (s *Server) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := contract.RequestID(r.Header.Get("X-Request-ID"), uuid.NewString)
		w.Header().Set("X-Request-ID", id)

		ctx, cancel := context.WithTimeout(context.WithValue(r.Context(), requestIDKey{}, id), s.cfg.RequestTimeout)
		defer cancel()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r.WithContext(ctx))

		recordRequest(route, strconv.Itoa(rec.status), time.Since(start))
		s.logger.Info("http.request",
			"request_id", id,
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: chatUsage})
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		s.logger.Warn("http.chat.empty", "request_id", requestIDFrom(r.Context()))
		writeJSON(w, http.StatusBadRequest, response{Message: chatUsage})
		return
	}
	if v := contract.ValidateMessage(msg); !v.OK {
		writeJSON(w, http.StatusBadRequest, response{Message: v.Message, RequestID: requestIDFrom(r.Context())})
		return
	}

	if m := chatPattern.FindStringSubmatch(msg); m != nil {
		s.runAnalysis(w, r, strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), decision.ParseType(req.Type))
		return
	}

	reply, err := s.dispatcher.Direct(r.Context(), msg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Message: reply.Message, RequestID: requestIDFrom(r.Context()), Type: string(reply.Type)})
}

// handleAnalyze accepts "scope: <s>, url: <p>", where the url part is the
// endpoint path to look for.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: analyzeUsage})
		return
	}
	m := analyzePattern.FindStringSubmatch(strings.TrimSpace(req.Message))
	if m == nil {
		s.logger.Warn("http.analyze.invalid", "request_id", requestIDFrom(r.Context()))
		writeJSON(w, http.StatusBadRequest, response{Message: analyzeUsage})
		return
	}
	s.runAnalysis(w, r, strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), decision.TypeController)
}

func (s *Server) runAnalysis(w http.ResponseWriter, r *http.Request, scope, path string, typ decision.Type) {
	id := requestIDFrom(r.Context())
	var reply decision.Reply
	_, err := s.pipeline.Run(r.Context(), analysis.Request{
		RepoURL:   s.cfg.RepoURL,
		Scope:     scope,
		Path:      path,
		RequestID: id,
	}, s.dispatcher.Handoff(typ, &reply))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{
		Message:   reply.Message,
		RequestID: id,
		Type:      string(reply.Type),
		Kind:      reply.Kind.String(),
		File:      reply.File,
	})
}

// handleScan classifies without calling any collaborator.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "invalid JSON body"})
		return
	}
	if req.RepoURL == "" {
		req.RepoURL = s.cfg.RepoURL
	} else if v := contract.ValidateRepoURL(req.RepoURL, s.allowedHosts()); !v.OK {
		s.logger.Warn("http.scan.repo_rejected", "request_id", requestIDFrom(r.Context()), "reason", v.Message)
		writeJSON(w, http.StatusBadRequest, response{Message: v.Message, RequestID: requestIDFrom(r.Context())})
		return
	}
	result, err := s.pipeline.Run(r.Context(), analysis.Request{
		RepoURL:   req.RepoURL,
		Scope:     strings.TrimSpace(req.Scope),
		Path:      strings.TrimSpace(req.Path),
		RequestID: requestIDFrom(r.Context()),
	}, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, relativeResult(result))
}

// allowedHosts returns the configured hosts. With none configured, no
// client supplied repo_url is accepted.
func (s *Server) allowedHosts() []string {
	if len(s.cfg.AllowedRepoHosts) == 0 {
		return []string{""}
	}
	return s.cfg.AllowedRepoHosts
}

// relativeResult rewrites workspace paths relative to the working tree so
// responses do not reveal server directories.
func relativeResult(result *analysis.Result) *analysis.Result {
	if result == nil || result.Tree == nil {
		return result
	}
	root := result.Tree.Root
	rel := func(p string) string {
		if r, err := filepath.Rel(root, p); err == nil {
			return filepath.ToSlash(r)
		}
		return filepath.Base(p)
	}

	out := *result
	out.ControllerRoot = rel(result.ControllerRoot)
	out.Matches = make([]analysis.ScopeMatch, len(result.Matches))
	for i, m := range result.Matches {
		m.FilePath = rel(m.FilePath)
		out.Matches[i] = m
	}
	if result.Classification.Match != nil {
		m := *result.Classification.Match
		m.FilePath = rel(m.FilePath)
		out.Classification.Match = &m
	}
	return &out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps pipeline and collaborator errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var (
		de *analysis.DownloadError
		ee *analysis.ExtractionError
	)
	switch {
	case errors.Is(err, analysis.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.As(err, &de):
		status = http.StatusBadGateway
	case errors.As(err, &ee):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	id := requestIDFrom(r.Context())
	s.logger.Error("http.request.failed", "request_id", id, "status", status, "err", err)
	writeJSON(w, status, response{Message: "Processing error: " + err.Error(), RequestID: id})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(contract.MaxBodyBytes()))
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
