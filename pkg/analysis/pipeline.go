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

package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Handoff receives the pipeline result while the working tree still
// exists, so that matched files can be read or uploaded. The tree is
// deleted as soon as Handoff returns.
type Handoff func(ctx context.Context, result *Result) error

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// WorkDir is the parent of the per-request workspaces. Default: os.TempDir().
	WorkDir string

	// Candidates overrides the Locator candidate lists per kind.
	Candidates map[DirectoryKind][]string

	Scanner ScannerConfig
	HTTP    HTTPConfig

	// Fetcher and Extractor replace the defaults when set.
	Fetcher   Fetcher
	Extractor Extractor
}

// Pipeline sequences fetch, extract, locate, scan, classify, handoff and
// cleanup for one request at a time. A Pipeline holds no per-request
// state and may be shared by concurrent callers.
type Pipeline struct {
	fetcher   Fetcher
	extractor Extractor
	locator   *Locator
	scanner   *Scanner
	workDir   string
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline. A nil logger uses slog.Default().
func NewPipeline(cfg PipelineConfig, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scanner, err := NewScanner(cfg.Scanner, logger)
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewSchemeFetcher(cfg.HTTP, logger)
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = NewZipExtractor(logger)
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		locator:   NewLocator(cfg.Candidates, logger),
		scanner:   scanner,
		workDir:   cfg.WorkDir,
		logger:    logger,
	}, nil
}

// Locator returns the locator used for controller resolution.
func (p *Pipeline) Locator() *Locator { return p.locator }

type runOutcome struct {
	result *Result
	err    error
}

// Run executes the full pipeline for req and calls handoff (when non-nil)
// before cleanup.
//
// Only download and extraction failures abort before classification. A
// handoff error is returned alongside the result. Extraction and scanning
// are not interrupted by ctx: if ctx ends first, Run returns ctx.Err()
// and the abandoned run still cleans up after itself.
func (p *Pipeline) Run(ctx context.Context, req Request, handoff Handoff) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	done := make(chan runOutcome, 1)
	go func() {
		res, err := p.run(ctx, req, handoff)
		done <- runOutcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		p.logger.Warn("pipeline.abandoned", "request_id", req.RequestID, "err", ctx.Err())
		return nil, ctx.Err()
	}
}

func (p *Pipeline) run(ctx context.Context, req Request, handoff Handoff) (*Result, error) {
	start := time.Now()
	log := p.logger.With("request_id", req.RequestID)

	ws, err := NewWorkspace(p.workDir, req.RequestID, log)
	if err != nil {
		recordFailure("workspace")
		return nil, err
	}
	defer ws.Close()

	result := &Result{Request: req}

	fetchStart := time.Now()
	archive, err := p.fetcher.Fetch(ctx, req.RepoURL, ws.ArchivePath())
	ws.Track(archive, nil)
	result.Durations.Fetch = time.Since(fetchStart)
	if err != nil {
		recordFailure("fetch")
		log.Error("pipeline.fetch.failed", "err", err)
		return nil, err
	}

	extractStart := time.Now()
	tree, err := p.extractor.Extract(archive.Path, ws.TreeDir())
	ws.Track(nil, tree)
	result.Durations.Extract = time.Since(extractStart)
	if err != nil {
		recordFailure("extract")
		log.Error("pipeline.extract.failed", "err", err)
		return nil, err
	}
	result.Tree = tree

	// The walk is not cancellable; only the caller's wait is.
	work := context.WithoutCancel(ctx)
	if err := p.analyze(work, tree.Root, req, result); err != nil {
		recordFailure("scan")
		return nil, err
	}

	result.Durations.Total = time.Since(start)
	recordRun(result.Classification.Kind, result.Durations)
	log.Info("pipeline.classified",
		"kind", result.Classification.Kind.String(),
		"file", result.Classification.File(),
		"matches", len(result.Matches),
	)

	if handoff != nil {
		if err := handoff(ctx, result); err != nil {
			recordFailure("handoff")
			return result, fmt.Errorf("handoff: %w", err)
		}
	}
	return result, nil
}

// Analyze runs locate, scan and classify against an existing directory.
// Nothing is fetched and nothing is deleted.
func (p *Pipeline) Analyze(ctx context.Context, root string, req Request) (*Result, error) {
	if strings.TrimSpace(req.Scope) == "" || strings.TrimSpace(req.Path) == "" {
		return nil, fmt.Errorf("%w: scope and path are required", ErrInvalidRequest)
	}
	start := time.Now()
	result := &Result{Request: req, Tree: &WorkingTree{Root: root}}
	if err := p.analyze(ctx, root, req, result); err != nil {
		return nil, err
	}
	result.Durations.Total = time.Since(start)
	return result, nil
}

func (p *Pipeline) analyze(ctx context.Context, root string, req Request, result *Result) error {
	result.ControllerRoot = p.locator.Locate(root, ControllerRoot)

	scanStart := time.Now()
	matches, stats, err := p.scanner.Scan(ctx, result.ControllerRoot, req.Scope, req.Path)
	result.Durations.Scan = time.Since(scanStart)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	result.Matches = matches
	result.Stats = stats
	result.Classification = Classify(matches)
	return nil
}

func validateRequest(req Request) error {
	var missing []string
	if strings.TrimSpace(req.RepoURL) == "" {
		missing = append(missing, "repo_url")
	}
	if strings.TrimSpace(req.Scope) == "" {
		missing = append(missing, "scope")
	}
	if strings.TrimSpace(req.Path) == "" {
		missing = append(missing, "path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}
