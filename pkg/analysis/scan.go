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
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// routingMarkers are the method-level annotations that bind a route.
var routingMarkers = []string{"GetMapping", "PostMapping", "RequestMapping"}

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	// Extensions lists the source file extensions to parse. Default: [".java"].
	Extensions []string

	// Workers bounds concurrent parses. Default: runtime.NumCPU().
	Workers int

	// MaxFileSize skips larger files. Zero means no limit.
	MaxFileSize int64

	// ParserMode selects the parser. Default: DefaultParserMode.
	ParserMode ParserMode
}

// Scanner walks a source tree and reports files whose methods carry the
// requested scope or path.
type Scanner struct {
	parser     SourceParser
	extensions map[string]bool
	workers    int
	maxSize    int64
	logger     *slog.Logger
}

// NewScanner creates a Scanner with the parser selected by cfg.ParserMode.
func NewScanner(cfg ScannerConfig, logger *slog.Logger) (*Scanner, error) {
	parser, err := NewSourceParser(cfg.ParserMode, logger)
	if err != nil {
		return nil, err
	}
	return NewScannerWithParser(parser, cfg, logger), nil
}

// NewScannerWithParser creates a Scanner around an existing parser.
// cfg.ParserMode is ignored.
func NewScannerWithParser(parser SourceParser, cfg ScannerConfig, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = []string{".java"}
	}
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scanner{
		parser:     parser,
		extensions: extSet,
		workers:    workers,
		maxSize:    cfg.MaxFileSize,
		logger:     logger,
	}
}

// scanOutcome is the per-file result, stored by walk index so that the
// final match list keeps walk order regardless of parse scheduling.
type scanOutcome struct {
	match    *ScopeMatch
	parsed   bool
	skipped  bool
	endpoint bool
}

// Scan walks root depth-first, visiting directory entries in lexicographic
// order, and returns one ScopeMatch per file with a positive signal.
//
// Unparseable files are logged and skipped. A missing root yields an
// empty result. The only error returned is a cancellation of ctx.
func (s *Scanner) Scan(ctx context.Context, root, scope, path string) ([]ScopeMatch, ScanStats, error) {
	var stats ScanStats
	start := time.Now()

	files := s.collect(root)
	stats.FilesSeen = len(files)
	if len(files) == 0 {
		return nil, stats, ctx.Err()
	}

	outcomes := make([]scanOutcome, len(files))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, file := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = s.scanFile(ctx, file, scope, path)
			return nil
		})
	}
	_ = g.Wait()

	var matches []ScopeMatch
	for _, o := range outcomes {
		if o.parsed {
			stats.FilesParsed++
		}
		if o.skipped {
			stats.ParseSkips++
		}
		if o.endpoint {
			stats.EndpointUnits++
		}
		if o.match != nil {
			matches = append(matches, *o.match)
		}
	}
	stats.Matches = len(matches)

	recordScan(stats, time.Since(start))
	s.logger.Info("scan.complete",
		"root", root,
		"files", stats.FilesSeen,
		"parsed", stats.FilesParsed,
		"skipped", stats.ParseSkips,
		"endpoints", stats.EndpointUnits,
		"matches", stats.Matches,
	)
	return matches, stats, ctx.Err()
}

// collect lists the source files below root in walk order.
func (s *Scanner) collect(root string) []string {
	if _, err := os.Stat(root); err != nil {
		s.logger.Warn("scan.root.missing", "root", root, "err", err)
		return nil
	}

	var files []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("scan.walk.error", "path", p, "err", err)
			if d != nil && d.IsDir() && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !s.extensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		if s.maxSize > 0 {
			if info, err := d.Info(); err == nil && info.Size() > s.maxSize {
				s.logger.Debug("scan.file.too_large", "path", p, "size", info.Size())
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files
}

func (s *Scanner) scanFile(ctx context.Context, file, scope, path string) scanOutcome {
	content, err := os.ReadFile(file)
	if err != nil {
		s.logger.Warn("scan.file.read_error", "path", file, "err", err)
		return scanOutcome{skipped: true}
	}

	unit, err := s.parser.ParseFile(ctx, file, content)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			s.logger.Warn("scan.file.parse_skip", "path", file, "err", err)
		} else {
			s.logger.Warn("scan.file.error", "path", file, "err", err)
		}
		return scanOutcome{skipped: true}
	}

	out := scanOutcome{parsed: true, endpoint: unit.EndpointBearing}
	out.match = s.evaluate(unit, scope, path)
	return out
}

// evaluate applies the matching rules to one parsed unit. Only
// endpoint-bearing units are considered; flags are OR-ed across methods.
func (s *Scanner) evaluate(unit *SourceUnit, scope, path string) *ScopeMatch {
	if !unit.EndpointBearing {
		return nil
	}

	name := filepath.Base(unit.Path)
	var scopeFound, pathFound bool
	for _, m := range unit.Methods {
		if found, sigil := MatchScope(m, scope); found {
			scopeFound = true
			s.logger.Info("scan.method.scope", "file", name, "method", m.Name, "scope", scope, "sigil", sigil)
		}
		if MatchPath(m, path) {
			pathFound = true
			s.logger.Info("scan.method.path", "file", name, "method", m.Name, "path", path)
		}
	}

	if !scopeFound && !pathFound {
		return nil
	}
	s.logger.Debug("scan.file.match", "file", name, "scope_found", scopeFound, "path_found", pathFound)
	return &ScopeMatch{
		FilePath:     unit.Path,
		DisplayName:  name,
		ScopeFound:   scopeFound,
		PathFound:    pathFound,
		MatchedScope: scope,
	}
}

// MatchScope reports whether m carries @PreAuthorize referencing scope
// through oauth2.hasScope('<scope>'). sigil reports whether the
// '#'-prefixed form was the one found. Both forms are accepted.
func MatchScope(m Method, scope string) (found, sigil bool) {
	if scope == "" {
		return false, false
	}
	mk, ok := m.Marker("PreAuthorize")
	if !ok {
		return false, false
	}
	expr := "oauth2.hasScope('" + scope + "')"
	if strings.Contains(mk.Text, "#"+expr) {
		return true, true
	}
	return strings.Contains(mk.Text, expr), false
}

// MatchPath reports whether any routing marker of m contains path as
// path = "<path>", value = "<path>" or a bare "<path>" literal.
func MatchPath(m Method, path string) bool {
	if path == "" {
		return false
	}
	quoted := `"` + path + `"`
	for _, name := range routingMarkers {
		mk, ok := m.Marker(name)
		if !ok {
			continue
		}
		if strings.Contains(mk.Text, "path = "+quoted) ||
			strings.Contains(mk.Text, "value = "+quoted) ||
			strings.Contains(mk.Text, quoted) {
			return true
		}
	}
	return false
}
