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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/routescope/internal/errors"
	"github.com/kraklabs/routescope/internal/output"
	"github.com/kraklabs/routescope/internal/ui"
	"github.com/kraklabs/routescope/pkg/analysis"
)

// scanReport is the outcome of one scan run.
type scanReport struct {
	Root           string                  `json:"root"`
	ControllerRoot string                  `json:"controller_root"`
	Scope          string                  `json:"scope"`
	Path           string                  `json:"path"`
	Classification analysis.Classification `json:"classification"`
	Matches        []analysis.ScopeMatch   `json:"matches"`
	Stats          analysis.ScanStats      `json:"stats"`
	Durations      analysis.StageDurations `json:"durations"`
}

// runScan executes the 'scan' command against a local source tree.
func runScan(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	dir := fs.StringP("dir", "d", ".", "Source tree to scan")
	scope := fs.StringP("scope", "s", "", "OAuth scope guarding the endpoint (required)")
	path := fs.StringP("path", "p", "", "Route path template (required)")
	parser := fs.String("parser", "", "Parser: treesitter or simplified (default: config scan.parser)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: routescope scan --dir DIR --scope S --path P [options]

Description:
  Locate the controller directory below DIR, scan it and print the
  classification. Nothing is downloaded, deleted or sent to an agent.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(errors.ExitInput)
	}

	cfg, logger, flush := setupRuntime(configPath, globals)
	defer flush()
	if *parser != "" {
		cfg.Scan.Parser = *parser
	}

	ctx, cancel := signalContext(context.Background(), 0, logger)
	defer cancel()

	var report *scanReport
	err := withSpinner(NewProgressConfig(globals), "Scanning sources", func() error {
		var scanErr error
		report, scanErr = executeScan(ctx, cfg, *dir, *scope, *path, logger)
		return scanErr
	})
	if err != nil {
		errors.FatalError(userError(err), globals.JSON)
	}
	if err := renderScan(stdout, report, globals); err != nil {
		errors.FatalError(userError(err), globals.JSON)
	}
}

func executeScan(ctx context.Context, cfg *Config, dir, scope, path string, logger *slog.Logger) (*scanReport, error) {
	if scope == "" || path == "" {
		return nil, errors.NewInputError("Missing --scope or --path",
			"Both the OAuth scope and the route path are required",
			"Example: routescope scan --dir . --scope orders --path /orders")
	}
	if err := cfg.Validate(false); err != nil {
		return nil, errors.NewConfigError("Invalid configuration", err.Error(), "Check the scan settings", err)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errors.NewNotFoundError("Directory not found",
			fmt.Sprintf("%s is not a directory", root),
			"Pass an existing source tree with --dir")
	}

	pipeline, err := newPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}
	result, err := pipeline.Analyze(ctx, root, analysis.Request{Scope: scope, Path: path})
	if err != nil {
		return nil, err
	}
	return &scanReport{
		Root:           root,
		ControllerRoot: result.ControllerRoot,
		Scope:          scope,
		Path:           path,
		Classification: result.Classification,
		Matches:        result.Matches,
		Stats:          result.Stats,
		Durations:      result.Durations,
	}, nil
}

func renderScan(w io.Writer, r *scanReport, globals GlobalFlags) error {
	if globals.JSON {
		return output.Command(w, "scan", "", r)
	}

	ui.Header("Source Scan")
	ui.Field("Root:", ui.DimText(r.ControllerRoot))
	ui.Field("Scope:", r.Scope)
	ui.Field("Path:", r.Path)
	renderClassification(r.Classification, r.Stats, r.Durations.Total)

	if len(r.Matches) > 1 {
		fmt.Fprintln(ui.Out)
		ui.Info("Other candidates:")
		for _, m := range r.Matches {
			if r.Classification.Match != nil && m.FilePath == r.Classification.Match.FilePath {
				continue
			}
			fmt.Fprintf(ui.Out, "  %s scope=%t path=%t\n", m.DisplayName, m.ScopeFound, m.PathFound)
		}
	}
	return nil
}
