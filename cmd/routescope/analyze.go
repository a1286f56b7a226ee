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
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/routescope/internal/errors"
	"github.com/kraklabs/routescope/internal/output"
	"github.com/kraklabs/routescope/internal/ui"
	"github.com/kraklabs/routescope/pkg/analysis"
	"github.com/kraklabs/routescope/pkg/decision"
)

type analyzeOptions struct {
	RepoURL string
	Scope   string
	Path    string
	Type    string
	DryRun  bool
}

// analyzeReport is the outcome of one analyze run.
type analyzeReport struct {
	Request        analysis.Request        `json:"request"`
	Type           decision.Type           `json:"type"`
	Classification analysis.Classification `json:"classification"`
	Stats          analysis.ScanStats      `json:"stats"`
	Durations      analysis.StageDurations `json:"durations"`
	Reply          *decision.Reply         `json:"reply,omitempty"`
	DryRun         bool                    `json:"dry_run,omitempty"`
}

// runAnalyze executes the 'analyze' command: download the repository
// archive, classify the scope and path, and dispatch the outcome.
func runAnalyze(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	repo := fs.String("repo", "", "Repository archive URL (default: config repo_url)")
	scope := fs.StringP("scope", "s", "", "OAuth scope guarding the endpoint (required)")
	path := fs.StringP("path", "p", "", "Route path template, e.g. /orders/{id} (required)")
	typ := fs.StringP("type", "t", string(decision.TypeController), "Request type: controller or unit_test")
	dryRun := fs.Bool("dry-run", false, "Classify only; reply through the mock agent")
	timeout := fs.Duration("timeout", 5*time.Minute, "Total timeout, agents included")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: routescope analyze --scope S --path P [options]

Description:
  Download the repository archive, scan its controllers for the scope and
  path, then:
    already_exists  report the controller
    scope_only      ask the agent to add the path to the controller
    no_match        ask the agent to create a new endpoint
  With --type unit_test the agent writes or extends a unit test instead.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  routescope analyze --scope orders --path /orders/{id}
  routescope analyze -s orders -p /orders -t unit_test
  routescope analyze --repo file:///tmp/svc.zip -s orders -p /orders --dry-run
`)
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(errors.ExitInput)
	}

	cfg, logger, flush := setupRuntime(configPath, globals)
	defer flush()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := signalContext(context.Background(), *timeout, logger)
	defer cancel()

	opts := analyzeOptions{RepoURL: *repo, Scope: *scope, Path: *path, Type: *typ, DryRun: *dryRun}

	var report *analyzeReport
	err := withSpinner(NewProgressConfig(globals), "Analyzing repository", func() error {
		var runErr error
		report, runErr = executeAnalyze(ctx, cfg, opts, logger)
		return runErr
	})
	if err != nil {
		errors.FatalError(userError(err), globals.JSON)
	}
	if err := renderAnalyze(stdout, report, globals); err != nil {
		errors.FatalError(userError(err), globals.JSON)
	}
}

// executeAnalyze runs the pipeline with the decision handoff. When the
// handoff fails, the report is returned alongside the error.
func executeAnalyze(ctx context.Context, cfg *Config, opts analyzeOptions, logger *slog.Logger) (*analyzeReport, error) {
	if opts.Scope == "" || opts.Path == "" {
		return nil, errors.NewInputError("Missing --scope or --path",
			"Both the OAuth scope and the route path are required",
			"Example: routescope analyze --scope orders --path /orders/{id}")
	}
	if err := cfg.Validate(!opts.DryRun); err != nil {
		var missing *missingSettingsError
		if stderrors.As(err, &missing) {
			return nil, err
		}
		return nil, errors.NewConfigError("Invalid configuration", err.Error(), "Check the chat and upload settings", err)
	}
	repoURL := opts.RepoURL
	if repoURL == "" {
		repoURL = cfg.RepoURL
	}

	pipeline, err := newPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}
	dispatcher, err := newDispatcher(ctx, cfg, pipeline.Locator(), opts.DryRun, logger)
	if err != nil {
		return nil, err
	}

	typ := decision.ParseType(opts.Type)
	var reply decision.Reply
	result, err := pipeline.Run(ctx, analysis.Request{RepoURL: repoURL, Scope: opts.Scope, Path: opts.Path},
		dispatcher.Handoff(typ, &reply))
	if result == nil {
		return nil, err
	}

	report := &analyzeReport{
		Request:        result.Request,
		Type:           typ,
		Classification: result.Classification,
		Stats:          result.Stats,
		Durations:      result.Durations,
		DryRun:         opts.DryRun,
	}
	if err == nil {
		report.Reply = &reply
	}
	return report, err
}

func renderAnalyze(w io.Writer, r *analyzeReport, globals GlobalFlags) error {
	if globals.JSON {
		return output.Command(w, "analyze", r.Request.RequestID, r)
	}

	ui.Header("Endpoint Analysis")
	ui.Field("Repository:", ui.DimText(r.Request.RepoURL))
	ui.Field("Scope:", r.Request.Scope)
	ui.Field("Path:", r.Request.Path)
	ui.Field("Type:", string(r.Type))
	renderClassification(r.Classification, r.Stats, r.Durations.Total)
	fmt.Fprintln(ui.Out)

	if r.Reply != nil {
		if r.DryRun {
			ui.Warning("Dry run: no agent was called")
		}
		if r.Reply.Uploads > 0 {
			ui.Infof("Uploaded %d file(s)", r.Reply.Uploads)
		}
		fmt.Fprintln(ui.Out, r.Reply.Message)
	}
	return nil
}

// renderClassification prints the outcome lines shared by analyze and scan.
func renderClassification(c analysis.Classification, stats analysis.ScanStats, total time.Duration) {
	ui.Field("Outcome:", ui.Outcome(c.Kind.String()))
	if c.Match != nil {
		ui.Field("Class:", c.Match.DisplayName)
	}
	ui.Field("Files:", fmt.Sprintf("%d scanned, %d skipped", stats.FilesSeen, stats.ParseSkips))
	if total > 0 {
		ui.Field("Elapsed:", ui.DimText(total.Round(time.Millisecond).String()))
	}
	if stats.ParseSkips > 0 {
		ui.Warningf("%d file(s) could not be parsed", stats.ParseSkips)
	}
}

// signalContext derives a context that ends on SIGINT, SIGTERM or after
// timeout. A zero timeout disables the deadline.
func signalContext(parent context.Context, timeout time.Duration, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
		prev := cancel
		cancel = func() { cancelTimeout(); prev() }
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("shutdown.signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
