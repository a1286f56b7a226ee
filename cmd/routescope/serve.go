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
	"log/slog"
	"net/http"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/routescope/internal/errors"
	"github.com/kraklabs/routescope/internal/ui"
	"github.com/kraklabs/routescope/pkg/server"
)

// runServe executes the 'serve' command: the HTTP API over the same
// pipeline and dispatcher as analyze.
func runServe(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "", "Listen address (default: config server.addr or ROUTESCOPE_ADDR)")
	dryRun := fs.Bool("dry-run", false, "Answer through the mock agent")
	shutdownTimeout := fs.Duration("shutdown-timeout", 30*time.Second, "Grace period for in-flight requests")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: routescope serve [options]

Routes:
  POST /api/chat     {"message": "scope: S, path: P", "type": "controller"}
  POST /api/analyze  {"message": "scope: S, url: P"}
  POST /api/scan     {"repo_url": "...", "scope": "S", "path": "P"}
  GET  /health
  GET  /metrics

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
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	srv, err := newServer(context.Background(), cfg, *dryRun, logger)
	if err != nil {
		errors.FatalError(userError(err), globals.JSON)
	}

	ctx, cancel := signalContext(context.Background(), 0, logger)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	if !globals.Quiet {
		ui.Successf("Listening on %s", srv.Addr())
		ui.Field("Repository:", ui.DimText(cfg.RepoURL))
		ui.Field("Provider:", cfg.provider())
	}

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errors.FatalError(errors.NewNetworkError("HTTP server failed", err.Error(),
				"Check that the address is free", err), globals.JSON)
		}
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server.shutdown.error", "err", err)
		}
		logger.Info("server.stopped")
	}
}

func newServer(ctx context.Context, cfg *Config, dryRun bool, logger *slog.Logger) (*server.Server, error) {
	if err := cfg.Validate(!dryRun); err != nil {
		var missing *missingSettingsError
		if stderrors.As(err, &missing) {
			return nil, err
		}
		return nil, errors.NewConfigError("Invalid configuration", err.Error(), "Check the chat and upload settings", err)
	}
	pipeline, err := newPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}
	dispatcher, err := newDispatcher(ctx, cfg, pipeline.Locator(), dryRun, logger)
	if err != nil {
		return nil, err
	}
	return server.New(server.Config{
		Addr:             cfg.Server.Addr,
		RepoURL:          cfg.RepoURL,
		AllowedRepoHosts: cfg.Server.AllowedHosts,
		RequestTimeout:   cfg.Server.RequestTimeout,
		Pipeline:         pipeline,
		Dispatcher:       dispatcher,
	}, logger)
}
