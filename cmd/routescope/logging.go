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
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kraklabs/routescope/internal/errors"
)

// parseSlogLevel maps a level name or number to a slog.Level.
func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}
	return defaultLevel
}

// newLogger builds the process logger. Records go to fallback unless
// cfg.File is set, in which case the file is rotated by lumberjack. The
// returned closer releases the file and is never nil.
func newLogger(cfg LogConfig, debug bool, fallback io.Writer) (*slog.Logger, io.Closer) {
	level := parseSlogLevel(cfg.Level, slog.LevelInfo)
	if debug {
		level = slog.LevelDebug
	}

	var (
		w      = fallback
		closer io.Closer = nopCloser{}
	)
	if strings.TrimSpace(cfg.File) != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w, closer = lj, lj
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupRuntime loads the configuration and installs the logger. Failures
// exit the process. The returned func flushes the log file.
func setupRuntime(configPath string, globals GlobalFlags) (*Config, *slog.Logger, func()) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load routescope configuration",
			err.Error(),
			"Fix the YAML file or pass a different --config",
			err,
		), globals.JSON)
	}

	logger, closer := newLogger(cfg.Log, globals.Debug, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, func() { _ = closer.Close() }
}
