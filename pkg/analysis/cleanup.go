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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// unsafeIDChars are replaced in request ids used as directory names.
var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Workspace is the request-scoped directory that holds the downloaded
// archive and its working tree. Close removes everything exactly once.
type Workspace struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	archive *ArchiveHandle
	tree    *WorkingTree

	once sync.Once
}

// NewWorkspace creates a unique directory below baseDir for one request.
// An empty baseDir uses os.TempDir().
func NewWorkspace(baseDir, requestID string, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	pattern := "routescope-*"
	if id := unsafeIDChars.ReplaceAllString(requestID, ""); id != "" {
		pattern = "routescope-" + id + "-*"
	}
	dir, err := os.MkdirTemp(baseDir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir, logger: logger}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// ArchivePath is where the fetcher writes the archive.
func (w *Workspace) ArchivePath() string { return filepath.Join(w.dir, "archive.zip") }

// TreeDir is where the extractor writes the working tree.
func (w *Workspace) TreeDir() string { return filepath.Join(w.dir, "tree") }

// Track registers the artifacts that Close must delete. Nil values are
// ignored, so partial results from failed stages can be passed as is.
func (w *Workspace) Track(archive *ArchiveHandle, tree *WorkingTree) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if archive != nil {
		w.archive = archive
	}
	if tree != nil {
		w.tree = tree
	}
}

// Close deletes the tracked archive and working tree, then the workspace
// directory. Errors are logged and never returned; calling Close more
// than once is a no-op.
func (w *Workspace) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		archive, tree := w.archive, w.tree
		w.mu.Unlock()

		errs := Cleanup(archive, tree, w.logger)
		if err := os.RemoveAll(w.dir); err != nil {
			errs = append(errs, &CleanupError{Path: w.dir, Err: err})
			w.logger.Warn("cleanup.error", "path", w.dir, "err", err)
		}
		if len(errs) == 0 {
			w.logger.Debug("cleanup.complete", "workspace", w.dir)
		}
	})
}

// Cleanup deletes the archive file and working tree. Missing paths are
// not errors. Failures are logged, counted, and returned for inspection
// only: callers must not treat them as request failures.
func Cleanup(archive *ArchiveHandle, tree *WorkingTree, logger *slog.Logger) []*CleanupError {
	if logger == nil {
		logger = slog.Default()
	}
	var errs []*CleanupError

	if archive != nil && archive.Path != "" {
		if err := os.Remove(archive.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, &CleanupError{Path: archive.Path, Err: err})
		} else {
			logger.Debug("cleanup.archive", "path", archive.Path)
		}
	}

	if tree != nil && tree.Root != "" {
		if err := os.RemoveAll(tree.Root); err != nil {
			errs = append(errs, &CleanupError{Path: tree.Root, Err: err})
		} else {
			logger.Debug("cleanup.tree", "path", tree.Root)
		}
	}

	for _, e := range errs {
		logger.Warn("cleanup.error", "path", e.Path, "err", e.Err)
		recordCleanupError()
	}
	return errs
}
