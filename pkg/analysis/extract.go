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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Extractor unpacks zip archives into a target directory.
type Extractor interface {
	Extract(archivePath, targetDir string) (*WorkingTree, error)
}

var _ Extractor = (*ZipExtractor)(nil)

// ZipExtractor writes every archive entry in archive order, creating
// directories idempotently and truncating files that already exist.
type ZipExtractor struct {
	logger *slog.Logger
}

// NewZipExtractor creates a ZipExtractor. A nil logger uses slog.Default().
func NewZipExtractor(logger *slog.Logger) *ZipExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ZipExtractor{logger: logger}
}

// Extract unpacks archivePath into targetDir.
//
// Extraction is not transactional: when an entry fails, the returned
// WorkingTree still points at targetDir (partially populated) alongside
// the error, so that the caller can clean it up.
func (x *ZipExtractor) Extract(archivePath, targetDir string) (*WorkingTree, error) {
	tree := &WorkingTree{Root: targetDir}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		if r != nil {
			_ = r.Close()
		}
		return tree, &ExtractionError{Archive: archivePath, Err: err}
	}
	defer func() { _ = r.Close() }()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return tree, &ExtractionError{Archive: archivePath, Err: err}
	}

	x.logger.Info("archive.extract.start", "archive", archivePath, "target", targetDir, "entries", len(r.File))

	for _, f := range r.File {
		if err := x.extractEntry(f, targetDir); err != nil {
			return tree, &ExtractionError{Archive: archivePath, Entry: f.Name, Err: err}
		}
		tree.Entries++
	}

	x.logger.Info("archive.extract.complete", "target", targetDir, "entries", tree.Entries)
	return tree, nil
}

func (x *ZipExtractor) extractEntry(f *zip.File, targetDir string) error {
	dest, err := entryPath(targetDir, f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// entryPath resolves an archive entry name below targetDir, rejecting
// names that would escape it.
func entryPath(targetDir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry escapes extraction directory: %s", name)
	}
	return filepath.Join(targetDir, clean), nil
}
