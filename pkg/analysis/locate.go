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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DirectoryKind selects which sub-tree the Locator looks for.
type DirectoryKind string

const (
	// ControllerRoot is the package holding request-handling classes.
	ControllerRoot DirectoryKind = "controller"

	// TestRoot is the root of the test sources.
	TestRoot DirectoryKind = "test"

	// SourceRoot is the root of the main sources.
	SourceRoot DirectoryKind = "source"
)

// DefaultCandidates are the conventional relative paths tried, in order,
// for each DirectoryKind.
var DefaultCandidates = map[DirectoryKind][]string{
	ControllerRoot: {
		"resource-service-main/src/main/java/com/example/demo/controller",
		"src/main/java/com/example/demo/controller",
		"main/src/main/java/com/example/demo/controller",
		"resource-service-main/src/main/java/controller",
		"src/main/java/controller",
	},
	TestRoot: {
		"src/test/java",
		"resource-service-main/src/test/java",
		"main/src/test/java",
	},
	SourceRoot: {
		"src/main/java",
		"resource-service-main/src/main/java",
		"main/src/main/java",
	},
}

// fallbackSuffix is the path suffix searched for when no candidate exists.
var fallbackSuffix = map[DirectoryKind]string{
	ControllerRoot: "controller",
	TestRoot:       filepath.Join("src", "test", "java"),
	SourceRoot:     filepath.Join("src", "main", "java"),
}

// Locator resolves DirectoryKinds inside a working tree. It never fails:
// when nothing matches, the working directory itself is returned.
type Locator struct {
	candidates map[DirectoryKind][]string
	logger     *slog.Logger
}

// NewLocator creates a Locator. Kinds missing from candidates use
// DefaultCandidates. A nil logger uses slog.Default().
func NewLocator(candidates map[DirectoryKind][]string, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	merged := make(map[DirectoryKind][]string, len(DefaultCandidates))
	for k, v := range DefaultCandidates {
		merged[k] = v
	}
	for k, v := range candidates {
		if len(v) > 0 {
			merged[k] = v
		}
	}
	return &Locator{candidates: merged, logger: logger}
}

// Locate returns the directory of the given kind inside workingDir.
//
// Resolution order:
//  1. the first candidate that exists and is a directory
//  2. the first directory matching the kind's fallback name in a
//     depth-first, lexicographic walk
//  3. workingDir unchanged
func (l *Locator) Locate(workingDir string, kind DirectoryKind) string {
	for _, rel := range l.candidates[kind] {
		full := filepath.Join(workingDir, filepath.FromSlash(rel))
		if isDir(full) {
			l.logger.Debug("locate.candidate", "kind", kind, "path", full)
			return full
		}
	}

	if suffix, ok := fallbackSuffix[kind]; ok {
		if found, ok := findDir(workingDir, suffix); ok {
			l.logger.Info("locate.fallback", "kind", kind, "path", found)
			return found
		}
	}

	l.logger.Warn("locate.miss", "kind", kind, "working_dir", workingDir)
	return workingDir
}

// errFound stops a WalkDir once the target directory is seen.
var errFound = errors.New("found")

// findDir walks root depth-first in lexicographic order and returns the
// first directory whose path ends with suffix. root itself never matches.
func findDir(root, suffix string) (string, bool) {
	var found string
	sep := string(filepath.Separator)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, the walk goes on.
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if path == filepath.Join(root, suffix) || strings.HasSuffix(path, sep+suffix) {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", false
	}
	return found, found != ""
}

// FindTestClass looks for <className>Test.java or <className>Tests.java
// below the test root of projectRoot.
func (l *Locator) FindTestClass(projectRoot, className string) (string, bool) {
	className = strings.TrimSuffix(className, ".java")
	testRoot := l.Locate(projectRoot, TestRoot)
	wanted := map[string]bool{
		className + "Test.java":  true,
		className + "Tests.java": true,
	}

	var found string
	_ = filepath.WalkDir(testRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && wanted[d.Name()] {
			found = path
			return errFound
		}
		return nil
	})
	if found != "" {
		l.logger.Info("locate.test_class.found", "class", className, "path", found)
		return found, true
	}
	l.logger.Debug("locate.test_class.missing", "class", className, "test_root", testRoot)
	return "", false
}

// ProjectRoot returns the directory that contains the "src" directory of
// sourcePath. When sourcePath has no "src" component, its parent
// directory is returned.
func ProjectRoot(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	for d := dir; ; {
		if filepath.Base(d) == "src" {
			return filepath.Dir(d)
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	return dir
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
