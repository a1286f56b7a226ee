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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rstest "github.com/kraklabs/routescope/internal/testing"
)

var sampleEntries = []rstest.ZipEntry{
	{Name: "repo-main/"},
	{Name: "repo-main/src/"},
	{Name: "repo-main/src/main/java/App.java", Body: "class App {}"},
	{Name: "repo-main/README.md", Body: "readme"},
}

// TestZipExtractor_Extract tests a plain extraction.
func TestZipExtractor_Extract(t *testing.T) {
	dir := t.TempDir()
	archive := rstest.WriteZip(t, dir, "repo.zip", sampleEntries)
	target := filepath.Join(dir, "out")

	tree, err := NewZipExtractor(nil).Extract(archive, target)
	require.NoError(t, err)

	assert.Equal(t, target, tree.Root)
	assert.Equal(t, len(sampleEntries), tree.Entries)
	assert.Equal(t, []string{"repo-main/README.md", "repo-main/src/main/java/App.java"}, rstest.ListFiles(t, target))
	assert.DirExists(t, filepath.Join(target, "repo-main", "src"))
}

// TestZipExtractor_Idempotent tests that a second extraction of the same
// archive yields the same file set with the same content.
func TestZipExtractor_Idempotent(t *testing.T) {
	dir := t.TempDir()
	archive := rstest.WriteZip(t, dir, "repo.zip", sampleEntries)
	target := filepath.Join(dir, "out")
	x := NewZipExtractor(nil)

	_, err := x.Extract(archive, target)
	require.NoError(t, err)
	first := rstest.ListFiles(t, target)

	_, err = x.Extract(archive, target)
	require.NoError(t, err)
	assert.Equal(t, first, rstest.ListFiles(t, target))

	body, err := os.ReadFile(filepath.Join(target, "repo-main", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "readme", string(body))
}

// TestZipExtractor_Overwrites tests that existing files are truncated
// rather than appended to.
func TestZipExtractor_Overwrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out")
	rstest.WriteTree(t, target, map[string]string{
		"repo-main/README.md": "a much longer stale readme body",
	})

	archive := rstest.WriteZip(t, dir, "repo.zip", sampleEntries)
	_, err := NewZipExtractor(nil).Extract(archive, target)
	require.NoError(t, err)

	body, err := os.ReadFile(filepath.Join(target, "repo-main", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "readme", string(body))
}

// TestZipExtractor_FileWithoutDirEntries tests that parents are created
// for files whose directories have no entry of their own.
func TestZipExtractor_FileWithoutDirEntries(t *testing.T) {
	dir := t.TempDir()
	archive := rstest.WriteZip(t, dir, "repo.zip", []rstest.ZipEntry{
		{Name: "a/b/c/deep.txt", Body: "deep"},
	})
	target := filepath.Join(dir, "out")

	_, err := NewZipExtractor(nil).Extract(archive, target)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(target, "a", "b", "c", "deep.txt"))
}

// TestZipExtractor_CorruptArchive tests that an unreadable archive is an
// ExtractionError.
func TestZipExtractor_CorruptArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "broken.zip")
	require.NoError(t, os.WriteFile(archive, []byte("definitely not a zip"), 0o644))

	tree, err := NewZipExtractor(nil).Extract(archive, filepath.Join(dir, "out"))
	require.Error(t, err)

	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, archive, ee.Archive)
	assert.True(t, IsFatal(err))
	require.NotNil(t, tree, "partial tree must still be returned for cleanup")
}

// TestZipExtractor_RejectsEscapingEntry tests entries that would be
// written outside the target directory.
func TestZipExtractor_RejectsEscapingEntry(t *testing.T) {
	dir := t.TempDir()
	archive := rstest.WriteZip(t, dir, "evil.zip", []rstest.ZipEntry{
		{Name: "ok.txt", Body: "fine"},
		{Name: "../escaped.txt", Body: "bad"},
	})
	target := filepath.Join(dir, "out")

	tree, err := NewZipExtractor(nil).Extract(archive, target)

	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	require.NotNil(t, tree)
	assert.Equal(t, target, tree.Root)
	assert.NoFileExists(t, filepath.Join(dir, "escaped.txt"))
}

// TestEntryPath tests entry name resolution.
func TestEntryPath(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		want    string
		wantErr bool
	}{
		{name: "nested file", entry: "a/b.txt", want: filepath.Join("root", "a", "b.txt")},
		{name: "dot segments inside", entry: "a/./c/../b.txt", want: filepath.Join("root", "a", "b.txt")},
		{name: "parent escape", entry: "../x", wantErr: true},
		{name: "deep escape", entry: "a/../../x", wantErr: true},
		{name: "bare parent", entry: "..", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := entryPath("root", tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
