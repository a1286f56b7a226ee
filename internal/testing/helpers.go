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

package testing

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ZipEntry is one entry of a test archive. Names ending in "/" are
// directories.
type ZipEntry struct {
	Name string
	Body string
}

// BuildZip returns the bytes of a zip archive holding entries in order.
func BuildZip(t *testing.T, entries []ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		if strings.HasSuffix(e.Name, "/") {
			if _, err := w.Create(e.Name); err != nil {
				t.Fatalf("zip dir %s: %v", e.Name, err)
			}
			continue
		}
		f, err := w.Create(e.Name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", e.Name, err)
		}
		if _, err := f.Write([]byte(e.Body)); err != nil {
			t.Fatalf("zip write %s: %v", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes a zip archive built from entries to dir/name and
// returns its path.
func WriteZip(t *testing.T, dir, name string, entries []ZipEntry) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, BuildZip(t, entries), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}
	return path
}

// WriteTree creates files (relative path -> content) below root.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

// ListFiles returns the slash-separated relative paths of all regular
// files below root, sorted.
func ListFiles(t *testing.T, root string) []string {
	t.Helper()

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	sort.Strings(files)
	return files
}

// EndpointMethod describes one method of a generated controller.
type EndpointMethod struct {
	Name string
	// Scope is rendered as @PreAuthorize("#oauth2.hasScope('<Scope>')")
	// when set. NoSigil drops the leading '#'.
	Scope   string
	NoSigil bool
	// Mapping is the full routing annotation, e.g. `@GetMapping(path = "/x")`.
	Mapping string
}

// ControllerSource renders a Spring controller class. An empty
// stereotype produces a plain class with no type-level annotation.
func ControllerSource(pkg, class, stereotype string, methods ...EndpointMethod) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n\n", pkg)
	b.WriteString("import org.springframework.web.bind.annotation.*;\n\n")
	if stereotype != "" {
		fmt.Fprintf(&b, "@%s\n", stereotype)
	}
	fmt.Fprintf(&b, "public class %s {\n", class)
	for _, m := range methods {
		b.WriteString("\n")
		if m.Scope != "" {
			sigil := "#"
			if m.NoSigil {
				sigil = ""
			}
			fmt.Fprintf(&b, "    @PreAuthorize(\"%soauth2.hasScope('%s')\")\n", sigil, m.Scope)
		}
		if m.Mapping != "" {
			fmt.Fprintf(&b, "    %s\n", m.Mapping)
		}
		fmt.Fprintf(&b, "    public String %s() {\n        return \"ok\";\n    }\n", m.Name)
	}
	b.WriteString("}\n")
	return b.String()
}

// ArchiveServer serves body at every path and counts requests.
func ArchiveServer(t *testing.T, status int, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/zip")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}
