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
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rstest "github.com/kraklabs/routescope/internal/testing"
)

func newTestScanner(t *testing.T, mode ParserMode) *Scanner {
	t.Helper()
	s, err := NewScanner(ScannerConfig{ParserMode: mode, Workers: 4}, nil)
	require.NoError(t, err)
	return s
}

// TestScanner_SkipsMalformedFile tests that a file with broken syntax is
// skipped while a well-formed controller still matches.
func TestScanner_SkipsMalformedFile(t *testing.T) {
	root := t.TempDir()
	rstest.WriteTree(t, root, map[string]string{
		"Broken.java": "@RestController public class Broken { @GetMapping(\"/orders\" public void x( {",
		"OrderController.java": rstest.ControllerSource("x", "OrderController", "RestController",
			rstest.EndpointMethod{Name: "get", Scope: "orders", Mapping: `@GetMapping(path = "/orders")`}),
	})

	matches, stats, err := newTestScanner(t, ParserModeTreeSitter).Scan(context.Background(), root, "orders", "/orders")
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "OrderController.java", matches[0].DisplayName)
	assert.True(t, matches[0].ScopeFound)
	assert.True(t, matches[0].PathFound)
	assert.Equal(t, 2, stats.FilesSeen)
	assert.Equal(t, 1, stats.ParseSkips)
	assert.Equal(t, 1, stats.FilesParsed)
}

// TestScanner_WalkOrder tests that results follow depth-first,
// lexicographic order regardless of worker scheduling.
func TestScanner_WalkOrder(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	names := []string{"a/Z.java", "a/b/A.java", "b/M.java", "C.java", "a/B.java"}
	for _, n := range names {
		class := filepath.Base(n[:len(n)-len(".java")])
		files[n] = rstest.ControllerSource("x", class, "RestController",
			rstest.EndpointMethod{Name: "m", Scope: "orders"})
	}
	rstest.WriteTree(t, root, files)

	matches, _, err := newTestScanner(t, ParserModeTreeSitter).Scan(context.Background(), root, "orders", "/none")
	require.NoError(t, err)

	var got []string
	for _, m := range matches {
		rel, _ := filepath.Rel(root, m.FilePath)
		got = append(got, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"C.java", "a/B.java", "a/Z.java", "a/b/A.java", "b/M.java"}, got)
}

// TestScanner_Rules tests the scope and path matching rules per file.
func TestScanner_Rules(t *testing.T) {
	tests := []struct {
		name       string
		stereotype string
		methods    []rstest.EndpointMethod
		wantMatch  bool
		wantScope  bool
		wantPath   bool
	}{
		{
			name:       "sigil scope and path attribute",
			stereotype: "RestController",
			methods:    []rstest.EndpointMethod{{Name: "a", Scope: "orders", Mapping: `@GetMapping(path = "/orders/{id}")`}},
			wantMatch:  true, wantScope: true, wantPath: true,
		},
		{
			name:       "scope without sigil",
			stereotype: "Controller",
			methods:    []rstest.EndpointMethod{{Name: "a", Scope: "orders", NoSigil: true}},
			wantMatch:  true, wantScope: true,
		},
		{
			name:       "value attribute",
			stereotype: "RestController",
			methods:    []rstest.EndpointMethod{{Name: "a", Mapping: `@PostMapping(value = "/orders/{id}")`}},
			wantMatch:  true, wantPath: true,
		},
		{
			name:       "bare literal on request mapping",
			stereotype: "RestController",
			methods:    []rstest.EndpointMethod{{Name: "a", Mapping: `@RequestMapping("/orders/{id}")`}},
			wantMatch:  true, wantPath: true,
		},
		{
			name:       "flags are OR-ed across methods",
			stereotype: "RestController",
			methods: []rstest.EndpointMethod{
				{Name: "a", Scope: "orders"},
				{Name: "b", Mapping: `@GetMapping("/orders/{id}")`},
			},
			wantMatch: true, wantScope: true, wantPath: true,
		},
		{
			name:       "scope is case sensitive",
			stereotype: "RestController",
			methods:    []rstest.EndpointMethod{{Name: "a", Scope: "Orders"}},
		},
		{
			name:       "scope prefix does not match",
			stereotype: "RestController",
			methods:    []rstest.EndpointMethod{{Name: "a", Scope: "orders:write"}},
		},
		{
			name:       "path prefix does not match",
			stereotype: "RestController",
			methods:    []rstest.EndpointMethod{{Name: "a", Mapping: `@GetMapping("/orders/{id}/items")`}},
		},
		{
			name:       "unsupported mapping annotation",
			stereotype: "RestController",
			methods:    []rstest.EndpointMethod{{Name: "a", Mapping: `@DeleteMapping("/orders/{id}")`}},
		},
		{
			name:       "not a request-handling unit",
			stereotype: "Service",
			methods:    []rstest.EndpointMethod{{Name: "a", Scope: "orders", Mapping: `@GetMapping("/orders/{id}")`}},
		},
		{
			name:      "no type marker",
			methods:   []rstest.EndpointMethod{{Name: "a", Scope: "orders", Mapping: `@GetMapping("/orders/{id}")`}},
			wantMatch: false,
		},
	}

	for _, mode := range []ParserMode{ParserModeTreeSitter, ParserModeSimplified} {
		for _, tt := range tests {
			t.Run(string(mode)+"/"+tt.name, func(t *testing.T) {
				root := t.TempDir()
				rstest.WriteTree(t, root, map[string]string{
					"X.java": rstest.ControllerSource("x", "X", tt.stereotype, tt.methods...),
				})

				matches, _, err := newTestScanner(t, mode).Scan(context.Background(), root, "orders", "/orders/{id}")
				require.NoError(t, err)

				if !tt.wantMatch {
					assert.Empty(t, matches)
					return
				}
				require.Len(t, matches, 1)
				assert.Equal(t, tt.wantScope, matches[0].ScopeFound)
				assert.Equal(t, tt.wantPath, matches[0].PathFound)
				assert.Equal(t, "orders", matches[0].MatchedScope)
				assert.Equal(t, "X.java", matches[0].DisplayName)
			})
		}
	}
}

// TestScanner_IgnoresOtherExtensions tests that only .java files are parsed.
func TestScanner_IgnoresOtherExtensions(t *testing.T) {
	root := t.TempDir()
	src := rstest.ControllerSource("x", "X", "RestController", rstest.EndpointMethod{Name: "a", Scope: "orders"})
	rstest.WriteTree(t, root, map[string]string{
		"X.kt":       src,
		"X.java.bak": src,
		"notes.txt":  "oauth2.hasScope('orders')",
	})

	matches, stats, err := newTestScanner(t, ParserModeTreeSitter).Scan(context.Background(), root, "orders", "/x")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Zero(t, stats.FilesSeen)
}

// TestScanner_MissingRoot tests that a missing root is an empty result.
func TestScanner_MissingRoot(t *testing.T) {
	matches, stats, err := newTestScanner(t, ParserModeTreeSitter).Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), "orders", "/x")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Zero(t, stats.FilesSeen)
}

// TestScanner_RepeatedScans tests that one Scanner keeps parsing valid
// files across many sequential and concurrent scans.
func TestScanner_RepeatedScans(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for _, class := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		files[class+"Controller.java"] = rstest.ControllerSource("x", class+"Controller", "RestController",
			rstest.EndpointMethod{Name: "get", Scope: "orders", Mapping: `@GetMapping("/orders")`})
	}
	rstest.WriteTree(t, root, files)
	s := newTestScanner(t, ParserModeTreeSitter)

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		matches, stats, err := s.Scan(ctx, root, "orders", "/orders")
		cancel()
		require.NoError(t, err)
		require.Zero(t, stats.ParseSkips, "scan %d", i)
		require.Len(t, matches, 8, "scan %d", i)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			matches, stats, err := s.Scan(context.Background(), root, "orders", "/orders")
			assert.NoError(t, err)
			assert.Zero(t, stats.ParseSkips)
			assert.Len(t, matches, 8)
		}()
	}
	wg.Wait()
}

// TestScanner_CanceledContext tests that a canceled scan returns the
// cancellation and leaves the scanner usable.
func TestScanner_CanceledContext(t *testing.T) {
	root := t.TempDir()
	rstest.WriteTree(t, root, map[string]string{
		"OrderController.java": rstest.ControllerSource("x", "OrderController", "RestController",
			rstest.EndpointMethod{Name: "get", Scope: "orders", Mapping: `@GetMapping("/orders")`}),
	})
	s := newTestScanner(t, ParserModeTreeSitter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Scan(ctx, root, "orders", "/orders")
	require.ErrorIs(t, err, context.Canceled)

	matches, stats, err := s.Scan(context.Background(), root, "orders", "/orders")
	require.NoError(t, err)
	assert.Zero(t, stats.ParseSkips)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].PathFound)
}

// TestMatchScope tests sigil detection.
func TestMatchScope(t *testing.T) {
	m := Method{Markers: []Marker{{Name: "PreAuthorize", Text: `@PreAuthorize("#oauth2.hasScope('orders') and hasRole('ADMIN')")`}}}
	found, sigil := MatchScope(m, "orders")
	assert.True(t, found)
	assert.True(t, sigil)

	m = Method{Markers: []Marker{{Name: "PreAuthorize", Text: `@PreAuthorize("oauth2.hasScope('orders')")`}}}
	found, sigil = MatchScope(m, "orders")
	assert.True(t, found)
	assert.False(t, sigil)

	found, _ = MatchScope(m, "")
	assert.False(t, found)

	found, _ = MatchScope(Method{}, "orders")
	assert.False(t, found)
}

// TestMatchPath tests the three accepted path forms.
func TestMatchPath(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{`@GetMapping(path = "/a")`, true},
		{`@GetMapping(value = "/a")`, true},
		{`@GetMapping("/a")`, true},
		{`@GetMapping({"/b", "/a"})`, true},
		{`@GetMapping("/a/b")`, false},
		{`@GetMapping(path = "/ab")`, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			m := Method{Markers: []Marker{{Name: "GetMapping", Text: tt.text}}}
			assert.Equal(t, tt.want, MatchPath(m, "/a"))
		})
	}
}
