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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func match(file string, scope, path bool) ScopeMatch {
	return ScopeMatch{FilePath: file, DisplayName: file, ScopeFound: scope, PathFound: path, MatchedScope: "orders"}
}

// TestClassify tests the tier order and first-in-list tie-break.
func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		matches  []ScopeMatch
		wantKind Kind
		wantFile string
	}{
		{
			name:     "empty list",
			matches:  nil,
			wantKind: NoMatch,
		},
		{
			name:     "single dual match",
			matches:  []ScopeMatch{match("A.java", true, true)},
			wantKind: AlreadyExists,
			wantFile: "A.java",
		},
		{
			name: "dual match wins over earlier scope-only",
			matches: []ScopeMatch{
				match("A.java", true, false),
				match("B.java", false, true),
				match("C.java", true, true),
			},
			wantKind: AlreadyExists,
			wantFile: "C.java",
		},
		{
			name: "first dual match wins",
			matches: []ScopeMatch{
				match("A.java", true, true),
				match("B.java", true, true),
			},
			wantKind: AlreadyExists,
			wantFile: "A.java",
		},
		{
			name: "first scope-only wins",
			matches: []ScopeMatch{
				match("A.java", false, true),
				match("B.java", true, false),
				match("C.java", true, false),
			},
			wantKind: ScopeOnly,
			wantFile: "B.java",
		},
		{
			name: "path-only entries give no match",
			matches: []ScopeMatch{
				match("A.java", false, true),
				match("B.java", false, true),
			},
			wantKind: NoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.matches)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantFile, got.File())
			if tt.wantKind == NoMatch {
				assert.Nil(t, got.Match)
			}
		})
	}
}

// TestClassify_ScopeOnlyCarriesScope verifies the matched scope travels
// with the classification.
func TestClassify_ScopeOnlyCarriesScope(t *testing.T) {
	got := Classify([]ScopeMatch{{FilePath: "X.java", ScopeFound: true, MatchedScope: "billing"}})

	require.Equal(t, ScopeOnly, got.Kind)
	require.NotNil(t, got.Match)
	assert.Equal(t, "billing", got.Match.MatchedScope)
}

// TestClassify_DoesNotAliasInput verifies the result does not point into
// the caller's slice.
func TestClassify_DoesNotAliasInput(t *testing.T) {
	in := []ScopeMatch{match("A.java", true, true)}
	got := Classify(in)
	in[0].FilePath = "changed"

	assert.Equal(t, "A.java", got.File())
}

// TestKind_String tests wire names and parsing.
func TestKind_String(t *testing.T) {
	for _, k := range []Kind{AlreadyExists, ScopeOnly, NoMatch} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("maybe")
	assert.Error(t, err)
}

// TestClassification_MarshalJSON tests the JSON shape.
func TestClassification_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Classification{Kind: NoMatch})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"no_match"}`, string(data))

	m := match("A.java", true, true)
	data, err = json.Marshal(Classification{Kind: AlreadyExists, Match: &m})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"already_exists"`)
	assert.Contains(t, string(data), `"file_path":"A.java"`)
}
