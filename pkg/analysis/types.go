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
	"fmt"
	"time"
)

// ArchiveHandle references a downloaded archive on local disk.
type ArchiveHandle struct {
	URL  string // Source URL the archive was fetched from
	Path string // Local path of the archive file
	Size int64  // Byte length written to Path
}

// WorkingTree is the directory produced by extracting an archive.
// It belongs to exactly one request.
type WorkingTree struct {
	Root    string
	Entries int // Number of archive entries processed
}

// Marker is a declarative annotation attached to a type or method.
type Marker struct {
	Name string // Simple name, qualified prefixes stripped (e.g. "GetMapping")
	Text string // Rendered annotation, e.g. `@GetMapping(path = "/orders")`
}

// Method is a parsed method declaration with its annotations.
type Method struct {
	Name    string
	Markers []Marker
}

// Marker returns the first marker with the given simple name.
func (m Method) Marker(name string) (Marker, bool) {
	for _, mk := range m.Markers {
		if mk.Name == name {
			return mk, true
		}
	}
	return Marker{}, false
}

// SourceUnit is one parsed source file.
type SourceUnit struct {
	Path            string
	TypeMarkers     []Marker
	Methods         []Method
	EndpointBearing bool // Set when a type-level marker names a request-handling unit
}

// ScopeMatch is the positive scan signal for one file.
type ScopeMatch struct {
	FilePath     string `json:"file_path"`
	DisplayName  string `json:"display_name"`
	ScopeFound   bool   `json:"scope_found"`
	PathFound    bool   `json:"path_found"`
	MatchedScope string `json:"matched_scope"`
}

// Kind enumerates the three classification outcomes.
type Kind int

const (
	// NoMatch means no file carried the requested scope.
	NoMatch Kind = iota

	// ScopeOnly means a file carries the scope but not the path.
	ScopeOnly

	// AlreadyExists means a file carries both the scope and the path.
	AlreadyExists
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case AlreadyExists:
		return "already_exists"
	case ScopeOnly:
		return "scope_only"
	case NoMatch:
		return "no_match"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind converts a wire name back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "already_exists":
		return AlreadyExists, nil
	case "scope_only":
		return ScopeOnly, nil
	case "no_match":
		return NoMatch, nil
	}
	return NoMatch, fmt.Errorf("unknown classification kind: %q", s)
}

// Classification is the single outcome of one analysis request.
// Match is nil for NoMatch.
type Classification struct {
	Kind  Kind
	Match *ScopeMatch
}

// File returns the matched file path, or "" for NoMatch.
func (c Classification) File() string {
	if c.Match == nil {
		return ""
	}
	return c.Match.FilePath
}

// MarshalJSON renders the classification as {"kind": ..., "match": ...}.
func (c Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string      `json:"kind"`
		Match *ScopeMatch `json:"match,omitempty"`
	}{Kind: c.Kind.String(), Match: c.Match})
}

// Request is the input of one pipeline run.
type Request struct {
	RepoURL   string `json:"repo_url"`
	Scope     string `json:"scope"`
	Path      string `json:"path"`
	RequestID string `json:"request_id,omitempty"`
}

// ScanStats summarizes one source scan.
type ScanStats struct {
	FilesSeen     int `json:"files_seen"`
	FilesParsed   int `json:"files_parsed"`
	ParseSkips    int `json:"parse_skips"`
	EndpointUnits int `json:"endpoint_units"`
	Matches       int `json:"matches"`
}

// StageDurations records the wall time of each pipeline stage.
type StageDurations struct {
	Fetch   time.Duration `json:"fetch"`
	Extract time.Duration `json:"extract"`
	Scan    time.Duration `json:"scan"`
	Total   time.Duration `json:"total"`
}

// Result is everything the pipeline hands to the decision collaborator.
type Result struct {
	Request        Request        `json:"request"`
	ControllerRoot string         `json:"controller_root"`
	Matches        []ScopeMatch   `json:"matches"`
	Classification Classification `json:"classification"`
	Stats          ScanStats      `json:"stats"`
	Durations      StageDurations `json:"durations"`

	// Tree is the working tree, valid only until the run returns.
	Tree *WorkingTree `json:"-"`
}
