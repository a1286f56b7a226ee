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
	"fmt"
	"log/slog"
	"strings"
)

// SourceParser turns one source file into a SourceUnit.
//
// Implementations must be safe for concurrent use: the scanner may call
// ParseFile from several goroutines at once.
type SourceParser interface {
	// ParseFile parses content read from path. A file that cannot be
	// parsed returns a *ParseError.
	ParseFile(ctx context.Context, path string, content []byte) (*SourceUnit, error)
}

var _ SourceParser = (*JavaParser)(nil)
var _ SourceParser = (*SimplifiedParser)(nil)

// ParserMode selects the parser implementation.
type ParserMode string

const (
	// ParserModeTreeSitter uses the Tree-sitter Java grammar (default).
	ParserModeTreeSitter ParserMode = "treesitter"

	// ParserModeSimplified uses line-based annotation matching. It never
	// reports parse failures, so malformed files are still scanned.
	ParserModeSimplified ParserMode = "simplified"
)

// DefaultParserMode is the parser used when none is configured.
const DefaultParserMode = ParserModeTreeSitter

// NewSourceParser returns the parser for mode.
func NewSourceParser(mode ParserMode, logger *slog.Logger) (SourceParser, error) {
	switch ParserMode(strings.ToLower(string(mode))) {
	case ParserModeTreeSitter, "":
		return NewJavaParser(logger), nil
	case ParserModeSimplified:
		return NewSimplifiedParser(logger), nil
	default:
		return nil, fmt.Errorf("unknown parser mode: %s (supported: treesitter, simplified)", mode)
	}
}

// endpointMarkers are the type-level marker names that identify a
// request-handling unit.
var endpointMarkers = map[string]bool{
	"RestController": true,
	"Controller":     true,
}

// simpleName strips any package qualifier from an annotation name.
func simpleName(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(name, "@"))
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// isEndpointBearing reports whether any type marker identifies a
// request-handling unit.
func isEndpointBearing(markers []Marker) bool {
	for _, m := range markers {
		if endpointMarkers[m.Name] {
			return true
		}
	}
	return false
}
