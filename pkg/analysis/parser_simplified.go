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
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// =============================================================================
// SIMPLIFIED PARSER
// =============================================================================

var (
	// annotationPattern matches the start of an annotation: @Name or @a.b.Name(
	annotationPattern = regexp.MustCompile(`^@([\w.]+)\s*(\(.*)?$`)

	// typeDeclPattern matches a class-like declaration line.
	typeDeclPattern = regexp.MustCompile(`\b(class|interface|enum|record)\s+\w+`)

	// methodDeclPattern matches `<type> name(` at the start of a member.
	methodDeclPattern = regexp.MustCompile(`^(?:[\w<>\[\],.?\s]+\s+)(\w+)\s*\(`)
)

// controlKeywords start statements that methodDeclPattern must not treat
// as declarations.
var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "new": true, "throw": true, "else": true, "synchronized": true,
}

// SimplifiedParser extracts annotations line by line without building a
// syntax tree. Annotations seen immediately before a type or method
// declaration are attached to it.
type SimplifiedParser struct {
	logger *slog.Logger
}

// NewSimplifiedParser creates a SimplifiedParser. A nil logger uses slog.Default().
func NewSimplifiedParser(logger *slog.Logger) *SimplifiedParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimplifiedParser{logger: logger}
}

// ParseFile implements SourceParser. It never returns a *ParseError.
func (p *SimplifiedParser) ParseFile(ctx context.Context, path string, content []byte) (*SourceUnit, error) {
	unit := &SourceUnit{Path: path}

	var pending []Marker
	var partial strings.Builder // multi-line annotation being accumulated

	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(sc.Text())

		if partial.Len() > 0 {
			partial.WriteString(" ")
			partial.WriteString(line)
			if parenDepth(partial.String()) <= 0 {
				if m, ok := simplifiedMarker(partial.String()); ok {
					pending = append(pending, m)
				}
				partial.Reset()
			}
			continue
		}

		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "/*") {
			continue
		}

		// Annotations may share a line with the declaration they decorate.
		for strings.HasPrefix(line, "@") {
			head, rest := splitAnnotation(line)
			if parenDepth(head) > 0 {
				partial.WriteString(head)
				line = ""
				break
			}
			if m, ok := simplifiedMarker(head); ok {
				pending = append(pending, m)
			}
			line = strings.TrimSpace(rest)
		}
		if line == "" {
			continue
		}

		switch {
		case typeDeclPattern.MatchString(line):
			unit.TypeMarkers = append(unit.TypeMarkers, pending...)
		case isMethodDecl(line):
			m := methodDeclPattern.FindStringSubmatch(line)
			unit.Methods = append(unit.Methods, Method{Name: m[1], Markers: pending})
		}
		pending = nil
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	unit.EndpointBearing = isEndpointBearing(unit.TypeMarkers)
	return unit, nil
}

// splitAnnotation splits a line into its leading annotation and the rest.
func splitAnnotation(line string) (string, string) {
	depth := 0
	inString := false
	for i := 1; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"' && line[i-1] != '\\':
			inString = !inString
		case inString:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return line[:i+1], line[i+1:]
			}
		case depth == 0 && (c == ' ' || c == '\t'):
			// `@Name rest` with no argument list, unless `(` follows.
			j := i
			for j < len(line) && (line[j] == ' ' || line[j] == '\t') {
				j++
			}
			if j < len(line) && line[j] == '(' {
				i = j - 1
				continue
			}
			return line[:i], line[i:]
		}
	}
	return line, ""
}

// parenDepth returns the number of unclosed parentheses outside strings.
func parenDepth(s string) int {
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inString = !inString
		case inString:
		case c == '(':
			depth++
		case c == ')':
			depth--
		}
	}
	return depth
}

// simplifiedMarker renders an annotation the same way the Tree-sitter
// parser does.
func simplifiedMarker(text string) (Marker, bool) {
	m := annotationPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Marker{}, false
	}
	name := simpleName(m[1])
	args := strings.TrimSpace(m[2])
	if args == "" {
		return Marker{Name: name, Text: "@" + name}, true
	}
	args = strings.TrimSuffix(strings.TrimPrefix(args, "("), ")")
	args = normalizeAssignments(strings.TrimSpace(args))
	return Marker{Name: name, Text: "@" + name + "(" + args + ")"}, true
}

// normalizeAssignments rewrites `key="v"` as `key = "v"`. Text inside
// string and character literals is copied unchanged.
func normalizeAssignments(args string) string {
	var b strings.Builder
	var quote byte
	for i := 0; i < len(args); i++ {
		c := args[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(args) {
				i++
				b.WriteByte(args[i])
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case c == '=' && !isOperatorByte(args, i-1) && !isOperatorByte(args, i+1):
			trimmed := strings.TrimRight(b.String(), " \t\r\n")
			b.Reset()
			b.WriteString(trimmed)
			b.WriteString(" = ")
			for i+1 < len(args) && strings.IndexByte(" \t\r\n", args[i+1]) >= 0 {
				i++
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isOperatorByte(s string, i int) bool {
	return i >= 0 && i < len(s) && strings.IndexByte("=!<>", s[i]) >= 0
}

func isMethodDecl(line string) bool {
	if strings.HasSuffix(line, ";") && !strings.Contains(line, "{") {
		// Abstract or interface methods still count when they end with ");".
		if !strings.HasSuffix(line, ");") {
			return false
		}
	}
	m := methodDeclPattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	first := strings.Fields(line)[0]
	head := line[:strings.Index(line, "(")]
	return !controlKeywords[first] && !controlKeywords[m[1]] && !strings.Contains(head, "=")
}
