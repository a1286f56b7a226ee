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
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// =============================================================================
// JAVA PARSER
// =============================================================================

// JavaParser parses Java sources with Tree-sitter.
//
// Tree-sitter parsers are not safe for concurrent use, so JavaParser keeps
// a pool of them and hands one to each ParseFile call.
type JavaParser struct {
	pool   sync.Pool
	logger *slog.Logger
}

// NewJavaParser creates a JavaParser. A nil logger uses slog.Default().
func NewJavaParser(logger *slog.Logger) *JavaParser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &JavaParser{logger: logger}
	p.pool.New = func() any {
		tsParser := sitter.NewParser()
		tsParser.SetLanguage(java.GetLanguage())
		return tsParser
	}
	return p
}

// typeDeclarations are the node types whose modifiers hold type-level
// annotations.
var typeDeclarations = map[string]bool{
	"class_declaration":           true,
	"interface_declaration":       true,
	"enum_declaration":            true,
	"record_declaration":          true,
	"annotation_type_declaration": true,
}

// ParseFile parses a Java compilation unit.
//
// A tree containing ERROR or MISSING nodes is rejected with a *ParseError:
// a file with broken syntax is skipped rather than half-scanned.
//
// ctx is checked before parsing only. Pooled parsers must never see a
// cancellation: ParseCtx sets a cancel flag that is never reset.
func (p *JavaParser) ParseFile(ctx context.Context, path string, content []byte) (*SourceUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tsParser := p.pool.Get().(*sitter.Parser)
	defer p.pool.Put(tsParser)

	tree, err := tsParser.ParseCtx(context.WithoutCancel(ctx), nil, content)
	if err != nil {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("tree-sitter parse: %w", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		errorCount := countSyntaxErrors(root)
		p.logger.Debug("parser.java.syntax_errors", "path", path, "error_count", errorCount)
		return nil, &ParseError{Path: path, ErrorNodes: errorCount}
	}

	unit := &SourceUnit{Path: path}
	p.walk(root, content, unit)
	unit.EndpointBearing = isEndpointBearing(unit.TypeMarkers)
	return unit, nil
}

// walk visits every node once, collecting type markers and methods.
func (p *JavaParser) walk(node *sitter.Node, content []byte, unit *SourceUnit) {
	if node == nil {
		return
	}

	switch {
	case typeDeclarations[node.Type()]:
		unit.TypeMarkers = append(unit.TypeMarkers, modifierMarkers(node, content)...)
	case node.Type() == "method_declaration":
		name := ""
		if n := node.ChildByFieldName("name"); n != nil {
			name = n.Content(content)
		}
		unit.Methods = append(unit.Methods, Method{
			Name:    name,
			Markers: modifierMarkers(node, content),
		})
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		p.walk(node.NamedChild(i), content, unit)
	}
}

// modifierMarkers returns the annotations in the modifiers child of a
// declaration node, in source order.
func modifierMarkers(decl *sitter.Node, content []byte) []Marker {
	var markers []Marker
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		child := decl.NamedChild(i)
		if child.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			if m, ok := renderAnnotation(child.NamedChild(j), content); ok {
				markers = append(markers, m)
			}
		}
	}
	return markers
}

// renderAnnotation renders an annotation node in a normalized form:
// `@Name` for marker annotations, `@Name(key = value, ...)` otherwise.
// Values keep their source text.
func renderAnnotation(node *sitter.Node, content []byte) (Marker, bool) {
	if node == nil {
		return Marker{}, false
	}
	switch node.Type() {
	case "marker_annotation", "annotation":
	default:
		return Marker{}, false
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return Marker{}, false
	}
	name := simpleName(nameNode.Content(content))

	args := node.ChildByFieldName("arguments")
	if node.Type() == "marker_annotation" || args == nil {
		return Marker{Name: name, Text: "@" + name}, true
	}

	parts := make([]string, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "element_value_pair" {
			key := arg.ChildByFieldName("key")
			value := arg.ChildByFieldName("value")
			if key != nil && value != nil {
				parts = append(parts, key.Content(content)+" = "+value.Content(content))
				continue
			}
		}
		parts = append(parts, arg.Content(content))
	}
	return Marker{Name: name, Text: "@" + name + "(" + strings.Join(parts, ", ") + ")"}, true
}

// countSyntaxErrors counts ERROR and MISSING nodes below node.
func countSyntaxErrors(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	count := 0
	if node.Type() == "ERROR" || node.IsMissing() {
		count++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		count += countSyntaxErrors(node.Child(i))
	}
	return count
}
