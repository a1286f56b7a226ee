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

// Package ui renders human-readable routescope output.
//
// Colors follow the outcome of an analysis:
//   - Green: endpoint already exists, success
//   - Yellow: scope found without the path, warnings
//   - Red: nothing matched, errors
//   - Cyan: informational lines
//
// Colors are disabled with --no-color, NO_COLOR, or when stdout is not a
// terminal (fatih/color detects the last two).
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Out receives all ui output.
var Out io.Writer = os.Stdout

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// InitColors applies the --no-color flag.
func InitColors(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// Success prints a green line with a checkmark.
func Success(msg string) {
	_, _ = Green.Fprintln(Out, "✓ "+msg)
}

// Successf is Success with formatting.
func Successf(format string, args ...any) {
	Success(fmt.Sprintf(format, args...))
}

// Warning prints a yellow line with a warning sign.
func Warning(msg string) {
	_, _ = Yellow.Fprintln(Out, "⚠ "+msg)
}

// Warningf is Warning with formatting.
func Warningf(format string, args ...any) {
	Warning(fmt.Sprintf(format, args...))
}

// Info prints a cyan informational line.
func Info(msg string) {
	_, _ = Cyan.Fprintln(Out, "ℹ "+msg)
}

// Infof is Info with formatting.
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}

// Header prints a bold title underlined with '='.
func Header(text string) {
	_, _ = Bold.Fprintln(Out, text)
	fmt.Fprintln(Out, strings.Repeat("=", len(text)))
}

// Field prints an aligned "label value" line.
func Field(label, value string) {
	fmt.Fprintf(Out, "  %-16s %s\n", Bold.Sprint(label), value)
}

// DimText returns text dimmed, for paths and timings.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// Outcome colors a classification kind by its meaning.
func Outcome(kind string) string {
	switch kind {
	case "already_exists":
		return Green.Sprint(kind)
	case "scope_only":
		return Yellow.Sprint(kind)
	case "no_match":
		return Red.Sprint(kind)
	default:
		return kind
	}
}
