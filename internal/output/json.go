// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package output writes machine-readable CLI output.
//
// Every --json command prints one Envelope on stdout:
//
//	{
//	  "command": "analyze",
//	  "request_id": "8c2f...",
//	  "data": { ... }
//	}
//
// Errors go to stderr through the errors package.
package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// Envelope wraps a command result.
type Envelope struct {
	Command   string `json:"command"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data"`
}

// JSONTo writes data as indented JSON to w.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// JSONCompactTo writes data as single-line JSON to w.
func JSONCompactTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// Command writes an Envelope for command to w.
func Command(w io.Writer, command, requestID string, data any) error {
	return JSONTo(w, Envelope{Command: command, RequestID: requestID, Data: data})
}
