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

package contract

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxBodyBytes is the baseline request body limit.
	DefaultMaxBodyBytes = 1 << 20 // 1 MiB

	// RequestIDMaxBytes is the maximum length of a client request id.
	RequestIDMaxBytes = 64

	// MessageMaxChars bounds the chat message of one request.
	MessageMaxChars = 4096
)

// MaxBodyBytes returns the effective body limit. Controlled via env
// ROUTESCOPE_MAX_BODY_BYTES; falls back to DefaultMaxBodyBytes.
func MaxBodyBytes() int {
	if v := os.Getenv("ROUTESCOPE_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxBodyBytes
}

// ValidRequestID reports whether id may be used as a request id.
func ValidRequestID(id string) bool {
	if id == "" || len(id) > RequestIDMaxBytes {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// RequestID returns candidate when valid and a fresh id from generate
// otherwise.
func RequestID(candidate string, generate func() string) string {
	candidate = strings.TrimSpace(candidate)
	if ValidRequestID(candidate) {
		return candidate
	}
	return generate()
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateMessage checks a chat message against MessageMaxChars.
func ValidateMessage(msg string) *ValidationResult {
	if n := utf8.RuneCountInString(msg); n > MessageMaxChars {
		return &ValidationResult{
			Message: "message exceeds " + strconv.Itoa(MessageMaxChars) + " characters",
		}
	}
	return &ValidationResult{OK: true}
}

// ValidateRepoURL checks a client supplied archive URL. Only http and https
// URLs are accepted, and when allowedHosts is not empty the host name must
// be one of them (case-insensitive, port ignored).
func ValidateRepoURL(raw string, allowedHosts []string) *ValidationResult {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationResult{Message: "repo_url must be an http or https URL"}
	}
	if len(allowedHosts) == 0 {
		return &ValidationResult{OK: true}
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range allowedHosts {
		if strings.ToLower(strings.TrimSpace(h)) == host {
			return &ValidationResult{OK: true}
		}
	}
	return &ValidationResult{Message: "repo_url host is not allowed: " + u.Hostname()}
}
