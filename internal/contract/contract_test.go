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
	"strings"
	"testing"
)

func TestMaxBodyBytes(t *testing.T) {
	t.Setenv("ROUTESCOPE_MAX_BODY_BYTES", "")
	if got := MaxBodyBytes(); got != DefaultMaxBodyBytes {
		t.Errorf("MaxBodyBytes() = %d, want %d", got, DefaultMaxBodyBytes)
	}

	t.Setenv("ROUTESCOPE_MAX_BODY_BYTES", "2048")
	if got := MaxBodyBytes(); got != 2048 {
		t.Errorf("MaxBodyBytes() = %d, want 2048", got)
	}

	for _, v := range []string{"-1", "0", "lots"} {
		t.Setenv("ROUTESCOPE_MAX_BODY_BYTES", v)
		if got := MaxBodyBytes(); got != DefaultMaxBodyBytes {
			t.Errorf("MaxBodyBytes() with %q = %d, want default", v, got)
		}
	}
}

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"8c2f6d1e-7a4b-4c1d-9e2f-0a1b2c3d4e5f", true},
		{"req_1.retry", true},
		{"", false},
		{"../../etc", false},
		{"a b", false},
		{"id\nwith-newline", false},
		{strings.Repeat("a", RequestIDMaxBytes), true},
		{strings.Repeat("a", RequestIDMaxBytes+1), false},
	}
	for _, tt := range tests {
		if got := ValidRequestID(tt.id); got != tt.want {
			t.Errorf("ValidRequestID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestRequestID(t *testing.T) {
	gen := func() string { return "generated" }
	if got := RequestID(" client-7 ", gen); got != "client-7" {
		t.Errorf("RequestID() = %q, want client-7", got)
	}
	if got := RequestID("bad/id", gen); got != "generated" {
		t.Errorf("RequestID() = %q, want generated", got)
	}
}

func TestValidateMessage(t *testing.T) {
	if r := ValidateMessage("scope: orders, path: /orders"); !r.OK {
		t.Errorf("ValidateMessage() = %+v", r)
	}
	r := ValidateMessage(strings.Repeat("é", MessageMaxChars+1))
	if r.OK || !strings.Contains(r.Message, "4096") {
		t.Errorf("ValidateMessage() = %+v", r)
	}
}

func TestValidateRepoURL(t *testing.T) {
	allowed := []string{"github.com", "Codeload.GitHub.com"}
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://github.com/acme/svc/archive/refs/heads/main.zip", true},
		{"http://codeload.github.com:8080/acme/svc/zip/main", true},
		{"https://gitlab.com/acme/svc.zip", false},
		{"/etc/passwd", false},
		{"file:///etc/passwd", false},
		{"ftp://github.com/a.zip", false},
		{"https:///a.zip", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateRepoURL(tt.raw, allowed); got.OK != tt.want {
			t.Errorf("ValidateRepoURL(%q) = %+v, want OK=%t", tt.raw, got, tt.want)
		}
	}

	if got := ValidateRepoURL("https://anything.example/a.zip", nil); !got.OK {
		t.Errorf("expected any http host without an allow-list, got %+v", got)
	}
	if got := ValidateRepoURL("file:///a.zip", nil); got.OK {
		t.Error("expected file URL to be rejected without an allow-list")
	}
}
