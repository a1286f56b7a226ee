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

package main

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/kraklabs/routescope/internal/errors"
	"github.com/kraklabs/routescope/pkg/analysis"
	"github.com/kraklabs/routescope/pkg/stackspot"
)

func TestUserError(t *testing.T) {
	passthrough := errors.NewInputError("Missing --scope", "", "")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", fmt.Errorf("%w: missing scope", analysis.ErrInvalidRequest), errors.ExitInput},
		{"download", &analysis.DownloadError{URL: "https://x/a.zip", StatusCode: 404}, errors.ExitNetwork},
		{"extraction", &analysis.ExtractionError{Archive: "a.zip", Err: fmt.Errorf("zip: not a valid zip file")}, errors.ExitArchive},
		{"missing settings", &missingSettingsError{names: []string{"OAUTH2_CLIENT_ID"}}, errors.ExitConfig},
		{"not configured", fmt.Errorf("%w: s3 bucket is required", stackspot.ErrNotConfigured), errors.ExitConfig},
		{"api", fmt.Errorf("chat: %w", &stackspot.APIError{Op: "agent chat", StatusCode: 503}), errors.ExitNetwork},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), errors.ExitNetwork},
		{"permission", fmt.Errorf("mkdir: %w", os.ErrPermission), errors.ExitPermission},
		{"not exist", fmt.Errorf("open: %w", os.ErrNotExist), errors.ExitNotFound},
		{"unknown", fmt.Errorf("boom"), errors.ExitInternal},
		{"user error", fmt.Errorf("wrapped: %w", passthrough), errors.ExitInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ue, ok := errors.As(userError(tt.err))
			if !ok {
				t.Fatalf("userError(%v) is not a UserError", tt.err)
			}
			if ue.ExitCode != tt.want {
				t.Errorf("ExitCode = %d, want %d", ue.ExitCode, tt.want)
			}
		})
	}

	if userError(nil) != nil {
		t.Error("userError(nil) must be nil")
	}
	if ue, _ := errors.As(userError(&analysis.DownloadError{URL: "u", StatusCode: 502})); ue.Cause != "The server answered 502" {
		t.Errorf("Cause = %q", ue.Cause)
	}
}
