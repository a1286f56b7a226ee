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

package stackspot

import (
	"context"
	"errors"
	"fmt"
)

// Default endpoints of the hosted services.
const (
	DefaultTokenURL           = "https://idm.stackspot.com/stackspot-freemium/oidc/oauth/token"
	DefaultUploadURL          = "https://data-integration-api.stackspot.com/v2/file-upload/form"
	DefaultControllerAgentURL = "https://genai-inference-app.stackspot.com/v1/agent/01JZ9J6GT997JENKZ9VH77F0TY/chat"
	DefaultUnitTestAgentURL   = "https://genai-inference-app.stackspot.com/v1/agent/01JY5RF8WWG0V3H32KMNTDGF25/chat"
)

// ErrNotConfigured is returned when a client lacks a required setting.
var ErrNotConfigured = errors.New("stackspot: not configured")

// APIError reports a non-success response from a remote service.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// truncate bounds response bodies carried in errors and logs.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type requestIDKey struct{}

// WithRequestID attaches a request id used to namespace uploaded objects.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
