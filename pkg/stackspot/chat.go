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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ChatRequest is one prompt sent to an agent.
type ChatRequest struct {
	Prompt string `json:"prompt"`

	// UploadIDs reference files previously sent through an Uploader.
	UploadIDs []string `json:"upload_ids,omitempty"`

	// Files are local paths of the uploaded files, for providers that take
	// file content inline instead of upload ids.
	Files []string `json:"files,omitempty"`
}

// ChatResponse is the agent reply.
type ChatResponse struct {
	Message  string        `json:"message"`
	Raw      string        `json:"-"`
	Provider string        `json:"provider"`
	Duration time.Duration `json:"duration,omitempty"`
}

// ChatClient sends prompts to a chat agent.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Name returns the provider identifier.
	Name() string
}

// ChatConfig holds configuration for creating chat clients.
type ChatConfig struct {
	// Provider type: "stackspot", "gemini", "mock"
	Provider string

	// Endpoint is the agent chat URL (stackspot only).
	Endpoint string

	// Tokens supplies bearer tokens (stackspot only).
	Tokens TokenProvider

	// GeminiAPIKey and GeminiModel configure the gemini provider.
	GeminiAPIKey string
	GeminiModel  string

	Timeout    time.Duration
	MaxRetries int
	Client     *http.Client
}

// NewChatClient creates a ChatClient based on configuration.
// Supported providers: "stackspot" (default), "gemini", "mock".
func NewChatClient(ctx context.Context, cfg ChatConfig, logger *slog.Logger) (ChatClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	switch strings.ToLower(cfg.Provider) {
	case "stackspot", "agent", "":
		return NewAgentClient(cfg, logger)
	case "gemini", "google":
		return NewGeminiClient(ctx, cfg, logger)
	case "mock", "test":
		return &MockClient{}, nil
	default:
		return nil, fmt.Errorf("unknown chat provider: %s (supported: stackspot, gemini, mock)", cfg.Provider)
	}
}

// AgentClient calls a hosted agent chat endpoint with a bearer token.
type AgentClient struct {
	endpoint string
	tokens   TokenProvider
	client   *http.Client
	logger   *slog.Logger
}

var _ ChatClient = (*AgentClient)(nil)

// NewAgentClient creates an AgentClient.
func NewAgentClient(cfg ChatConfig, logger *slog.Logger) (*AgentClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: chat endpoint is required", ErrNotConfigured)
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("%w: token provider is required", ErrNotConfigured)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &AgentClient{endpoint: cfg.Endpoint, tokens: cfg.Tokens, client: client, logger: logger}, nil
}

func (c *AgentClient) Name() string { return "stackspot" }

// Chat implements ChatClient. A 401 response invalidates the cached token
// and the request is retried once with a fresh one.
func (c *AgentClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	uploadIDs := req.UploadIDs
	if uploadIDs == nil {
		uploadIDs = []string{}
	}
	payload, err := json.Marshal(map[string]any{
		"streaming":             false,
		"user_prompt":           req.Prompt,
		"stackspot_knowledge":   false,
		"return_ks_in_response": true,
		"upload_ids":            uploadIDs,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	c.logger.Info("chat.request", "endpoint", c.endpoint, "uploads", len(uploadIDs))

	raw, status, err := c.post(ctx, payload)
	if err == nil && status == http.StatusUnauthorized {
		if inv, ok := c.tokens.(interface{ Invalidate() }); ok {
			inv.Invalidate()
			raw, status, err = c.post(ctx, payload)
		}
	}
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &APIError{Op: "chat", StatusCode: status, Body: truncate(raw, 512)}
	}

	return &ChatResponse{
		Message:  ExtractMessage(raw),
		Raw:      raw,
		Provider: c.Name(),
		Duration: time.Since(start),
	}, nil
}

func (c *AgentClient) post(ctx context.Context, payload []byte) (string, int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("get token: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("chat: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read chat response: %w", err)
	}
	return string(body), resp.StatusCode, nil
}

// ExtractMessage returns the "message" field of an agent response, or the
// raw body when it is not JSON or has no message.
func ExtractMessage(raw string) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil || body.Message == "" {
		return raw
	}
	return body.Message
}

// MockClient is a test client that returns predictable responses.
type MockClient struct {
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

var _ ChatClient = (*MockClient)(nil)

func (m *MockClient) Name() string { return "mock" }

func (m *MockClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	msg := fmt.Sprintf("[mock] %s", req.Prompt)
	if len(req.UploadIDs) > 0 {
		msg += fmt.Sprintf(" (uploads: %s)", strings.Join(req.UploadIDs, ", "))
	}
	return &ChatResponse{Message: msg, Raw: msg, Provider: m.Name()}, nil
}
