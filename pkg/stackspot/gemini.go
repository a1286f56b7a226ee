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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// errEmptyCandidate is returned when Gemini answers without text.
var errEmptyCandidate = errors.New("gemini: empty response")

// GeminiClient sends prompts to Google Gemini. Files referenced by a
// request are inlined after the prompt.
type GeminiClient struct {
	cli        *genai.Client
	model      string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

var _ ChatClient = (*GeminiClient)(nil)

// NewGeminiClient creates a GeminiClient. The API key falls back to
// GEMINI_API_KEY and the model to GEMINI_MODEL.
func NewGeminiClient(ctx context.Context, cfg ChatConfig, logger *slog.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	apiKey := cfg.GeminiAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required (set GEMINI_API_KEY)", ErrNotConfigured)
	}
	model := cfg.GeminiModel
	if model == "" {
		model = os.Getenv("GEMINI_MODEL")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.Client,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &GeminiClient{cli: cli, model: model, maxRetries: maxRetries, backoff: 300 * time.Millisecond, logger: logger}, nil
}

func (g *GeminiClient) Name() string { return "gemini" }

// Chat implements ChatClient, retrying failed calls with exponential
// backoff.
func (g *GeminiClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	full, err := inlineFiles(req.Prompt, req.Files)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			wait := g.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		text, err := g.generate(ctx, full)
		if err == nil {
			return &ChatResponse{Message: text, Raw: text, Provider: g.Name(), Duration: time.Since(start)}, nil
		}
		lastErr = err
		g.logger.Warn("chat.gemini.retry", "attempt", attempt+1, "err", err)
	}
	return nil, fmt.Errorf("gemini chat after %d attempts: %w", g.maxRetries, lastErr)
}

func (g *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errEmptyCandidate
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errEmptyCandidate
	}
	return sb.String(), nil
}

// inlineFiles appends each file as a fenced block after the prompt.
func inlineFiles(prompt string, files []string) (string, error) {
	if len(files) == 0 {
		return prompt, nil
	}
	var sb strings.Builder
	sb.WriteString(prompt)
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", filepath.Base(f), err)
		}
		lang := strings.TrimPrefix(filepath.Ext(f), ".")
		fmt.Fprintf(&sb, "\n\nFile: %s\n```%s\n%s\n```", filepath.Base(f), lang, strings.TrimRight(string(content), "\n"))
	}
	return sb.String(), nil
}
