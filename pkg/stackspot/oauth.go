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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenTTL applies when the token response has no expires_in.
	DefaultTokenTTL = 20 * time.Minute

	// TokenSkew is subtracted from every expiry so tokens are renewed early.
	TokenSkew = 5 * time.Minute

	tokenCacheSize = 16
)

// TokenProvider returns a bearer token for the hosted services.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider that always returns the same token.
type StaticToken string

// Token implements TokenProvider.
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty token", ErrNotConfigured)
	}
	return string(s), nil
}

// OAuthConfig configures an OAuthClient.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string

	Timeout time.Duration
	Client  *http.Client

	// Now is the clock used for expiry. Default: time.Now.
	Now func() time.Time
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// OAuthClient obtains tokens with the client-credentials grant and caches
// them until shortly before they expire. Concurrent callers that miss the
// cache share a single token request.
type OAuthClient struct {
	cfg    OAuthConfig
	client *http.Client
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, cachedToken]
	group singleflight.Group
}

var _ TokenProvider = (*OAuthClient)(nil)

// NewOAuthClient creates an OAuthClient. A nil logger uses slog.Default().
func NewOAuthClient(cfg OAuthConfig, logger *slog.Logger) (*OAuthClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: oauth2 client id and secret are required", ErrNotConfigured)
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	cache, err := lru.New[string, cachedToken](tokenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	return &OAuthClient{cfg: cfg, client: client, now: now, logger: logger, cache: cache}, nil
}

// Token returns a cached token or requests a new one.
//
// The shared request is detached from the caller's cancellation and bounded
// by the configured timeout, so a caller that gives up only stops waiting.
func (c *OAuthClient) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	ch := c.group.DoChan(c.cfg.ClientID, func() (any, error) {
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		return c.requestToken(reqCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			c.logger.Debug("oauth.token.shared", "client_id", c.cfg.ClientID)
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call requests a new one.
func (c *OAuthClient) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(c.cfg.ClientID)
	c.logger.Info("oauth.token.invalidated", "client_id", c.cfg.ClientID)
}

func (c *OAuthClient) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.cache.Get(c.cfg.ClientID)
	if !ok || !c.now().Before(tok.expiresAt) {
		return "", false
	}
	return tok.value, true
}

func (c *OAuthClient) requestToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth2 token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{Op: "oauth2 token", StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   *int   `json:"expires_in"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("oauth2 token: empty access_token")
	}

	ttl := DefaultTokenTTL
	if result.ExpiresIn != nil {
		ttl = time.Duration(*result.ExpiresIn) * time.Second
	}

	c.mu.Lock()
	c.cache.Add(c.cfg.ClientID, cachedToken{value: result.AccessToken, expiresAt: c.now().Add(ttl - TokenSkew)})
	c.mu.Unlock()

	c.logger.Info("oauth.token.issued", "client_id", c.cfg.ClientID, "ttl", ttl)
	return result.AccessToken, nil
}
