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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fetcher retrieves an archive and writes it to dest.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dest string) (*ArchiveHandle, error)
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*FileFetcher)(nil)
	_ Fetcher = (*SchemeFetcher)(nil)
)

const (
	// DefaultDownloadTimeout bounds one archive download.
	DefaultDownloadTimeout = 60 * time.Second

	// DefaultMaxArchiveSize bounds the size of one archive (64 MiB).
	DefaultMaxArchiveSize int64 = 64 << 20

	userAgent    = "routescope/1.0"
	acceptHeader = "application/zip, application/octet-stream, */*"
)

// HTTPConfig configures an HTTPFetcher.
type HTTPConfig struct {
	Timeout time.Duration
	MaxSize int64
	Client  *http.Client // Optional; overrides Timeout
}

// HTTPFetcher downloads archives over HTTP(S), following redirects.
type HTTPFetcher struct {
	client  *http.Client
	maxSize int64
	logger  *slog.Logger
}

// NewHTTPFetcher creates an HTTPFetcher. A nil logger uses slog.Default().
func NewHTTPFetcher(cfg HTTPConfig, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDownloadTimeout
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxArchiveSize
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPFetcher{client: client, maxSize: cfg.MaxSize, logger: logger}
}

// Fetch downloads rawURL into dest, replacing any existing file.
// Non-2xx responses, empty bodies and transport failures return a
// *DownloadError.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dest string) (*ArchiveHandle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	logURL := redactURL(rawURL)
	f.logger.Info("archive.download.start", "url", logURL, "dest", dest)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: logURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &DownloadError{URL: logURL, StatusCode: resp.StatusCode}
	}

	size, err := writeLimited(dest, resp.Body, f.maxSize)
	if err != nil {
		return nil, &DownloadError{URL: logURL, Err: err}
	}

	f.logger.Info("archive.download.complete", "url", logURL, "bytes", size)
	return &ArchiveHandle{URL: rawURL, Path: dest, Size: size}, nil
}

// FileFetcher copies a local archive (file:// URL or plain path) into
// dest, so cleanup never touches the caller's original file.
type FileFetcher struct {
	maxSize int64
	logger  *slog.Logger
}

// NewFileFetcher creates a FileFetcher. A nil logger uses slog.Default().
func NewFileFetcher(logger *slog.Logger) *FileFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileFetcher{maxSize: DefaultMaxArchiveSize, logger: logger}
}

// Fetch copies the archive at rawURL into dest.
func (f *FileFetcher) Fetch(ctx context.Context, rawURL, dest string) (*ArchiveHandle, error) {
	src := strings.TrimPrefix(rawURL, "file://")
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}
	defer func() { _ = in.Close() }()

	if err := ctx.Err(); err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}

	size, err := writeLimited(dest, in, f.maxSize)
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}
	f.logger.Info("archive.copy.complete", "src", src, "bytes", size)
	return &ArchiveHandle{URL: rawURL, Path: dest, Size: size}, nil
}

// SchemeFetcher dispatches on the URL scheme: http and https go to the
// HTTP fetcher, file URLs and bare paths to the file fetcher.
type SchemeFetcher struct {
	HTTP Fetcher
	File Fetcher
}

// NewSchemeFetcher creates a SchemeFetcher with default sub-fetchers.
func NewSchemeFetcher(cfg HTTPConfig, logger *slog.Logger) *SchemeFetcher {
	return &SchemeFetcher{
		HTTP: NewHTTPFetcher(cfg, logger),
		File: NewFileFetcher(logger),
	}
}

// Fetch implements Fetcher.
func (f *SchemeFetcher) Fetch(ctx context.Context, rawURL, dest string) (*ArchiveHandle, error) {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return f.HTTP.Fetch(ctx, rawURL, dest)
	case strings.HasPrefix(lower, "file://"), !strings.Contains(rawURL, "://"):
		return f.File.Fetch(ctx, rawURL, dest)
	default:
		return nil, &DownloadError{URL: rawURL, Err: fmt.Errorf("unsupported URL scheme")}
	}
}

// errTooLarge is returned when an archive exceeds the size limit.
var errTooLarge = errors.New("archive exceeds size limit")

// writeLimited writes r to dest (truncating) and fails when more than
// limit bytes arrive or nothing arrives at all.
func writeLimited(dest string, r io.Reader, limit int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.LimitReader(r, limit+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}
	if n > limit {
		return n, errTooLarge
	}
	if n == 0 {
		return 0, errors.New("empty archive body")
	}
	return n, nil
}

// redactURL strips credentials and query parameters for logging.
func redactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.RawQuery = ""
	if parsed.User != nil {
		parsed.User = url.User("***")
	}
	return parsed.String()
}
