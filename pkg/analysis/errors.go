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
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned when a request lacks a URL, scope or path.
var ErrInvalidRequest = errors.New("invalid analysis request")

// DownloadError reports a failed archive fetch. It aborts the pipeline.
type DownloadError struct {
	URL        string
	StatusCode int // Zero for transport errors
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError reports an archive that could not be opened, or an entry
// that could not be written. It aborts the pipeline.
type ExtractionError struct {
	Archive string
	Entry   string // Empty when the archive itself failed to open
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extract %s: entry %s: %v", e.Archive, e.Entry, e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ParseError reports a source file that could not be parsed.
// The scanner logs it and skips the file.
type ParseError struct {
	Path       string
	ErrorNodes int
	Err        error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("parse %s: %d syntax error(s)", e.Path, e.ErrorNodes)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CleanupError reports a failed deletion. It is logged, never returned
// to pipeline callers.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// IsFatal reports whether err aborts a pipeline run before classification.
func IsFatal(err error) bool {
	var de *DownloadError
	var ee *ExtractionError
	return errors.As(err, &de) || errors.As(err, &ee)
}
