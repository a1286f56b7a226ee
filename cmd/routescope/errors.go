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
	stderrors "errors"
	"fmt"
	"os"

	"github.com/kraklabs/routescope/internal/errors"
	"github.com/kraklabs/routescope/pkg/analysis"
	"github.com/kraklabs/routescope/pkg/stackspot"
)

// userError converts pipeline and collaborator failures into a
// UserError with an exit code. UserErrors pass through unchanged.
func userError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}

	var (
		de      *analysis.DownloadError
		ee      *analysis.ExtractionError
		api     *stackspot.APIError
		missing *missingSettingsError
	)
	switch {
	case stderrors.Is(err, analysis.ErrInvalidRequest):
		return errors.NewInputError("Invalid analysis request", err.Error(),
			"Pass --scope and --path, and a repository with --repo or ROUTESCOPE_REPO_URL")
	case stderrors.As(err, &de):
		cause := err.Error()
		if de.StatusCode != 0 {
			cause = fmt.Sprintf("The server answered %d", de.StatusCode)
		}
		return errors.NewNetworkError("Cannot download repository archive", cause,
			"Check the repository URL and your network connection", err)
	case stderrors.As(err, &ee):
		return errors.NewArchiveError("Cannot extract repository archive", err.Error(),
			"Make sure the URL points to a zip archive", err)
	case stderrors.As(err, &missing):
		return errors.NewConfigError("Missing collaborator settings", missing.Error(),
			"Set them in routescope.yaml, .env or the environment, or use --dry-run", err)
	case stderrors.Is(err, stackspot.ErrNotConfigured):
		return errors.NewConfigError("Collaborator is not configured", err.Error(),
			"Check the chat and upload settings", err)
	case stderrors.As(err, &api):
		return errors.NewNetworkError("Remote service rejected the request",
			fmt.Sprintf("%s returned %d", api.Op, api.StatusCode),
			"Check the credentials and agent endpoints", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewNetworkError("Operation timed out", err.Error(),
			"Retry, or raise the download or chat timeout", err)
	case stderrors.Is(err, context.Canceled):
		return errors.NewInternalError("Operation canceled", "", "", err)
	case stderrors.Is(err, os.ErrPermission):
		return errors.NewPermissionError("Permission denied", err.Error(),
			"Check the permissions of the work directory", err)
	case stderrors.Is(err, os.ErrNotExist):
		return errors.NewNotFoundError("File or directory not found", err.Error(),
			"Check the path and try again")
	}
	return errors.NewInternalError("Unexpected failure", err.Error(),
		"Run again with --debug and report the log", err)
}
