// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors carries user-facing CLI errors for routescope.
//
// A UserError says what went wrong, why, and how to fix it, and carries
// the process exit code:
//
//	Error: Cannot download repository archive
//	Cause: GET https://github.com/acme/svc/archive/main.zip returned 404
//	Fix:   Check --repo or ROUTESCOPE_REPO_URL
//
// # Exit Codes
//
//   - ExitSuccess (0)
//   - ExitConfig (1): missing or invalid configuration, credentials
//   - ExitArchive (2): the archive could not be extracted
//   - ExitNetwork (3): download or collaborator call failed
//   - ExitInput (4): bad flags or request fields
//   - ExitPermission (5): file system permission denied
//   - ExitNotFound (6): a local directory or file does not exist
//   - ExitInternal (10): bugs
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes by error category.
const (
	ExitSuccess    = 0
	ExitConfig     = 1
	ExitArchive    = 2
	ExitNetwork    = 3
	ExitInput      = 4
	ExitPermission = 5
	ExitNotFound   = 6

	// ExitInternal signals a bug that should be reported.
	ExitInternal = 10
)

// UserError is an error with a message, a diagnostic cause, a suggested
// fix and an exit code. Err, when set, is the wrapped error.
type UserError struct {
	Message  string
	Cause    string
	Fix      string
	ExitCode int
	Err      error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *UserError) Unwrap() error {
	return e.Err
}

func newError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError reports missing or invalid configuration.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newError(ExitConfig, msg, cause, fix, err)
}

// NewArchiveError reports an archive that could not be unpacked.
func NewArchiveError(msg, cause, fix string, err error) *UserError {
	return newError(ExitArchive, msg, cause, fix, err)
}

// NewNetworkError reports a failed download or collaborator call.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newError(ExitNetwork, msg, cause, fix, err)
}

// NewInputError reports invalid flags or request fields.
func NewInputError(msg, cause, fix string) *UserError {
	return newError(ExitInput, msg, cause, fix, nil)
}

// NewPermissionError reports a denied file system operation.
func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return newError(ExitPermission, msg, cause, fix, err)
}

// NewNotFoundError reports a missing local resource.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return newError(ExitNotFound, msg, cause, fix, nil)
}

// NewInternalError reports an unexpected failure.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newError(ExitInternal, msg, cause, fix, err)
}

// As returns the first UserError in err's chain.
func As(err error) (*UserError, bool) {
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for a terminal. Empty Cause and Fix lines are
// omitted. Colors are off when noColor is set or NO_COLOR is present.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// ErrorJSON is the --json rendering of a UserError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the error to its JSON form.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{Error: e.Message, Cause: e.Cause, Fix: e.Fix, ExitCode: e.ExitCode}
}

// Report writes err to w and returns the exit code to use. Errors that
// are not UserErrors exit with ExitInternal.
func Report(w io.Writer, err error, jsonOutput, noColor bool) int {
	if err == nil {
		return ExitSuccess
	}
	ue, ok := As(err)
	if !ok {
		ue = NewInternalError(err.Error(), "", "", err)
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(ue.ToJSON())
	} else {
		fmt.Fprint(w, ue.Format(noColor))
	}
	return ue.ExitCode
}

// exit is replaced in tests.
var exit = os.Exit

// FatalError reports err on stderr and exits with its code. It returns
// without exiting when err is nil.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}
	exit(Report(os.Stderr, err, jsonOutput, false))
}
