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
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Uploader makes a local file available to a chat agent and returns the
// id the agent refers to it by.
type Uploader interface {
	Upload(ctx context.Context, filePath, token string) (string, error)
}

// UploadConfig configures a FormUploader.
type UploadConfig struct {
	// Endpoint issues presigned upload forms. Default: DefaultUploadURL.
	Endpoint string

	// Expiration is the upload lifetime in minutes. Default: 60.
	Expiration int

	Timeout time.Duration
	Client  *http.Client
}

// FormUploader uploads files in two steps: it requests a presigned form
// from the upload endpoint, then posts the form fields and file to the
// storage URL the form names.
type FormUploader struct {
	endpoint   string
	expiration int
	client     *http.Client
	logger     *slog.Logger
}

var _ Uploader = (*FormUploader)(nil)

// NewFormUploader creates a FormUploader. A nil logger uses slog.Default().
func NewFormUploader(cfg UploadConfig, logger *slog.Logger) *FormUploader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultUploadURL
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = 60
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &FormUploader{endpoint: cfg.Endpoint, expiration: cfg.Expiration, client: client, logger: logger}
}

type uploadForm struct {
	ID   string            `json:"id"`
	URL  string            `json:"url"`
	Form map[string]string `json:"form"`
}

// Upload implements Uploader.
func (u *FormUploader) Upload(ctx context.Context, filePath, token string) (string, error) {
	form, err := u.requestForm(ctx, filepath.Base(filePath), token)
	if err != nil {
		return "", err
	}
	if err := u.postFile(ctx, form, filePath); err != nil {
		return "", err
	}
	u.logger.Info("upload.complete", "file", filepath.Base(filePath), "upload_id", form.ID)
	return form.ID, nil
}

func (u *FormUploader) requestForm(ctx context.Context, fileName, token string) (*uploadForm, error) {
	payload, err := json.Marshal(map[string]any{
		"file_name":   fileName,
		"target_type": "CONTEXT",
		"expiration":  u.expiration,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request upload form: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Op: "upload form", StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var form uploadForm
	if err := json.NewDecoder(resp.Body).Decode(&form); err != nil {
		return nil, fmt.Errorf("decode upload form: %w", err)
	}
	if form.ID == "" || form.URL == "" {
		return nil, fmt.Errorf("upload form: missing id or url")
	}
	return &form, nil
}

func (u *FormUploader) postFile(ctx context.Context, form *uploadForm, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open upload file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	keys := make([]string, 0, len(form.Form))
	for k := range form.Form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, form.Form[k]); err != nil {
			return err
		}
	}
	// Storage backends require the file part after every policy field.
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read upload file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, form.URL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Op: "upload file", StatusCode: resp.StatusCode, Body: truncate(string(b), 512)}
	}
}
