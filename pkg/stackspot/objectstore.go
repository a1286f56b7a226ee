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
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig configures an ObjectStoreUploader.
type ObjectStoreConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// Prefix is prepended to every object key.
	Prefix string

	// PresignTTL bounds presigned download URLs. Default: 1h.
	PresignTTL time.Duration
}

// ObjectStoreUploader stores files in an S3-compatible bucket. The
// returned upload id is the object key.
type ObjectStoreUploader struct {
	client     *minio.Client
	bucket     string
	region     string
	prefix     string
	presignTTL time.Duration
	logger     *slog.Logger

	mu    sync.Mutex
	ready bool
}

var _ Uploader = (*ObjectStoreUploader)(nil)

// NewObjectStoreUploader creates an ObjectStoreUploader. No network call
// is made until the first upload.
func NewObjectStoreUploader(cfg ObjectStoreConfig, logger *slog.Logger) (*ObjectStoreUploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: s3 endpoint is required", ErrNotConfigured)
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("%w: s3 access key and secret key are required", ErrNotConfigured)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", ErrNotConfigured)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &ObjectStoreUploader{
		client:     client,
		bucket:     bucket,
		region:     region,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		presignTTL: ttl,
		logger:     logger,
	}, nil
}

// ensureBucket creates the bucket on first use. A failed attempt is
// retried on the next upload.
func (s *ObjectStoreUploader) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
		s.logger.Info("objectstore.bucket.created", "bucket", s.bucket)
	}
	s.ready = true
	return nil
}

// Upload stores filePath under <prefix>/<request id>/<basename>. The token
// is unused: the store authenticates with its own credentials.
func (s *ObjectStoreUploader) Upload(ctx context.Context, filePath, _ string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open upload file: %w", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	key := s.objectKey(RequestID(ctx), filepath.Base(filePath))
	_, err = s.client.PutObject(ctx, s.bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: contentType(filePath),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	s.logger.Info("objectstore.upload.complete", "bucket", s.bucket, "key", key, "bytes", info.Size())
	return key, nil
}

// PresignedURL returns a time-limited download URL for key.
func (s *ObjectStoreUploader) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *ObjectStoreUploader) objectKey(requestID, name string) string {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if s.prefix == "" {
		return path.Join(requestID, name)
	}
	return path.Join(s.prefix, requestID, name)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".java":
		return "text/x-java-source"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
