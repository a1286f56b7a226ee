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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/routescope/pkg/analysis"
	"github.com/kraklabs/routescope/pkg/stackspot"
)

const (
	// DefaultConfigPath is read when --config is not given. It may be absent.
	DefaultConfigPath = "routescope.yaml"

	// DefaultRepoURL is the repository analyzed when none is configured.
	DefaultRepoURL = "https://github.com/thiagomess/resource-service/archive/refs/heads/main.zip"
)

// Upload backends.
const (
	UploadStackspot = "stackspot"
	UploadS3        = "s3"
	UploadNone      = "none"
)

// Config is the routescope configuration file.
type Config struct {
	RepoURL     string `yaml:"repo_url"`
	WorkDir     string `yaml:"work_dir"`
	MetricsAddr string `yaml:"metrics_addr"`

	Scan   ScanConfig   `yaml:"scan"`
	Server ServerConfig `yaml:"server"`
	OAuth  OAuthConfig  `yaml:"oauth"`
	Chat   ChatConfig   `yaml:"chat"`
	Upload UploadConfig `yaml:"upload"`
	Log    LogConfig    `yaml:"log"`
}

// ScanConfig tunes download and source scanning.
type ScanConfig struct {
	Parser          string        `yaml:"parser"`
	Workers         int           `yaml:"workers"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	MaxArchiveMB    int64         `yaml:"max_archive_mb"`

	// ControllerDirs replaces the default controller candidates.
	ControllerDirs []string `yaml:"controller_dirs"`
}

// ServerConfig configures serve.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// AllowedHosts limits the repo_url hosts accepted by /api/scan.
	// Empty means the host of repo_url only.
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// OAuthConfig holds client credentials for the token endpoint.
type OAuthConfig struct {
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// ChatConfig selects the chat provider and its agents.
type ChatConfig struct {
	Provider         string        `yaml:"provider"`
	Endpoint         string        `yaml:"endpoint"`
	UnitTestEndpoint string        `yaml:"unit_test_endpoint"`
	GeminiAPIKey     string        `yaml:"gemini_api_key"`
	GeminiModel      string        `yaml:"gemini_model"`
	Timeout          time.Duration `yaml:"timeout"`
}

// UploadConfig selects where context files are sent.
type UploadConfig struct {
	// Backend is "stackspot", "s3" or "none". Empty picks "stackspot" for
	// the stackspot provider and "none" otherwise.
	Backend    string   `yaml:"backend"`
	Endpoint   string   `yaml:"endpoint"`
	Expiration int      `yaml:"expiration"`
	S3         S3Config `yaml:"s3"`
}

// S3Config configures the object store backend.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// LogConfig configures logging. File enables rotation through lumberjack.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		RepoURL: DefaultRepoURL,
		Scan: ScanConfig{
			Parser:          string(analysis.DefaultParserMode),
			DownloadTimeout: analysis.DefaultDownloadTimeout,
			MaxArchiveMB:    analysis.DefaultMaxArchiveSize >> 20,
		},
		Server: ServerConfig{Addr: ":8080", RequestTimeout: 5 * time.Minute},
		OAuth:  OAuthConfig{TokenURL: stackspot.DefaultTokenURL},
		Chat: ChatConfig{
			Provider:         "stackspot",
			Endpoint:         stackspot.DefaultControllerAgentURL,
			UnitTestEndpoint: stackspot.DefaultUnitTestAgentURL,
			Timeout:          120 * time.Second,
		},
		Upload: UploadConfig{Endpoint: stackspot.DefaultUploadURL, Expiration: 60},
		Log:    LogConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 14},
	}
}

// LoadConfig reads the YAML file at path over the defaults, then applies
// .env and environment overrides. An empty path reads DefaultConfigPath
// when it exists.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	_ = godotenv.Load()
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// applyEnv overrides fields from non-empty environment variables.
func (c *Config) applyEnv(getenv func(string) string) {
	str := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str(&c.RepoURL, "ROUTESCOPE_REPO_URL")
	str(&c.WorkDir, "ROUTESCOPE_WORK_DIR")
	str(&c.Server.Addr, "ROUTESCOPE_ADDR")
	str(&c.OAuth.ClientID, "OAUTH2_CLIENT_ID")
	str(&c.OAuth.ClientSecret, "OAUTH2_CLIENT_SECRET")
	str(&c.OAuth.TokenURL, "OAUTH2_TOKEN_URL")
	str(&c.Chat.Endpoint, "CHAT_ENDPOINT")
	str(&c.Chat.UnitTestEndpoint, "CHAT_ENDPOINT_TEST_UNIT")
	str(&c.Chat.Provider, "CHAT_PROVIDER")
	str(&c.Chat.GeminiAPIKey, "GEMINI_API_KEY")
	str(&c.Chat.GeminiModel, "GEMINI_MODEL")
	str(&c.Upload.Endpoint, "UPLOAD_ENDPOINT")
	str(&c.Upload.Backend, "UPLOAD_BACKEND")
	str(&c.Upload.S3.Endpoint, "S3_ENDPOINT")
	str(&c.Upload.S3.AccessKey, "S3_ACCESS_KEY")
	str(&c.Upload.S3.SecretKey, "S3_SECRET_KEY")
	str(&c.Upload.S3.Bucket, "S3_BUCKET")
	str(&c.Log.Level, "ROUTESCOPE_LOG_LEVEL")
	if v := strings.TrimSpace(getenv("ROUTESCOPE_ALLOWED_HOSTS")); v != "" {
		c.Server.AllowedHosts = nil
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				c.Server.AllowedHosts = append(c.Server.AllowedHosts, h)
			}
		}
	}
	if v := getenv("S3_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Upload.S3.UseSSL = b
		}
	}
}

// provider returns the normalized chat provider.
func (c *Config) provider() string {
	p := strings.ToLower(strings.TrimSpace(c.Chat.Provider))
	switch p {
	case "", "agent":
		return "stackspot"
	case "google":
		return "gemini"
	case "test":
		return "mock"
	}
	return p
}

// uploadBackend returns the effective upload backend.
func (c *Config) uploadBackend() string {
	switch b := strings.ToLower(strings.TrimSpace(c.Upload.Backend)); b {
	case "":
		if c.provider() == "stackspot" {
			return UploadStackspot
		}
		return UploadNone
	case "minio":
		return UploadS3
	default:
		return b
	}
}

// needsOAuth reports whether any collaborator authenticates with the
// token endpoint.
func (c *Config) needsOAuth() bool {
	return c.provider() == "stackspot" || c.uploadBackend() == UploadStackspot
}

// Validate checks the settings. Collaborator credentials are only
// required when withCollaborators is set.
func (c *Config) Validate(withCollaborators bool) error {
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must not be negative")
	}
	if _, err := analysis.NewSourceParser(analysis.ParserMode(c.Scan.Parser), nil); err != nil {
		return err
	}
	if !withCollaborators {
		return nil
	}

	var missing []string
	if c.needsOAuth() {
		if c.OAuth.ClientID == "" {
			missing = append(missing, "OAUTH2_CLIENT_ID")
		}
		if c.OAuth.ClientSecret == "" {
			missing = append(missing, "OAUTH2_CLIENT_SECRET")
		}
	}
	switch c.provider() {
	case "stackspot", "mock":
	case "gemini":
		if c.Chat.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown chat provider: %s", c.Chat.Provider)
	}
	switch c.uploadBackend() {
	case UploadStackspot, UploadNone:
	case UploadS3:
		if c.Upload.S3.Endpoint == "" {
			missing = append(missing, "S3_ENDPOINT")
		}
		if c.Upload.S3.Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown upload backend: %s", c.Upload.Backend)
	}
	if len(missing) > 0 {
		return &missingSettingsError{names: missing}
	}
	return nil
}

type missingSettingsError struct {
	names []string
}

func (e *missingSettingsError) Error() string {
	return "missing settings: " + strings.Join(e.names, ", ")
}
