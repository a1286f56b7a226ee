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
	"fmt"
	"log/slog"

	"github.com/kraklabs/routescope/pkg/analysis"
	"github.com/kraklabs/routescope/pkg/decision"
	"github.com/kraklabs/routescope/pkg/stackspot"
)

// newPipeline builds the analysis pipeline from cfg.
func newPipeline(cfg *Config, logger *slog.Logger) (*analysis.Pipeline, error) {
	pc := analysis.PipelineConfig{
		WorkDir: cfg.WorkDir,
		Scanner: analysis.ScannerConfig{
			ParserMode: analysis.ParserMode(cfg.Scan.Parser),
			Workers:    cfg.Scan.Workers,
		},
		HTTP: analysis.HTTPConfig{
			Timeout: cfg.Scan.DownloadTimeout,
			MaxSize: cfg.Scan.MaxArchiveMB << 20,
		},
	}
	if len(cfg.Scan.ControllerDirs) > 0 {
		pc.Candidates = map[analysis.DirectoryKind][]string{analysis.ControllerRoot: cfg.Scan.ControllerDirs}
	}
	return analysis.NewPipeline(pc, logger)
}

// newDispatcher wires the chat agents, uploader and token source. With
// dryRun every collaborator is replaced by the mock client and nothing
// leaves the process.
func newDispatcher(ctx context.Context, cfg *Config, locator *analysis.Locator, dryRun bool, logger *slog.Logger) (*decision.Dispatcher, error) {
	if dryRun {
		return decision.New(decision.Config{Controller: &stackspot.MockClient{}, Locator: locator}, logger)
	}

	var tokens *stackspot.OAuthClient
	if cfg.needsOAuth() {
		var err error
		tokens, err = stackspot.NewOAuthClient(stackspot.OAuthConfig{
			TokenURL:     cfg.OAuth.TokenURL,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	chatCfg := func(endpoint string) stackspot.ChatConfig {
		cc := stackspot.ChatConfig{
			Provider:     cfg.provider(),
			Endpoint:     endpoint,
			GeminiAPIKey: cfg.Chat.GeminiAPIKey,
			GeminiModel:  cfg.Chat.GeminiModel,
			Timeout:      cfg.Chat.Timeout,
		}
		if tokens != nil {
			cc.Tokens = tokens
		}
		return cc
	}

	controller, err := stackspot.NewChatClient(ctx, chatCfg(cfg.Chat.Endpoint), logger)
	if err != nil {
		return nil, fmt.Errorf("controller agent: %w", err)
	}
	unitTest := controller
	if cfg.provider() == "stackspot" {
		unitTest, err = stackspot.NewChatClient(ctx, chatCfg(cfg.Chat.UnitTestEndpoint), logger)
		if err != nil {
			return nil, fmt.Errorf("unit test agent: %w", err)
		}
	}

	dc := decision.Config{Controller: controller, UnitTest: unitTest, Locator: locator}
	switch cfg.uploadBackend() {
	case UploadStackspot:
		dc.Uploader = stackspot.NewFormUploader(stackspot.UploadConfig{
			Endpoint:   cfg.Upload.Endpoint,
			Expiration: cfg.Upload.Expiration,
		}, logger)
		dc.Tokens = tokens
	case UploadS3:
		s3 := cfg.Upload.S3
		dc.Uploader, err = stackspot.NewObjectStoreUploader(stackspot.ObjectStoreConfig{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			UseSSL:    s3.UseSSL,
			Prefix:    s3.Prefix,
		}, logger)
		if err != nil {
			return nil, err
		}
	}
	return decision.New(dc, logger)
}
