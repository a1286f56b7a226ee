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
	"testing"
)

func TestNewPipeline_ControllerDirs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scan.ControllerDirs = []string{"svc/api"}

	p, err := newPipeline(cfg, discardLogger())
	if err != nil {
		t.Fatalf("newPipeline() error = %v", err)
	}
	if p.Locator() == nil {
		t.Fatal("Locator() = nil")
	}

	cfg.Scan.Parser = "javaparser"
	if _, err := newPipeline(cfg, discardLogger()); err == nil {
		t.Error("unknown parser must fail")
	}
}

func TestNewDispatcher(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		dryRun  bool
		wantErr bool
	}{
		{name: "dry run needs nothing", dryRun: true},
		{
			name:   "stackspot with credentials",
			mutate: func(c *Config) { c.OAuth.ClientID, c.OAuth.ClientSecret = "id", "secret" },
		},
		{name: "stackspot without credentials", wantErr: true},
		{
			name: "mock with object store",
			mutate: func(c *Config) {
				c.Chat.Provider = "mock"
				c.Upload.Backend = "s3"
				c.Upload.S3 = S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "uploads"}
			},
		},
		{
			name: "object store without keys",
			mutate: func(c *Config) {
				c.Chat.Provider = "mock"
				c.Upload.Backend = "s3"
				c.Upload.S3 = S3Config{Endpoint: "localhost:9000", Bucket: "uploads"}
			},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Chat.Provider = "openai" },
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			d, err := newDispatcher(context.Background(), cfg, nil, tt.dryRun, discardLogger())
			if tt.wantErr {
				if err == nil {
					t.Error("newDispatcher() error = nil")
				}
				return
			}
			if err != nil || d == nil {
				t.Fatalf("newDispatcher() = %v, %v", d, err)
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Addr = "127.0.0.1:0"

	srv, err := newServer(context.Background(), cfg, true, discardLogger())
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}
	if srv.Addr() != "127.0.0.1:0" {
		t.Errorf("Addr() = %q", srv.Addr())
	}

	if _, err := newServer(context.Background(), testConfig(t), false, discardLogger()); err == nil {
		t.Error("missing credentials must fail outside dry run")
	}
}
