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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/kraklabs/routescope/internal/errors"
	rstest "github.com/kraklabs/routescope/internal/testing"
	"github.com/kraklabs/routescope/internal/ui"
	"github.com/kraklabs/routescope/pkg/analysis"
)

const fixtureRoot = "resource-service-main/src/main/java/com/example/demo/controller/"

func fixtureArchive(t *testing.T, withTest bool) []byte {
	t.Helper()
	entries := []rstest.ZipEntry{
		{Name: "resource-service-main/"},
		{Name: fixtureRoot + "OrderController.java", Body: rstest.ControllerSource("com.example.demo.controller", "OrderController", "RestController",
			rstest.EndpointMethod{Name: "get", Scope: "orders", Mapping: `@GetMapping("/orders/{id}")`})},
	}
	if withTest {
		entries = append(entries, rstest.ZipEntry{
			Name: "resource-service-main/src/test/java/com/example/demo/controller/OrderControllerTest.java",
			Body: "class OrderControllerTest {}",
		})
	}
	return rstest.BuildZip(t, entries)
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WorkDir = t.TempDir()
	cfg.Scan.Workers = 2
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func captureUI(t *testing.T) *bytes.Buffer {
	t.Helper()
	originalOut, originalNoColor := ui.Out, color.NoColor
	t.Cleanup(func() { ui.Out, color.NoColor = originalOut, originalNoColor })

	var buf bytes.Buffer
	ui.Out = &buf
	color.NoColor = true
	return &buf
}

func TestExecuteAnalyze_DryRun(t *testing.T) {
	srv, _ := rstest.ArchiveServer(t, http.StatusOK, fixtureArchive(t, false))
	cfg := testConfig(t)

	tests := []struct {
		name        string
		path        string
		typ         string
		wantKind    analysis.Kind
		wantMessage string
	}{
		{
			name:        "already exists",
			path:        "/orders/{id}",
			wantKind:    analysis.AlreadyExists,
			wantMessage: "Endpoint already exists for the requested scope.\nClass: OrderController.java",
		},
		{
			name:        "scope only",
			path:        "/orders/{id}/items",
			wantKind:    analysis.ScopeOnly,
			wantMessage: "[mock] scope: orders, path: /orders/{id}/items",
		},
		{
			name:        "unit test without test class",
			path:        "/orders/{id}",
			typ:         "unit_test",
			wantKind:    analysis.AlreadyExists,
			wantMessage: "[mock] scope: orders, path: /orders/{id}, className: OrderController - create new unit test",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := executeAnalyze(context.Background(), cfg, analyzeOptions{
				RepoURL: srv.URL,
				Scope:   "orders",
				Path:    tt.path,
				Type:    tt.typ,
				DryRun:  true,
			}, discardLogger())
			if err != nil {
				t.Fatalf("executeAnalyze() error = %v", err)
			}
			if report.Classification.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", report.Classification.Kind, tt.wantKind)
			}
			if report.Reply == nil || report.Reply.Message != tt.wantMessage {
				t.Errorf("Reply = %+v, want message %q", report.Reply, tt.wantMessage)
			}
		})
	}

	entries, err := os.ReadDir(cfg.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir not cleaned: %d entries", len(entries))
	}
}

func TestExecuteAnalyze_ExistingTestClass(t *testing.T) {
	srv, _ := rstest.ArchiveServer(t, http.StatusOK, fixtureArchive(t, true))

	report, err := executeAnalyze(context.Background(), testConfig(t), analyzeOptions{
		RepoURL: srv.URL, Scope: "orders", Path: "/orders", Type: "unit-test", DryRun: true,
	}, discardLogger())
	if err != nil {
		t.Fatalf("executeAnalyze() error = %v", err)
	}
	if want := "[mock] scope: orders, path: /orders - generate unit test"; report.Reply.Message != want {
		t.Errorf("Message = %q, want %q", report.Reply.Message, want)
	}
	if report.Reply.File != "OrderControllerTest.java" {
		t.Errorf("File = %q", report.Reply.File)
	}
}

func TestExecuteAnalyze_MockProvider(t *testing.T) {
	srv, _ := rstest.ArchiveServer(t, http.StatusOK, fixtureArchive(t, false))
	cfg := testConfig(t)
	cfg.Chat.Provider = "mock"
	cfg.RepoURL = srv.URL

	report, err := executeAnalyze(context.Background(), cfg, analyzeOptions{Scope: "payments", Path: "/payments"}, discardLogger())
	if err != nil {
		t.Fatalf("executeAnalyze() error = %v", err)
	}
	if report.Classification.Kind != analysis.NoMatch {
		t.Errorf("Kind = %v, want NoMatch", report.Classification.Kind)
	}
	if report.Request.RepoURL != srv.URL {
		t.Errorf("RepoURL = %q, want the configured repository", report.Request.RepoURL)
	}
	if report.Reply.Message != "[mock] scope: payments, path: /payments" {
		t.Errorf("Message = %q", report.Reply.Message)
	}
}

func TestExecuteAnalyze_Errors(t *testing.T) {
	notFound, _ := rstest.ArchiveServer(t, http.StatusNotFound, []byte("missing"))

	tests := []struct {
		name     string
		cfg      func(*Config)
		opts     analyzeOptions
		wantCode int
	}{
		{
			name:     "missing scope",
			opts:     analyzeOptions{Path: "/orders", DryRun: true},
			wantCode: errors.ExitInput,
		},
		{
			name:     "missing credentials",
			opts:     analyzeOptions{Scope: "orders", Path: "/orders"},
			wantCode: errors.ExitConfig,
		},
		{
			name:     "unknown provider",
			cfg:      func(c *Config) { c.Chat.Provider = "openai" },
			opts:     analyzeOptions{Scope: "orders", Path: "/orders"},
			wantCode: errors.ExitConfig,
		},
		{
			name:     "download failure",
			opts:     analyzeOptions{RepoURL: notFound.URL, Scope: "orders", Path: "/orders", DryRun: true},
			wantCode: errors.ExitNetwork,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			_, err := executeAnalyze(context.Background(), cfg, tt.opts, discardLogger())
			if err == nil {
				t.Fatal("executeAnalyze() error = nil")
			}
			ue, ok := errors.As(userError(err))
			if !ok || ue.ExitCode != tt.wantCode {
				t.Errorf("exit code = %v, want %d (err: %v)", ue, tt.wantCode, err)
			}
		})
	}
}

func TestExecuteScan(t *testing.T) {
	root := t.TempDir()
	rstest.WriteTree(t, root, map[string]string{
		"src/main/java/controller/OrderController.java": rstest.ControllerSource("x", "OrderController", "RestController",
			rstest.EndpointMethod{Name: "get", Scope: "orders", Mapping: `@GetMapping("/orders")`}),
		"src/main/java/controller/OrderAdminController.java": rstest.ControllerSource("x", "OrderAdminController", "Controller",
			rstest.EndpointMethod{Name: "purge", Scope: "orders"}),
	})

	report, err := executeScan(context.Background(), testConfig(t), root, "orders", "/orders", discardLogger())
	if err != nil {
		t.Fatalf("executeScan() error = %v", err)
	}
	if report.ControllerRoot != filepath.Join(root, "src", "main", "java", "controller") {
		t.Errorf("ControllerRoot = %q", report.ControllerRoot)
	}
	if report.Classification.Kind != analysis.AlreadyExists || report.Classification.Match.DisplayName != "OrderController.java" {
		t.Errorf("Classification = %+v", report.Classification)
	}
	if len(report.Matches) != 2 {
		t.Errorf("Matches = %d, want 2", len(report.Matches))
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("scan must not delete the tree")
	}

	buf := captureUI(t)
	if err := renderScan(buf, report, GlobalFlags{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Source Scan", "already_exists", "OrderController.java", "OrderAdminController.java scope=true path=false"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExecuteScan_Errors(t *testing.T) {
	cfg := testConfig(t)

	_, err := executeScan(context.Background(), cfg, filepath.Join(t.TempDir(), "missing"), "orders", "/orders", discardLogger())
	if ue, ok := errors.As(err); !ok || ue.ExitCode != errors.ExitNotFound {
		t.Errorf("missing dir: err = %v", err)
	}

	_, err = executeScan(context.Background(), cfg, t.TempDir(), "", "/orders", discardLogger())
	if ue, ok := errors.As(err); !ok || ue.ExitCode != errors.ExitInput {
		t.Errorf("missing scope: err = %v", err)
	}
}

func TestRenderAnalyze(t *testing.T) {
	srv, _ := rstest.ArchiveServer(t, http.StatusOK, fixtureArchive(t, false))
	report, err := executeAnalyze(context.Background(), testConfig(t), analyzeOptions{
		RepoURL: srv.URL, Scope: "orders", Path: "/orders/{id}", DryRun: true,
	}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := renderAnalyze(&buf, report, GlobalFlags{JSON: true}); err != nil {
		t.Fatal(err)
	}
	var env struct {
		Command   string `json:"command"`
		RequestID string `json:"request_id"`
		Data      struct {
			Classification struct {
				Kind string `json:"kind"`
			} `json:"classification"`
			Reply struct {
				Kind string `json:"kind"`
				File string `json:"file"`
			} `json:"reply"`
		} `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if env.Command != "analyze" || env.RequestID == "" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Data.Classification.Kind != "already_exists" || env.Data.Reply.Kind != "already_exists" {
		t.Errorf("kinds = %+v", env.Data)
	}
	if strings.Contains(buf.String(), `\u0026`) {
		t.Error("JSON output must not escape HTML characters")
	}

	text := captureUI(t)
	if err := renderAnalyze(text, report, GlobalFlags{}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Endpoint Analysis", "already_exists", "Dry run", "Class: OrderController.java"} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("output missing %q:\n%s", want, text.String())
		}
	}
}
