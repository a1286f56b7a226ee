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

// Package decision turns a classification into a reply: it reports an
// existing endpoint directly or asks a chat agent to generate code, with
// the relevant source files uploaded as context.
//
// Each request type has its own dispatch table keyed by analysis.Kind:
//
//	controller  AlreadyExists  reply with the matching class, no network
//	            ScopeOnly      upload the matching class, ask to add the path
//	            NoMatch        ask for a new endpoint, no uploads
//	unit_test   any            upload the test class and/or the original
//	                           class, ask to generate or create a test
//
// Actions run inside the pipeline handoff, while the working tree exists.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kraklabs/routescope/pkg/analysis"
	"github.com/kraklabs/routescope/pkg/stackspot"
)

// Type selects the dispatch table.
type Type string

const (
	TypeController Type = "controller"
	TypeUnitTest   Type = "unit_test"
)

// ParseType maps a request type to a Type. Matching is case-insensitive;
// empty and unknown values select TypeController.
func ParseType(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unit_test", "unit-test", "unittest":
		return TypeUnitTest
	default:
		return TypeController
	}
}

// unknownClass names the class in unit-test prompts when nothing matched.
const unknownClass = "UnknownClass"

// Reply is the outcome of one dispatch.
type Reply struct {
	Message string        `json:"message"`
	Type    Type          `json:"type"`
	Kind    analysis.Kind `json:"kind"`
	File    string        `json:"file,omitempty"`
	Uploads int           `json:"uploads,omitempty"`
}

// Action handles one classification outcome.
type Action func(ctx context.Context, d *Dispatcher, result *analysis.Result) (*Reply, error)

// Config wires a Dispatcher to its collaborators.
type Config struct {
	// Controller answers controller requests and direct messages. Required.
	Controller stackspot.ChatClient

	// UnitTest answers unit-test requests. Default: Controller.
	UnitTest stackspot.ChatClient

	// Uploader sends context files. When nil, files are only passed by
	// path for providers that inline them.
	Uploader stackspot.Uploader

	// Tokens authenticates uploads. Optional for uploaders that carry
	// their own credentials.
	Tokens stackspot.TokenProvider

	// Locator finds test classes. Default: analysis.NewLocator(nil, logger).
	Locator *analysis.Locator
}

// Dispatcher routes results through the per-type dispatch tables.
type Dispatcher struct {
	controller stackspot.ChatClient
	unitTest   stackspot.ChatClient
	uploader   stackspot.Uploader
	tokens     stackspot.TokenProvider
	locator    *analysis.Locator
	tables     map[Type]map[analysis.Kind]Action
	logger     *slog.Logger
}

// New creates a Dispatcher. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Controller == nil {
		return nil, fmt.Errorf("decision: controller chat client is required")
	}
	if cfg.UnitTest == nil {
		cfg.UnitTest = cfg.Controller
	}
	if cfg.Locator == nil {
		cfg.Locator = analysis.NewLocator(nil, logger)
	}
	return &Dispatcher{
		controller: cfg.Controller,
		unitTest:   cfg.UnitTest,
		uploader:   cfg.Uploader,
		tokens:     cfg.Tokens,
		locator:    cfg.Locator,
		tables:     defaultTables(),
		logger:     logger,
	}, nil
}

func defaultTables() map[Type]map[analysis.Kind]Action {
	return map[Type]map[analysis.Kind]Action{
		TypeController: {
			analysis.AlreadyExists: reportExisting,
			analysis.ScopeOnly:     extendScope,
			analysis.NoMatch:       createEndpoint,
		},
		TypeUnitTest: {
			analysis.AlreadyExists: generateUnitTest,
			analysis.ScopeOnly:     generateUnitTest,
			analysis.NoMatch:       generateUnitTest,
		},
	}
}

// Dispatch runs the action registered for typ and the result's Kind.
func (d *Dispatcher) Dispatch(ctx context.Context, typ Type, result *analysis.Result) (*Reply, error) {
	if result == nil {
		return nil, fmt.Errorf("decision: nil result")
	}
	table, ok := d.tables[typ]
	if !ok {
		typ = TypeController
		table = d.tables[typ]
	}
	action, ok := table[result.Classification.Kind]
	if !ok {
		return nil, fmt.Errorf("decision: no action for %s/%s", typ, result.Classification.Kind)
	}

	d.logger.Info("decision.dispatch",
		"request_id", result.Request.RequestID,
		"type", string(typ),
		"kind", result.Classification.Kind.String(),
	)
	reply, err := action(ctx, d, result)
	if err != nil {
		d.logger.Error("decision.failed", "request_id", result.Request.RequestID, "type", string(typ), "err", err)
		return nil, err
	}
	reply.Type = typ
	reply.Kind = result.Classification.Kind
	return reply, nil
}

// Handoff adapts Dispatch to the pipeline handoff. The reply is written
// to out before the working tree is removed.
func (d *Dispatcher) Handoff(typ Type, out *Reply) analysis.Handoff {
	return func(ctx context.Context, result *analysis.Result) error {
		reply, err := d.Dispatch(stackspot.WithRequestID(ctx, result.Request.RequestID), typ, result)
		if err != nil {
			return err
		}
		*out = *reply
		return nil
	}
}

// Direct sends a free-form message to the controller agent.
func (d *Dispatcher) Direct(ctx context.Context, message string) (*Reply, error) {
	d.logger.Info("decision.direct", "chars", len(message))
	resp, err := d.controller.Chat(ctx, stackspot.ChatRequest{Prompt: message})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return &Reply{Message: resp.Message, Type: TypeController}, nil
}

func reportExisting(_ context.Context, _ *Dispatcher, result *analysis.Result) (*Reply, error) {
	name := result.Classification.Match.DisplayName
	return &Reply{
		Message: "Endpoint already exists for the requested scope.\nClass: " + name,
		File:    name,
	}, nil
}

func extendScope(ctx context.Context, d *Dispatcher, result *analysis.Result) (*Reply, error) {
	match := result.Classification.Match
	prompt := fmt.Sprintf("scope: %s, path: %s", match.MatchedScope, result.Request.Path)
	return d.chat(ctx, d.controller, prompt, []string{match.FilePath}, &Reply{File: match.DisplayName})
}

func createEndpoint(ctx context.Context, d *Dispatcher, result *analysis.Result) (*Reply, error) {
	prompt := fmt.Sprintf("scope: %s, path: %s", result.Request.Scope, result.Request.Path)
	return d.chat(ctx, d.controller, prompt, nil, &Reply{})
}

// generateUnitTest works from the first match that declares the scope,
// whether or not its path matched.
func generateUnitTest(ctx context.Context, d *Dispatcher, result *analysis.Result) (*Reply, error) {
	scope, path := result.Request.Scope, result.Request.Path

	var match *analysis.ScopeMatch
	for i := range result.Matches {
		if result.Matches[i].ScopeFound {
			match = &result.Matches[i]
			break
		}
	}
	if match == nil {
		d.logger.Info("decision.unit_test.no_class", "scope", scope)
		prompt := fmt.Sprintf("scope: %s, path: %s, className: %s - create new unit test", scope, path, unknownClass)
		return d.chat(ctx, d.unitTest, prompt, nil, &Reply{})
	}

	className := strings.TrimSuffix(match.DisplayName, ".java")
	testPath, found := d.locator.FindTestClass(analysis.ProjectRoot(match.FilePath), className)
	if found {
		d.logger.Info("decision.unit_test.existing", "class", className, "test", filepath.Base(testPath))
		prompt := fmt.Sprintf("scope: %s, path: %s - generate unit test", scope, path)
		return d.chat(ctx, d.unitTest, prompt, []string{testPath, match.FilePath}, &Reply{File: filepath.Base(testPath)})
	}

	d.logger.Info("decision.unit_test.new", "class", className)
	prompt := fmt.Sprintf("scope: %s, path: %s, className: %s - create new unit test", scope, path, className)
	return d.chat(ctx, d.unitTest, prompt, []string{match.FilePath}, &Reply{File: match.DisplayName})
}

// chat uploads files in order, then sends prompt with the upload ids.
func (d *Dispatcher) chat(ctx context.Context, client stackspot.ChatClient, prompt string, files []string, reply *Reply) (*Reply, error) {
	ids, err := d.upload(ctx, files)
	if err != nil {
		return nil, err
	}
	resp, err := client.Chat(ctx, stackspot.ChatRequest{Prompt: prompt, UploadIDs: ids, Files: files})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	reply.Message = resp.Message
	reply.Uploads = len(ids)
	return reply, nil
}

func (d *Dispatcher) upload(ctx context.Context, files []string) ([]string, error) {
	if d.uploader == nil || len(files) == 0 {
		return nil, nil
	}
	token := ""
	if d.tokens != nil {
		t, err := d.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("get token: %w", err)
		}
		token = t
	}
	ids := make([]string, 0, len(files))
	for _, f := range files {
		id, err := d.uploader.Upload(ctx, f, token)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", filepath.Base(f), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
