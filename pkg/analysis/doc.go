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

// Package analysis provides the repository analysis pipeline for routescope.
//
// The analysis package downloads a source archive, extracts it into a
// request-scoped working tree, scans the Java sources it contains for
// method-level security and routing annotations, and classifies the result
// against a requested (scope, path) pair.
//
// # Pipeline Overview
//
// A single analysis run goes through six stages:
//
//  1. Fetch: Download the archive into a fresh workspace directory
//  2. Extract: Unpack every entry in archive order, overwriting stale files
//  3. Locate: Find the controller sub-tree using conventional paths
//  4. Scan: Parse each .java file with Tree-sitter and collect matches
//  5. Classify: Reduce the matches to AlreadyExists, ScopeOnly or NoMatch
//  6. Cleanup: Remove the archive and working tree on every exit path
//
// Between classify and cleanup the pipeline calls an optional Handoff so
// that downstream collaborators (upload, chat) can read the matched file
// while it still exists on disk.
//
// # Matching Rules
//
// A file is only scanned when its type declaration carries @RestController
// or @Controller. For each method:
//   - scope is found when @PreAuthorize contains oauth2.hasScope('<scope>'),
//     with or without a leading '#'
//   - path is found when @GetMapping, @PostMapping or @RequestMapping
//     contains path = "<path>", value = "<path>" or "<path>"
//
// Flags are OR-ed across the methods of a file, and a file without any
// positive flag is dropped from the results.
//
// # Quick Start
//
//	pipeline := analysis.NewPipeline(analysis.PipelineConfig{
//	    WorkDir: os.TempDir(),
//	}, logger)
//
//	result, err := pipeline.Run(ctx, analysis.Request{
//	    RepoURL: "https://github.com/acme/orders/archive/refs/heads/main.zip",
//	    Scope:   "orders",
//	    Path:    "/orders/{id}",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Classification.Kind)
//
// # Concurrency
//
// Every Run allocates its own workspace directory, so concurrent runs never
// share a working tree. Parsing may fan out over a bounded worker pool, but
// results are always reported in file-walk order.
package analysis
