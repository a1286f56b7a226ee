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

// Package testing provides fixtures for routescope tests.
//
// Analysis tests need archives and Java source trees on disk. This package
// builds both inside t.TempDir() so that every test gets an isolated copy.
//
// # Quick Start
//
//	func TestPipeline(t *testing.T) {
//	    src := rstest.ControllerSource("com.acme", "OrderController", "RestController",
//	        rstest.EndpointMethod{Name: "get", Scope: "orders", Mapping: `@GetMapping("/orders")`})
//
//	    archive := rstest.WriteZip(t, t.TempDir(), "repo.zip", []rstest.ZipEntry{
//	        {Name: "repo-main/src/main/java/controller/OrderController.java", Body: src},
//	    })
//	    // ... run the pipeline against archive
//	}
//
// # Helpers
//
//   - BuildZip, WriteZip: Build zip archives with entries in a fixed order
//   - WriteTree: Lay out source files below a directory
//   - ListFiles: Snapshot the files of a directory for comparisons
//   - ControllerSource: Render a Spring controller with scoped endpoints
//   - ArchiveServer: Serve an archive over HTTP and count hits
package testing
