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

// Command routescope checks whether a Spring service already exposes an
// endpoint for a scope and path, and asks a chat agent to generate what
// is missing.
//
// Usage:
//
//	routescope analyze --scope S --path P    Download, scan and dispatch
//	routescope scan --dir DIR --scope S --path P
//	                                         Scan a local tree
//	routescope serve [--addr :8080]          Start the HTTP API
//	routescope version                       Print version information
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kraklabs/routescope/internal/output"
	"github.com/kraklabs/routescope/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags are the flags accepted before the command name.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Debug   bool
}

// stdout receives command results.
var stdout io.Writer = os.Stdout

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to routescope.yaml (default: ./routescope.yaml if present)")
		jsonOutput  = flag.Bool("json", false, "Print results as JSON")
		quiet       = flag.Bool("quiet", false, "Hide progress output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		debug       = flag.Bool("debug", false, "Log at debug level")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `routescope - endpoint scope analysis for Spring services

routescope downloads a repository archive, finds the controller that
guards a route with an OAuth scope, and either reports it or asks a
chat agent to extend the controller, create one, or write unit tests.

Usage:
  routescope [global options] <command> [options]

Commands:
  analyze       Download the repository, classify and dispatch
  scan          Classify a local source tree (no download, no agents)
  serve         Start the HTTP API
  version       Show version information

Global Options:
  --config      Path to routescope.yaml
  --json        Print results as JSON
  --quiet       Hide progress output
  --no-color    Disable colored output
  --debug       Log at debug level
  --version     Show version and exit

Examples:
  routescope analyze --scope orders --path /orders/{id}
  routescope analyze --scope orders --path /orders --type unit_test
  routescope analyze --repo file:///tmp/svc.zip -s orders -p /orders --dry-run
  routescope --json scan --dir ./svc --scope orders --path /orders
  routescope serve --addr :9090

Environment Variables:
  ROUTESCOPE_REPO_URL    Repository archive (default: resource-service main.zip)
  OAUTH2_CLIENT_ID       OAuth client id for the chat and upload services
  OAUTH2_CLIENT_SECRET   OAuth client secret
  CHAT_PROVIDER          stackspot (default), gemini or mock
  GEMINI_API_KEY         API key for the gemini provider
  UPLOAD_BACKEND         stackspot, s3 or none

For detailed command help: routescope <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		printVersion(*jsonOutput)
		os.Exit(0)
	}

	globals := GlobalFlags{
		JSON:    *jsonOutput,
		Quiet:   *quiet || *jsonOutput,
		NoColor: *noColor,
		Debug:   *debug,
	}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "analyze":
		runAnalyze(cmdArgs, *configPath, globals)
	case "scan":
		runScan(cmdArgs, *configPath, globals)
	case "serve":
		runServe(cmdArgs, *configPath, globals)
	case "version":
		printVersion(globals.JSON)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func printVersion(jsonOut bool) {
	if jsonOut {
		_ = output.JSONCompactTo(stdout, versionInfo{Version: version, Commit: commit, Date: date})
		return
	}
	fmt.Fprintf(stdout, "routescope version %s\n", version)
	fmt.Fprintf(stdout, "commit: %s\n", commit)
	fmt.Fprintf(stdout, "built: %s\n", date)
}
