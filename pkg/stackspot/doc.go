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

// Package stackspot implements the external collaborators that receive a
// classification result: an OAuth2 client-credentials token source, file
// uploaders, and chat clients for the controller and unit-test agents.
//
// # Providers
//
// Chat traffic goes to one of:
//
//   - stackspot: the hosted agent chat endpoint (bearer token, upload ids)
//   - gemini: Google Gemini through google.golang.org/genai, with uploaded
//     files inlined in the prompt
//   - mock: deterministic echo for tests and offline runs
//
// Uploads go to the Stackspot form-upload endpoint (presigned form) or to
// an S3-compatible object store.
//
// # Usage
//
//	tokens, _ := stackspot.NewOAuthClient(stackspot.OAuthConfig{
//	    TokenURL:     stackspot.DefaultTokenURL,
//	    ClientID:     os.Getenv("OAUTH2_CLIENT_ID"),
//	    ClientSecret: os.Getenv("OAUTH2_CLIENT_SECRET"),
//	}, logger)
//	chat, _ := stackspot.NewChatClient(ctx, stackspot.ChatConfig{
//	    Provider: "stackspot",
//	    Endpoint: stackspot.DefaultControllerAgentURL,
//	    Tokens:   tokens,
//	}, logger)
//	resp, err := chat.Chat(ctx, stackspot.ChatRequest{Prompt: "scope: orders, path: /orders"})
//
// All clients are safe for concurrent use.
package stackspot
