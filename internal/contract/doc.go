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

// Package contract holds the limits of the routescope HTTP API.
//
// Request bodies are capped by a soft limit, 1 MiB unless the
// ROUTESCOPE_MAX_BODY_BYTES environment variable sets another positive
// value:
//
//	r.Body = http.MaxBytesReader(w, r.Body, int64(contract.MaxBodyBytes()))
//
// Client request ids are accepted only when short and made of
// [A-Za-z0-9._-], because they end up in workspace directory names and
// log lines:
//
//	id := contract.RequestID(r.Header.Get("X-Request-ID"), uuid.NewString)
package contract
