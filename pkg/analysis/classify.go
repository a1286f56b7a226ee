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

package analysis

// Classify reduces scan matches to a single Classification.
//
// Tiers are evaluated top to bottom, and the first entry in list order
// wins within a tier:
//  1. scope and path found: AlreadyExists
//  2. scope found only: ScopeOnly
//  3. otherwise: NoMatch
//
// Path-only entries never influence the result.
func Classify(matches []ScopeMatch) Classification {
	for i := range matches {
		if matches[i].ScopeFound && matches[i].PathFound {
			m := matches[i]
			return Classification{Kind: AlreadyExists, Match: &m}
		}
	}
	for i := range matches {
		if matches[i].ScopeFound {
			m := matches[i]
			return Classification{Kind: ScopeOnly, Match: &m}
		}
	}
	return Classification{Kind: NoMatch}
}
