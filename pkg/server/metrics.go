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

package server

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsHTTP struct {
	once sync.Once

	requests *prometheus.CounterVec   // by route, code
	duration *prometheus.HistogramVec // by route
}

var httpMetrics metricsHTTP

func (m *metricsHTTP) init() {
	m.once.Do(func() {
		m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "routescope_http_requests_total", Help: "HTTP requests by route and status code"}, []string{"route", "code"})
		m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "routescope_http_request_seconds",
			Help:    "HTTP request duration by route",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"route"})
		prometheus.MustRegister(m.requests, m.duration)
	})
}

func recordRequest(route, code string, d time.Duration) {
	httpMetrics.init()
	httpMetrics.requests.WithLabelValues(route, code).Inc()
	httpMetrics.duration.WithLabelValues(route).Observe(d.Seconds())
}
