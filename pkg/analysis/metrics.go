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

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsAnalysis struct {
	once sync.Once

	runs          *prometheus.CounterVec // by outcome
	failures      *prometheus.CounterVec // by stage
	filesScanned  prometheus.Counter
	parseSkips    prometheus.Counter
	matches       prometheus.Counter
	cleanupErrors prometheus.Counter

	fetchDuration   prometheus.Histogram
	extractDuration prometheus.Histogram
	scanDuration    prometheus.Histogram
	totalDuration   prometheus.Histogram
}

var anMetrics metricsAnalysis

func (m *metricsAnalysis) init() {
	m.once.Do(func() {
		m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "routescope_pipeline_runs_total", Help: "Pipeline runs by classification"}, []string{"classification"})
		m.failures = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "routescope_pipeline_failures_total", Help: "Pipeline runs aborted, by stage"}, []string{"stage"})
		m.filesScanned = prometheus.NewCounter(prometheus.CounterOpts{Name: "routescope_scan_files_total", Help: "Source files visited by the scanner"})
		m.parseSkips = prometheus.NewCounter(prometheus.CounterOpts{Name: "routescope_scan_parse_skips_total", Help: "Source files skipped after a parse failure"})
		m.matches = prometheus.NewCounter(prometheus.CounterOpts{Name: "routescope_scan_matches_total", Help: "Files with a scope or path signal"})
		m.cleanupErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "routescope_cleanup_errors_total", Help: "Failed deletions of archives or working trees"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
		m.fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "routescope_fetch_seconds", Help: "Archive download duration", Buckets: buckets})
		m.extractDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "routescope_extract_seconds", Help: "Archive extraction duration", Buckets: buckets})
		m.scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "routescope_scan_seconds", Help: "Source scan duration", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "routescope_pipeline_seconds", Help: "Total pipeline duration", Buckets: buckets})

		prometheus.MustRegister(
			m.runs, m.failures,
			m.filesScanned, m.parseSkips, m.matches, m.cleanupErrors,
			m.fetchDuration, m.extractDuration, m.scanDuration, m.totalDuration,
		)
	})
}

func recordRun(kind Kind, d StageDurations) {
	anMetrics.init()
	anMetrics.runs.WithLabelValues(kind.String()).Inc()
	anMetrics.fetchDuration.Observe(d.Fetch.Seconds())
	anMetrics.extractDuration.Observe(d.Extract.Seconds())
	anMetrics.totalDuration.Observe(d.Total.Seconds())
}

func recordFailure(stage string) {
	anMetrics.init()
	anMetrics.failures.WithLabelValues(stage).Inc()
}

func recordScan(stats ScanStats, d time.Duration) {
	anMetrics.init()
	anMetrics.filesScanned.Add(float64(stats.FilesSeen))
	anMetrics.parseSkips.Add(float64(stats.ParseSkips))
	anMetrics.matches.Add(float64(stats.Matches))
	anMetrics.scanDuration.Observe(d.Seconds())
}

func recordCleanupError() { anMetrics.init(); anMetrics.cleanupErrors.Inc() }
