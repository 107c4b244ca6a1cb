// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shelfkeep/shelfkeep/internal/auth"
)

// Metrics contains the custom Prometheus metrics for shelfkeep.
type Metrics struct {
	LoginsTotal      *prometheus.CounterVec
	TokensTotal      *prometheus.CounterVec
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ImageUploadBytes prometheus.Counter
}

// NewMetrics creates and registers custom metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfkeep_auth_logins_total",
				Help: "Total number of login attempts by path and outcome",
			},
			[]string{"path", "outcome"},
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfkeep_auth_tokens_total",
				Help: "Session token lifecycle events",
			},
			[]string{"event"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfkeep_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelfkeep_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ImageUploadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shelfkeep_image_upload_bytes_total",
				Help: "Bytes accepted by image uploads",
			},
		),
	}

	reg.MustRegister(m.LoginsTotal)
	reg.MustRegister(m.TokensTotal)
	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.ImageUploadBytes)

	return m
}

// LoginOutcome implements auth.Recorder.
func (m *Metrics) LoginOutcome(path, outcome string) {
	m.LoginsTotal.WithLabelValues(path, outcome).Inc()
}

// TokenIssued implements auth.Recorder.
func (m *Metrics) TokenIssued() { m.TokensTotal.WithLabelValues("issued").Inc() }

// TokenReused implements auth.Recorder.
func (m *Metrics) TokenReused() { m.TokensTotal.WithLabelValues("reused").Inc() }

// TokenPruned implements auth.Recorder.
func (m *Metrics) TokenPruned() { m.TokensTotal.WithLabelValues("pruned").Inc() }

// TokensSwept implements auth.SweepRecorder.
func (m *Metrics) TokensSwept(n int64) {
	m.TokensTotal.WithLabelValues("swept").Add(float64(n))
}

// ObserveRequest records one served HTTP request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveUpload records the size of an accepted image.
func (m *Metrics) ObserveUpload(n int64) {
	m.ImageUploadBytes.Add(float64(n))
}

var (
	_ auth.Recorder      = (*Metrics)(nil)
	_ auth.SweepRecorder = (*Metrics)(nil)
)
