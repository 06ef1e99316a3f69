// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts source attempts and task outcomes in a private
// Prometheus registry. The CLI writes it to a node-exporter textfile at the
// end of a run; nothing is served over HTTP.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "paperfetch"

// Metrics holds the collectors. A nil *Metrics is valid and records
// nothing, so components can take one unconditionally.
type Metrics struct {
	Registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	tasks           *prometheus.CounterVec
	bytes           prometheus.Counter
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "source_attempts_total", Help: "Adapter calls by source, operation, and outcome"},
			[]string{"source", "op", "outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "source_attempt_seconds", Help: "Adapter call latency including rate-limit waits", Buckets: prometheus.ExponentialBucketsRange(0.05, 120, 12)},
			[]string{"source", "op"},
		),
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "tasks_total", Help: "Retrieval tasks by terminal state"},
			[]string{"state"},
		),
		bytes: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "downloaded_bytes_total", Help: "PDF bytes written to disk"},
		),
	}
	m.Registry.MustRegister(m.attempts, m.attemptDuration, m.tasks, m.bytes)
	return m
}

// ObserveAttempt records one adapter call. op is "resolve" or "fetch".
func (m *Metrics) ObserveAttempt(source, op, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(source, op, outcome).Inc()
	m.attemptDuration.WithLabelValues(source, op).Observe(took.Seconds())
}

// ObserveTask records a task reaching a terminal state.
func (m *Metrics) ObserveTask(state string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(state).Inc()
}

// AddBytes records n bytes written.
func (m *Metrics) AddBytes(n int) {
	if m == nil {
		return
	}
	m.bytes.Add(float64(n))
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
