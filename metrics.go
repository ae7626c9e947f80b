// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the optional observability counters described in
// SPEC_FULL.md §4.10. Every increment method is nil-safe so call
// sites never need to branch on whether metrics are enabled.
type Metrics struct {
	packetsIndexed *prometheus.CounterVec
	bytesMapped    prometheus.Counter
	eventsRead     *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg and returns a Metrics
// ready to be attached to a Config. reg may be a
// prometheus.NewRegistry() for tests, or prometheus.DefaultRegisterer
// for a long-running process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		packetsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ctf",
			Name:      "packets_indexed_total",
			Help:      "Number of packets recorded by the packet indexer, by stream file.",
		}, []string{"stream_file"}),
		bytesMapped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ctf",
			Name:      "bytes_mapped_total",
			Help:      "Total bytes memory-mapped across all packet (re)mappings.",
		}),
		eventsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ctf",
			Name:      "events_read_total",
			Help:      "Number of events successfully decoded, by event name.",
		}, []string{"event_name"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ctf",
			Name:      "decode_errors_total",
			Help:      "Number of decode errors, by error class.",
		}, []string{"class"}),
	}
	reg.MustRegister(m.packetsIndexed, m.bytesMapped, m.eventsRead, m.decodeErrors)
	return m
}

func (m *Metrics) packetIndexed(streamFile string) {
	if m == nil {
		return
	}
	m.packetsIndexed.WithLabelValues(streamFile).Inc()
}

func (m *Metrics) mapped(n int) {
	if m == nil {
		return
	}
	m.bytesMapped.Add(float64(n))
}

func (m *Metrics) eventRead(name string) {
	if m == nil {
		return
	}
	m.eventsRead.WithLabelValues(name).Inc()
}

func (m *Metrics) decodeError(class string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(class).Inc()
}
