// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.packetIndexed("chan0_0")
	m.mapped(4096)
	m.eventRead("sched_switch")
	m.decodeError("invalid")

	if got := testutil.ToFloat64(m.packetsIndexed.WithLabelValues("chan0_0")); got != 1 {
		t.Fatalf("packets_indexed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.bytesMapped); got != 4096 {
		t.Fatalf("bytes_mapped_total = %v, want 4096", got)
	}
	if got := testutil.ToFloat64(m.eventsRead.WithLabelValues("sched_switch")); got != 1 {
		t.Fatalf("events_read_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.decodeErrors.WithLabelValues("invalid")); got != 1 {
		t.Fatalf("decode_errors_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsNoOp(t *testing.T) {
	var m *Metrics
	// None of these may panic on a nil *Metrics (every Config with no
	// Metrics attached uses the nil value, SPEC_FULL.md §4.10).
	m.packetIndexed("x")
	m.mapped(1)
	m.eventRead("x")
	m.decodeError("x")
}
