// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctftime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saferwall/ctf"
)

func TestFormatSeconds(t *testing.T) {
	cfg := ctf.Config{ClockSeconds: true}
	got := Format(1_500_000_000, 1_000_000_000, cfg)
	assert.Equal(t, "  1.500000000", got)
}

func TestFormatRawBypassesRescale(t *testing.T) {
	cfg := ctf.Config{ClockSeconds: true, ClockRaw: true}
	// With a 1kHz clock, a non-raw render would divide by 1000; raw
	// mode must leave the tick count untouched.
	got := Format(2_000_000_000, 1_000, cfg)
	assert.Equal(t, "  2.000000000", got)
}

func TestFormatAppliesOffset(t *testing.T) {
	cfg := ctf.Config{ClockSeconds: true, ClockOffset: 10}
	got := Format(0, 1_000_000_000, cfg)
	assert.Equal(t, " 10.000000000", got)
}

func TestFormatRescalesFrequency(t *testing.T) {
	cfg := ctf.Config{ClockSeconds: true}
	// 1kHz clock: 2000 ticks is 2 seconds.
	got := Format(2000, 1_000, cfg)
	assert.Equal(t, "  2.000000000", got)
}

func TestFormatDateTime(t *testing.T) {
	cfg := ctf.Config{ClockGMT: true}
	got := Format(0, 1_000_000_000, cfg)
	assert.Equal(t, "00:00:00.000000000", got)
}
