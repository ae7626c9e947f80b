// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package ctftime formats a raw CTF clock timestamp for display,
// mirroring the reference implementation's ctf_print_timestamp. It is
// deliberately kept out of the core package: time formatting is a
// presentation concern of cmd/ctfdump, not of the trace reader.
package ctftime

import (
	"fmt"
	"math/big"
	"time"

	"github.com/saferwall/ctf"
)

const nsecPerSec = 1_000_000_000

// Format renders rawTimestamp, a value in units of freqHz ticks per
// second, the way the reference implementation's opt_clock_* globals
// control it, now read from cfg instead. freqHz of 0 is treated as
// "already nanoseconds" (no stream clock declared).
//
// cfg.ClockRaw skips the tick-to-nanosecond rescale entirely, printing
// the raw value as though it were already a nanosecond count — this
// matches the reference's separate get_timestamp_raw path.
func Format(rawTimestamp, freqHz uint64, cfg ctf.Config) string {
	var nsec uint64
	switch {
	case cfg.ClockRaw || freqHz == 0 || freqHz == nsecPerSec:
		nsec = rawTimestamp
	default:
		nsec = rescaleToNanos(rawTimestamp, freqHz)
	}

	sec := cfg.ClockOffset + nsec/nsecPerSec
	nsec %= nsecPerSec

	if cfg.ClockSeconds {
		return fmt.Sprintf("%3d.%09d", sec, nsec)
	}

	t := time.Unix(int64(sec), 0)
	if cfg.ClockGMT {
		t = t.UTC()
	} else {
		t = t.Local()
	}

	prefix := ""
	if cfg.ClockDate {
		prefix = t.Format("2006-01-02 ")
	}
	return fmt.Sprintf("%s%02d:%02d:%02d.%09d", prefix, t.Hour(), t.Minute(), t.Second(), nsec)
}

// rescaleToNanos computes ticks*1e9/freqHz without overflowing a
// uint64 intermediate, since ticks multiplied by NSEC_PER_SEC
// overflows a uint64 once ticks exceeds about 1.8e10.
func rescaleToNanos(ticks, freqHz uint64) uint64 {
	num := new(big.Int).SetUint64(ticks)
	num.Mul(num, big.NewInt(nsecPerSec))
	num.Div(num, new(big.Int).SetUint64(freqHz))
	return num.Uint64()
}
