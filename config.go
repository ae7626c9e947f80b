// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import "github.com/saferwall/ctf/ctflog"

// Config replaces the reference implementation's process-wide globals
// (opt_clock_raw, opt_clock_seconds, opt_clock_date, opt_clock_gmt,
// opt_clock_offset, yydebug) with an explicit value threaded through
// OpenTrace/OpenMmapTrace. The zero Config is valid: no logger, no
// metrics, no index cache, and timestamps rendered as a local-zone
// time of day with no date and no offset.
type Config struct {
	// ClockRaw, when true, renders timestamps in raw clock-frequency
	// ticks instead of rescaling to nanoseconds (ctftime.Format).
	ClockRaw bool

	// ClockSeconds renders "<sec>.<nsec>" instead of a date/time.
	ClockSeconds bool

	// ClockDate, combined with !ClockSeconds, additionally prints the
	// calendar date ahead of the time-of-day.
	ClockDate bool

	// ClockGMT renders in UTC instead of the local zone.
	ClockGMT bool

	// ClockOffset is added, in seconds, to every rendered timestamp.
	ClockOffset uint64

	// Logger receives every warning/error the core would otherwise
	// print to stderr. A nil Logger means "silent"; it is always
	// safe to call methods on a nil *ctflog.Helper.
	Logger *ctflog.Helper

	// Metrics receives packet/event/error counters. A nil Metrics is
	// a no-op.
	Metrics *Metrics

	// IndexCache, if set, is consulted before scanning a stream
	// file's packet headers and updated after a fresh scan.
	IndexCache *IndexCache
}

func (c Config) logger() *ctflog.Helper {
	if c.Logger == nil {
		return ctflog.NewHelper(nil)
	}
	return c.Logger
}
