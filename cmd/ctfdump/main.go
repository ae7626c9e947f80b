// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	units "github.com/docker/go-units"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/spf13/cobra"

	ctf "github.com/saferwall/ctf"
	"github.com/saferwall/ctf/ctflog"
	"github.com/saferwall/ctf/ctftime"
	"github.com/saferwall/ctf/tsdl"
)

var (
	clockRaw     bool
	clockSeconds bool
	clockDate    bool
	clockGMT     bool
	clockOffset  uint64
	indexCache   string
	verbose      bool

	sessionID = xid.New().String()
)

func newLogger() *ctflog.Helper {
	level := ctflog.LevelWarn
	if verbose {
		level = ctflog.LevelDebug
	}
	base := ctflog.NewStdLogger(os.Stdout)
	filtered := ctflog.NewFilter(base, ctflog.FilterLevel(level))
	return ctflog.NewHelper(sessionLogger{filtered})
}

// sessionLogger prefixes every record with this invocation's xid, so
// concurrent ctfdump runs against the same trace stay distinguishable
// in shared log aggregation (SPEC_FULL.md §4.11).
type sessionLogger struct {
	ctflog.Logger
}

func (l sessionLogger) Log(level ctflog.Level, keyvals ...interface{}) error {
	return l.Logger.Log(level, append([]interface{}{"session", sessionID}, keyvals...)...)
}

func buildConfig() (ctf.Config, *ctf.IndexCache, error) {
	cfg := ctf.Config{
		ClockRaw:     clockRaw,
		ClockSeconds: clockSeconds,
		ClockDate:    clockDate,
		ClockGMT:     clockGMT,
		ClockOffset:  clockOffset,
		Logger:       newLogger(),
		Metrics:      ctf.NewMetrics(prometheus.NewRegistry()),
	}
	var cache *ctf.IndexCache
	if indexCache != "" {
		c, err := ctf.OpenIndexCache(indexCache)
		if err != nil {
			return cfg, nil, fmt.Errorf("ctfdump: open index cache %s: %w", indexCache, err)
		}
		cache = c
		cfg.IndexCache = c
	}
	return cfg, cache, nil
}

func buildRegistry() *ctf.Registry {
	reg := ctf.NewRegistry()
	reg.Register("tsdl", tsdl.NewCompiler())
	return reg
}

func openTrace(dir string) (*ctf.Trace, *ctf.IndexCache, error) {
	cfg, cache, err := buildConfig()
	if err != nil {
		return nil, nil, err
	}
	tr, err := ctf.OpenTrace(dir, ctf.ReadOnly, cfg, buildRegistry())
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, nil, err
	}
	return tr, cache, nil
}

func formatDef(d *ctf.Def) string {
	if d == nil {
		return ""
	}
	switch d.Kind {
	case ctf.KindInteger:
		return fmt.Sprintf("%d", d.Integer.Unsigned)
	case ctf.KindFloat:
		return fmt.Sprintf("%g", d.Float.Value)
	case ctf.KindEnum:
		if d.Enum.HasLabel {
			return fmt.Sprintf("%s(%d)", d.Enum.Label, d.Enum.Integer.Unsigned)
		}
		return fmt.Sprintf("%d", d.Enum.Integer.Unsigned)
	case ctf.KindString:
		return fmt.Sprintf("%q", d.Str.Value)
	case ctf.KindStruct:
		parts := make([]string, 0, len(d.Struct.Order))
		for _, name := range d.Struct.Order {
			parts = append(parts, fmt.Sprintf("%s=%s", name, formatDef(d.Struct.Fields[name])))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case ctf.KindVariant:
		return formatDef(d.Variant.Branch)
	case ctf.KindArray:
		parts := make([]string, 0, len(d.Array.Elems))
		for _, e := range d.Array.Elems {
			parts = append(parts, formatDef(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ctf.KindSequence:
		parts := make([]string, 0, len(d.Sequence.Elems))
		for _, e := range d.Sequence.Elems {
			parts = append(parts, formatDef(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "?"
	}
}

func runDump(cmd *cobra.Command, args []string) error {
	dir := args[0]
	tr, cache, err := openTrace(dir)
	if err != nil {
		return err
	}
	defer func() {
		tr.Close()
		if cache != nil {
			cache.Close()
		}
	}()

	cfg := ctf.Config{ClockRaw: clockRaw, ClockSeconds: clockSeconds, ClockDate: clockDate, ClockGMT: clockGMT, ClockOffset: clockOffset}
	for _, cur := range tr.Cursors() {
		for {
			se, err := cur.NextEvent()
			if err != nil {
				if errors.Is(err, ctf.EOF) {
					break
				}
				return fmt.Errorf("ctfdump: %s: %w", cur.StreamPath(), err)
			}
			ec := cur.StreamClass().EventByID(cur.EventID())
			name := "?"
			if ec != nil {
				name = ec.Name
			}
			ts := ctftime.Format(cur.Timestamp(), 0, cfg)
			fmt.Printf("[%s] stream=%d event=%s", ts, cur.StreamClass().ID, name)
			if n := cur.EventsDiscarded(); n > 0 {
				fmt.Printf(" discarded=%d", n)
			}
			if se.EventContext != nil {
				fmt.Printf(" context=%s", formatDef(se.EventContext))
			}
			if se.EventFields != nil {
				fmt.Printf(" fields=%s", formatDef(se.EventFields))
			}
			fmt.Println()
		}
	}
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	dir := args[0]
	tr, cache, err := openTrace(dir)
	if err != nil {
		return err
	}
	defer func() {
		tr.Close()
		if cache != nil {
			cache.Close()
		}
	}()

	for _, cur := range tr.Cursors() {
		fmt.Printf("%s (stream %d)\n", cur.StreamPath(), cur.StreamClass().ID)
		fmt.Println("  offset\tcontent_size\tpacket_size\tts_begin\tts_end\tdiscarded")
		for _, idx := range cur.PacketIndex() {
			fmt.Printf("  0x%x\t%s\t%s\t%d\t%d\t%d\n",
				idx.ByteOffset,
				units.HumanSize(float64(idx.ContentSize/8)),
				units.HumanSize(float64(idx.PacketSize/8)),
				idx.TimestampBegin, idx.TimestampEnd, idx.EventsDiscarded)
		}
	}
	return nil
}

func main() {
	root := &cobra.Command{
		Use:   "ctfdump",
		Short: "Reads and dumps Common Trace Format traces",
		Long:  "ctfdump walks a CTF trace directory and prints its events, mirroring the reference babeltrace-style dumper.",
	}
	root.PersistentFlags().BoolVar(&clockRaw, "clock-raw", false, "print raw clock-frequency ticks instead of rescaling to nanoseconds")
	root.PersistentFlags().BoolVar(&clockSeconds, "clock-seconds", false, "print <sec>.<nsec> instead of a date/time")
	root.PersistentFlags().BoolVar(&clockDate, "clock-date", false, "print the calendar date ahead of the time-of-day")
	root.PersistentFlags().BoolVar(&clockGMT, "clock-gmt", false, "print in UTC instead of the local zone")
	root.PersistentFlags().Uint64Var(&clockOffset, "clock-offset", 0, "seconds added to every rendered timestamp")
	root.PersistentFlags().StringVar(&indexCache, "index-cache", "", "path to a packet-index sqlite cache")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	dumpCmd := &cobra.Command{
		Use:   "dump <trace-dir>",
		Short: "Print every event in a trace",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}
	indexCmd := &cobra.Command{
		Use:   "index <trace-dir>",
		Short: "Run only the packet indexer and print its table",
		Args:  cobra.ExactArgs(1),
		RunE:  runIndex,
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ctfdump 0.1.0")
		},
	}

	root.AddCommand(dumpCmd, indexCmd, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
