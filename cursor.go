// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"errors"
	"fmt"
)

// SeekWhence selects packetSeek's addressing mode (§4.6).
type SeekWhence int

const (
	// SeekSet loads the packet at an explicit index, resetting the
	// stream's prev_timestamp/prev_timestamp_end to 0.
	SeekSet SeekWhence = iota
	// SeekCur advances from the currently loaded packet to the next
	// one, publishing the discarded-events diff first.
	SeekCur
)

// Cursor is the public per-stream read position: one FileStream's
// current packet plus the event-reading state built on top of it
// (§4.6, §6.2).
type Cursor struct {
	fs *FileStream
}

func newCursor(fs *FileStream) *Cursor {
	return &Cursor{fs: fs}
}

// StreamPath returns the path (or MmapStream name) this cursor reads.
func (c *Cursor) StreamPath() string { return c.fs.Path }

// StreamClass returns the StreamClass this cursor's stream is bound
// to.
func (c *Cursor) StreamClass() *StreamClass { return c.fs.StreamClass }

// Timestamp returns the currently reconstructed extended timestamp
// (§4.7.1) of the most recently read event.
func (c *Cursor) Timestamp() uint64 { return c.fs.Stream.Timestamp }

// EventID returns the event id of the most recently read event.
func (c *Cursor) EventID() uint64 { return c.fs.Stream.EventID }

// EventsDiscarded returns the number of events discarded between the
// previous packet and the current one, per the stream_packet_context's
// events_discarded field (§4.6, supplemented in §4.12).
func (c *Cursor) EventsDiscarded() uint64 { return c.fs.Stream.EventsDiscarded }

// TracePacketHeader returns the current packet's decoded
// trace_packet_header, or nil if the trace declares none.
func (c *Cursor) TracePacketHeader() *Def { return c.fs.TracePacketHeader }

// StreamPacketContext returns the current packet's decoded
// stream_packet_context, or nil if the stream class declares none.
func (c *Cursor) StreamPacketContext() *Def { return c.fs.StreamPacketContext }

// PacketIndex returns the full packet index table built for this
// stream by the indexer (§4.5), in packet order.
func (c *Cursor) PacketIndex() []PacketIndex { return c.fs.Index }

// NextEvent reads the next event, transparently advancing across
// packet boundaries until the whole stream is exhausted (§4.6, §4.7).
// Plain ReadEvent returns EOF at the end of each packet; NextEvent is
// the convenience most callers outside the package want instead.
func (c *Cursor) NextEvent() (*StreamEvent, error) {
	for {
		se, err := c.ReadEvent()
		if err == nil {
			return se, nil
		}
		if !errors.Is(err, EOF) {
			return nil, err
		}
		if serr := c.packetSeek(SeekCur, 0); serr != nil {
			return nil, serr
		}
	}
}

// Seek implements §6.2's `packet_seek(stream_pos, index, whence)` core
// API operation: SeekSet loads the packet at index directly; SeekCur
// advances from the currently loaded packet to the next one. Both
// transparently skip a packet that carries only a trace_packet_header
// /stream_packet_context and no event data (§4.6), and both are safe
// to call repeatedly from any prior cursor position (§8 property 5).
func (c *Cursor) Seek(whence SeekWhence, index int) error {
	return c.packetSeek(whence, index)
}

// packetSeek implements §4.6's two whence modes.
func (c *Cursor) packetSeek(whence SeekWhence, index int) error {
	fs := c.fs
	switch whence {
	case SeekSet:
		if index < 0 || index >= len(fs.Index) {
			fs.handleEndOfStream()
			fs.pos.offsetBits = eofBits
			fs.curIndex = len(fs.Index)
			return EOF
		}
		if err := fs.loadPacket(index); err != nil {
			return err
		}
		fs.Stream.PrevTimestamp = 0
		fs.Stream.PrevTimestampEnd = 0
		fs.curIndex = index

		if fs.Index[index].DataOffsetBits == fs.Index[index].ContentSize {
			return c.packetSeek(SeekCur, 0)
		}
		return nil

	case SeekCur:
		if fs.curIndex >= len(fs.Index) {
			return EOF
		}
		entry := fs.Index[fs.curIndex]
		fs.Stream.PrevTimestampEnd = entry.TimestampEnd

		var prevDiscarded uint64
		if fs.curIndex > 0 {
			prevDiscarded = fs.Index[fs.curIndex-1].EventsDiscarded
		}
		if entry.EventsDiscarded >= prevDiscarded {
			fs.Stream.EventsDiscarded = entry.EventsDiscarded - prevDiscarded
		} else {
			fs.Stream.EventsDiscarded = 0
		}

		next := fs.curIndex + 1
		if next >= len(fs.Index) {
			fs.handleEndOfStream()
			fs.pos.offsetBits = eofBits
			fs.curIndex = next
			return EOF
		}
		if err := fs.loadPacket(next); err != nil {
			return err
		}
		fs.curIndex = next

		if fs.Index[next].DataOffsetBits == fs.Index[next].ContentSize {
			return c.packetSeek(SeekCur, 0)
		}
		return nil

	default:
		return fmt.Errorf("ctf: unknown seek whence %d: %w", whence, ErrInvalid)
	}
}

// loadPacket maps the packet at idx and re-decodes its trace_packet
// _header and stream_packet_context into fresh definition trees,
// rebuilding the packet-level scope chain that event reads extend
// (§4.6, §4.3).
func (fs *FileStream) loadPacket(idx int) error {
	entry := fs.Index[idx]
	if err := fs.remap(int64(entry.ByteOffset), int(entry.PacketSize/8)); err != nil {
		return wrapErr("packetSeek", fs.Path, err)
	}
	fs.pos.contentSizeBits = entry.ContentSize
	fs.pos.packetSizeBits = entry.PacketSize
	fs.pos.offsetBits = 0

	var headerDef *Def
	if fs.trace.packetHeaderDecl.Valid() {
		d, err := dispatch(&fs.pos, fs.trace.decls, fs.trace.packetHeaderDecl, nil)
		if err != nil {
			return wrapErr("packetSeek", fs.Path, fmt.Errorf("re-decode trace_packet_header: %w", err))
		}
		fs.TracePacketHeader = d
		headerDef = d
	}

	var ctxDef *Def
	if fs.StreamClass.PacketContext.Valid() {
		var outer *Scope
		if headerDef != nil {
			outer = headerDef.Scope
		}
		d, err := dispatch(&fs.pos, fs.trace.decls, fs.StreamClass.PacketContext, outer)
		if err != nil {
			return wrapErr("packetSeek", fs.Path, fmt.Errorf("re-decode stream_packet_context: %w", err))
		}
		fs.StreamPacketContext = d
		ctxDef = d
	}

	switch {
	case ctxDef != nil:
		fs.topScope = ctxDef.Scope
	case headerDef != nil:
		fs.topScope = headerDef.Scope
	default:
		fs.topScope = nil
	}
	return nil
}

// handleEndOfStream implements the reference's end-of-stream
// discarded-event warning (§4.6, supplemented in §4.12): it only fires
// once the surrounding trace has every stream's Cursor constructed.
func (fs *FileStream) handleEndOfStream() {
	if fs.Stream.EventsDiscarded == 0 || fs.trace == nil || !fs.trace.collectionActive {
		return
	}
	fs.trace.cfg.logger().Warnf(
		"ctf: %d events discarded at end of stream %s in interval [%d, %d]",
		fs.Stream.EventsDiscarded, fs.Path, fs.Stream.PrevTimestamp, fs.Stream.PrevTimestampEnd)
}
