// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// PacketIndex is one entry of a FileStream's packet index (§3).
type PacketIndex struct {
	ByteOffset      uint64
	ContentSize     uint64 // bits
	PacketSize      uint64 // bits
	TimestampBegin  uint64
	TimestampEnd    uint64
	EventsDiscarded uint64
	DataOffsetBits  uint64
}

// Stream is the per-FileStream runtime state described in §3
// ("Stream (runtime)"): the current extended timestamp, the previous
// timestamp and previous timestamp_end, events discarded since the
// last packet, the id of the just-read event, and whether that event
// carried a timestamp field.
type Stream struct {
	Timestamp        uint64
	PrevTimestamp     uint64
	PrevTimestampEnd  uint64
	EventsDiscarded   uint64
	EventID           uint64
	HasTimestamp      bool
}

// StreamEvent holds the most recently decoded per-event-class
// definitions, mirroring the reference's ctf_stream_event (§3,
// "FileStream ... plus one StreamEvent per event-class slot").
type StreamEvent struct {
	EventContext *Def
	EventFields  *Def
}

// pager maps and unmaps byte regions for a FileStream. Directory-
// opened traces map real file pages (mmapPager); traces opened via
// OpenMmapTrace or built from in-memory test fixtures simply reslice
// an in-memory buffer (bytesPager), with no syscalls and no real
// unmap needed.
type pager interface {
	mapRegion(offsetBytes int64, lengthBytes int) ([]byte, error)
	unmap() error
	size() int64
	close() error
}

type mmapPager struct {
	file    *os.File
	current mmap.MMap
}

func (p *mmapPager) mapRegion(offsetBytes int64, lengthBytes int) ([]byte, error) {
	if lengthBytes == 0 {
		return nil, fmt.Errorf("ctf: zero-length mapping: %w", ErrInvalid)
	}
	m, err := mmap.MapRegion(p.file, lengthBytes, mmap.RDONLY, 0, offsetBytes)
	if err != nil {
		return nil, fmt.Errorf("ctf: mmap at offset %d length %d: %w", offsetBytes, lengthBytes, err)
	}
	p.current = m
	return []byte(m), nil
}

func (p *mmapPager) unmap() error {
	if p.current == nil {
		return nil
	}
	err := p.current.Unmap()
	p.current = nil
	return err
}

func (p *mmapPager) size() int64 {
	fi, err := p.file.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

func (p *mmapPager) close() error {
	_ = p.unmap()
	return p.file.Close()
}

type bytesPager struct {
	data []byte
}

func (p *bytesPager) mapRegion(offsetBytes int64, lengthBytes int) ([]byte, error) {
	end := offsetBytes + int64(lengthBytes)
	if offsetBytes < 0 || end > int64(len(p.data)) {
		return nil, fmt.Errorf("ctf: region [%d,%d) exceeds buffer of length %d: %w",
			offsetBytes, end, len(p.data), ErrShortIO)
	}
	return p.data[offsetBytes:end], nil
}

func (p *bytesPager) unmap() error { return nil }
func (p *bytesPager) size() int64  { return int64(len(p.data)) }
func (p *bytesPager) close() error { return nil }

// FileStream is one on-disk stream file bound to a StreamClass: its
// own cursor, its own packet index, and its own instantiated
// definition trees (§3 "FileStream").
type FileStream struct {
	Path        string
	trace       *Trace
	pager       pager
	Index       []PacketIndex
	StreamClass *StreamClass
	Stream      Stream

	curIndex int // cur_index: the currently loaded packet; SEEK_CUR moves to curIndex+1
	pos      StreamPos

	TracePacketHeader   *Def
	StreamPacketContext *Def
	StreamEventHeader   *Def
	StreamEventContext  *Def
	EventDefs           []*StreamEvent

	// topScope is the tail of the packet-level scope chain (trace
	// .packet.header -> stream.packet.context), rebuilt on every
	// packet (re)map and reused as the parent scope for every event
	// read inside that packet (§4.3).
	topScope *Scope
}

func newFileStreamFromFile(trace *Trace, path string, f *os.File) *FileStream {
	return &FileStream{
		Path:  path,
		trace: trace,
		pager: &mmapPager{file: f},
	}
}

func newFileStreamFromBytes(trace *Trace, path string, data []byte) *FileStream {
	return &FileStream{
		Path:  path,
		trace: trace,
		pager: &bytesPager{data: data},
	}
}

func (fs *FileStream) close() error {
	return fs.pager.close()
}

// remap unmaps whatever is currently mapped and maps lengthBytes at
// offsetBytes, resetting the cursor to the start of the new region.
func (fs *FileStream) remap(offsetBytes int64, lengthBytes int) error {
	if err := fs.pager.unmap(); err != nil {
		return fmt.Errorf("ctf: unmap old base: %w", err)
	}
	base, err := fs.pager.mapRegion(offsetBytes, lengthBytes)
	if err != nil {
		return err
	}
	fs.pos = StreamPos{
		base:            base,
		mmapOffsetBytes: offsetBytes,
	}
	if fs.trace != nil {
		fs.trace.cfg.Metrics.mapped(lengthBytes)
	}
	return nil
}
