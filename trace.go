// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	digest "github.com/opencontainers/go-digest"
)

// OpenFlags selects the mode OpenTrace opens a trace in. Only
// read-only traces are supported; write support is a Non-goal shared
// with the reference implementation (§1).
type OpenFlags int

const (
	ReadOnly OpenFlags = iota
	ReadWrite
)

// MmapStream names one in-memory stream buffer handed to
// OpenMmapTrace, standing in for a real stream file on disk.
type MmapStream struct {
	Name string
	Data []byte
}

// Trace is the root handle returned by OpenTrace/OpenMmapTrace: the
// declaration arena, the byte order and UUID declared by the trace's
// metadata, the stream-class table, and one Cursor per bound stream
// file (§3 "Trace").
type Trace struct {
	dir *os.File

	byteOrder        binary.ByteOrder
	uuid             [16]byte
	hasUUID          bool
	decls            *Declarations
	packetHeaderDecl DeclRef

	streamClasses map[uint64]*StreamClass
	cursors       []*Cursor

	cfg Config

	// collectionActive mirrors the reference's stream_class->trace
	// ->collection: only true once every FileStream named by the
	// trace has a Cursor constructed for it, gating the end-of-stream
	// discarded-event warning (§4.12).
	collectionActive bool

	metadataDigest digest.Digest
}

// newTrace builds the static (declaration-level) half of a Trace from
// a compiled TraceDecl; the dynamic half (streams, cursors) is filled
// in by the caller.
func newTrace(cfg Config, decl *TraceDecl) *Trace {
	t := &Trace{
		byteOrder:        decl.ByteOrder,
		uuid:             decl.UUID,
		hasUUID:          decl.HasUUID,
		decls:            decl.Decls,
		packetHeaderDecl: decl.PacketHeader,
		streamClasses:    make(map[uint64]*StreamClass, len(decl.StreamClasses)),
		cfg:              cfg,
	}
	for id, scd := range decl.StreamClasses {
		sc := &StreamClass{
			ID:            id,
			PacketContext: scd.PacketContext,
			EventHeader:   scd.EventHeader,
			EventContext:  scd.EventContext,
		}
		var count uint64
		for eid := range scd.Events {
			if eid+1 > count {
				count = eid + 1
			}
		}
		sc.EventsByID = make([]*EventClass, count)
		for eid, ecd := range scd.Events {
			sc.EventsByID[eid] = &EventClass{
				Name:          ecd.Name,
				EventContext:  ecd.EventContext,
				EventFields:   ecd.EventFields,
				StreamClassID: id,
				ID:            eid,
			}
		}
		t.streamClasses[id] = sc
	}
	return t
}

// resolveCompiler looks up the "tsdl" MetadataCompiler in reg. The
// core package cannot import the tsdl package directly (tsdl imports
// ctf to produce a *TraceDecl), so the caller — cmd/ctfdump, or a
// test — must register a compiler before calling OpenTrace/
// OpenMmapTrace (§4.0).
func resolveCompiler(reg *Registry) (MetadataCompiler, error) {
	if reg == nil {
		return nil, fmt.Errorf("ctf: no registry supplied, cannot resolve a metadata compiler: %w", ErrInvalid)
	}
	c, ok := reg.Lookup("tsdl")
	if !ok {
		return nil, fmt.Errorf("ctf: no %q metadata compiler registered: %w", "tsdl", ErrInvalid)
	}
	return c, nil
}

// OpenTrace opens the trace directory at dirPath: it reads and
// compiles the metadata file, then scans every remaining regular file
// as a stream, indexing its packets and seeking a Cursor to packet 0
// (§4.8).
func OpenTrace(dirPath string, flags OpenFlags, cfg Config, reg *Registry) (*Trace, error) {
	if flags != ReadOnly {
		return nil, wrapErr("OpenTrace", dirPath, fmt.Errorf("%w: write mode not supported", ErrUnsupported))
	}

	dir, err := os.Open(dirPath)
	if err != nil {
		return nil, wrapErr("OpenTrace", dirPath, fmt.Errorf("%w: %v", ErrNoTrace, err))
	}

	compiler, err := resolveCompiler(reg)
	if err != nil {
		dir.Close()
		return nil, wrapErr("OpenTrace", dirPath, err)
	}

	metaPath, err := securejoin.SecureJoin(dirPath, "metadata")
	if err != nil {
		dir.Close()
		return nil, wrapErr("OpenTrace", dirPath, err)
	}
	metaFile, err := os.Open(metaPath)
	if err != nil {
		dir.Close()
		return nil, wrapErr("OpenTrace", metaPath, fmt.Errorf("%w: %v", ErrNoTrace, err))
	}
	decl, text, err := loadMetadata(metaFile, compiler, cfg.logger())
	metaFile.Close()
	if err != nil {
		dir.Close()
		return nil, wrapErr("OpenTrace", metaPath, err)
	}

	t := newTrace(cfg, decl)
	t.dir = dir
	t.metadataDigest = digest.FromString(text)
	t.cfg.logger().Debugf("ctf: opened %s: metadata digest %s", dirPath, t.metadataDigest)

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		t.Close()
		return nil, wrapErr("OpenTrace", dirPath, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || name == "metadata" {
			continue
		}
		streamPath, err := securejoin.SecureJoin(dirPath, name)
		if err != nil {
			t.Close()
			return nil, wrapErr("OpenTrace", name, err)
		}
		f, err := os.Open(streamPath)
		if err != nil {
			t.Close()
			return nil, wrapErr("OpenTrace", streamPath, fmt.Errorf("%w: %v", ErrShortIO, err))
		}
		fs := newFileStreamFromFile(t, streamPath, f)
		if err := t.indexFileStream(fs); err != nil {
			fs.close()
			t.Close()
			return nil, err
		}
		cur := newCursor(fs)
		if err := cur.packetSeek(SeekSet, 0); err != nil && !errors.Is(err, EOF) {
			fs.close()
			t.Close()
			return nil, err
		}
		t.cursors = append(t.cursors, cur)
	}
	t.collectionActive = true
	return t, nil
}

// OpenMmapTrace builds a Trace from already-resident buffers, used by
// the test suite to exercise the indexer/cursor without a real
// filesystem (§4.8).
func OpenMmapTrace(streams []MmapStream, metadata io.Reader, cfg Config, reg *Registry) (*Trace, error) {
	compiler, err := resolveCompiler(reg)
	if err != nil {
		return nil, wrapErr("OpenMmapTrace", "", err)
	}
	decl, text, err := loadMetadata(metadata, compiler, cfg.logger())
	if err != nil {
		return nil, wrapErr("OpenMmapTrace", "metadata", err)
	}

	t := newTrace(cfg, decl)
	t.metadataDigest = digest.FromString(text)
	t.cfg.logger().Debugf("ctf: opened mmap trace: metadata digest %s", t.metadataDigest)

	for _, s := range streams {
		fs := newFileStreamFromBytes(t, s.Name, s.Data)
		if err := t.indexFileStream(fs); err != nil {
			t.Close()
			return nil, err
		}
		cur := newCursor(fs)
		if err := cur.packetSeek(SeekSet, 0); err != nil && !errors.Is(err, EOF) {
			t.Close()
			return nil, err
		}
		t.cursors = append(t.cursors, cur)
	}
	t.collectionActive = true
	return t, nil
}

// Close releases every mapped stream and the directory handle, if any.
// It reports the first error encountered but always attempts every
// release (§5).
func (t *Trace) Close() error {
	var firstErr error
	for _, cur := range t.cursors {
		if err := cur.fs.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.dir != nil {
		if err := t.dir.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Cursors returns one Cursor per bound stream file, in directory-scan
// (or MmapStream slice) order.
func (t *Trace) Cursors() []*Cursor { return t.cursors }

// UUID returns the trace's declared UUID and whether one was declared
// at all (a trace metadata without a top-level uuid is legal).
func (t *Trace) UUID() ([16]byte, bool) { return t.uuid, t.hasUUID }
