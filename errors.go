// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"errors"
	"fmt"
	"io"
)

// Sentinel errors mirroring the reference implementation's errno
// taxonomy (see SPEC_FULL.md §7 for why these are named values rather
// than raw ints).
var (
	// ErrInvalid covers a malformed trace: bad magic, UUID mismatch,
	// a stream_id change within one file, an unknown event id, or a
	// packet whose content_size/packet_size exceed their bounds.
	ErrInvalid = errors.New("ctf: invalid trace data")

	// ErrUnsupported covers metadata packets that advertise
	// compression, encryption or a checksum scheme, or write mode.
	ErrUnsupported = errors.New("ctf: unsupported feature")

	// ErrShortIO covers a short read, short write, or short mapping.
	ErrShortIO = errors.New("ctf: short I/O")

	// ErrNoTrace is returned when the trace directory is missing.
	ErrNoTrace = errors.New("ctf: trace directory not found")

	// ErrAlloc covers scanner/parser allocation failure.
	ErrAlloc = errors.New("ctf: allocation failure")

	// EOF is the normal stream-exhaustion sentinel returned by
	// ReadEvent; it is io.EOF so callers can use the familiar
	// errors.Is(err, io.EOF) idiom.
	EOF = io.EOF
)

// TraceError envelopes a sentinel error with the operation and path
// that produced it, the way the reference implementation's
// fprintf(stderr, "[error] ...") messages name the offending packet
// or file. errors.Is/errors.As unwrap through it.
type TraceError struct {
	Op   string
	Path string
	Err  error
}

func (e *TraceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ctf: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ctf: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TraceError) Unwrap() error { return e.Err }

func wrapErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &TraceError{Op: op, Path: path, Err: err}
}
