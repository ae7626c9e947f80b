// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import "encoding/binary"

// MetadataCompiler is the interface the metadata loader (§4.4) calls
// once it has assembled the contiguous TSDL text for a trace. It
// stands in for the reference implementation's external scanner,
// parser/AST, and semantic visitor (§1, §4.0): the core package never
// imports a concrete scanner, only this interface. The default
// implementation lives in the sibling tsdl package.
type MetadataCompiler interface {
	Compile(text string, hostByteOrder binary.ByteOrder) (*TraceDecl, error)
}

// TraceDecl is the semantic visitor's output: the root of the
// declaration arena plus everything OpenTrace needs to populate a
// Trace (§4.0).
type TraceDecl struct {
	Decls        *Declarations
	ByteOrder    binary.ByteOrder
	UUID         [16]byte
	HasUUID      bool
	PacketHeader DeclRef // NoDecl if the trace declares no packet.header
	StreamClasses map[uint64]*StreamClassDecl
}

// StreamClassDecl is the semantic visitor's per-stream-class output.
type StreamClassDecl struct {
	PacketContext DeclRef
	EventHeader   DeclRef
	EventContext  DeclRef
	Events        map[uint64]*EventClassDecl
}

// EventClassDecl is the semantic visitor's per-event-class output.
type EventClassDecl struct {
	Name         string
	EventContext DeclRef
	EventFields  DeclRef
}

// Registry replaces the reference implementation's constructor-
// registered global format table (ctf_format, populated by a
// __attribute__((constructor)) function) with an explicit value the
// caller builds and populates at startup (DESIGN NOTES §9).
type Registry struct {
	compilers map[string]MetadataCompiler
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{compilers: make(map[string]MetadataCompiler)}
}

// Register binds name to c, overwriting any previous binding.
func (r *Registry) Register(name string, c MetadataCompiler) {
	if r.compilers == nil {
		r.compilers = make(map[string]MetadataCompiler)
	}
	r.compilers[name] = c
}

// Lookup returns the compiler bound to name, if any.
func (r *Registry) Lookup(name string) (MetadataCompiler, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.compilers[name]
	return c, ok
}
