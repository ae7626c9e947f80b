// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"encoding/binary"
	"testing"
)

type stubCompiler struct{}

func (stubCompiler) Compile(text string, hostByteOrder binary.ByteOrder) (*TraceDecl, error) {
	return &TraceDecl{Decls: NewDeclarations(), ByteOrder: hostByteOrder, PacketHeader: NoDecl}, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Lookup("tsdl"); ok {
		t.Fatal("Lookup found a compiler before any Register call")
	}
	reg.Register("tsdl", stubCompiler{})
	c, ok := reg.Lookup("tsdl")
	if !ok || c == nil {
		t.Fatal("Lookup did not find the registered compiler")
	}
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	reg := NewRegistry()
	reg.Register("tsdl", stubCompiler{})
	reg.Register("tsdl", stubCompiler{})
	if _, ok := reg.Lookup("tsdl"); !ok {
		t.Fatal("Lookup did not find the re-registered compiler")
	}
}

func TestRegistryNilReceiverLookup(t *testing.T) {
	var reg *Registry
	if _, ok := reg.Lookup("tsdl"); ok {
		t.Fatal("Lookup on a nil *Registry reported found")
	}
}

func TestRegistryZeroValueRegister(t *testing.T) {
	var reg Registry
	reg.Register("tsdl", stubCompiler{})
	if _, ok := reg.Lookup("tsdl"); !ok {
		t.Fatal("Register on the zero value did not initialize the map")
	}
}
