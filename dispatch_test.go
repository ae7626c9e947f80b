// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"encoding/binary"
	"errors"
	"testing"
)

func uint8Decl(decls *Declarations) DeclRef {
	return decls.Add(Decl{Kind: KindInteger, Integer: &IntegerDecl{Width: 8, ByteOrder: binary.LittleEndian, Align: 8, Base: 10}})
}

func uint32Decl(decls *Declarations) DeclRef {
	return decls.Add(Decl{Kind: KindInteger, Integer: &IntegerDecl{Width: 32, ByteOrder: binary.LittleEndian, Align: 8, Base: 10}})
}

func TestDispatchInteger(t *testing.T) {
	decls := NewDeclarations()
	ref := decls.Add(Decl{Kind: KindInteger, Integer: &IntegerDecl{Width: 16, Signed: true, ByteOrder: binary.LittleEndian, Align: 8}})
	pos := &StreamPos{base: []byte{0xFF, 0xFF}, contentSizeBits: 16}
	def, err := dispatch(pos, decls, ref, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if def.Integer.Unsigned != 0xFFFF || def.Integer.Signed != -1 {
		t.Fatalf("got unsigned=%#x signed=%d, want 0xffff/-1", def.Integer.Unsigned, def.Integer.Signed)
	}
}

func TestDispatchFloat(t *testing.T) {
	decls := NewDeclarations()
	ref := decls.Add(Decl{Kind: KindFloat, Float: &FloatDecl{ExpWidth: 8, MantWidth: 24, ByteOrder: binary.LittleEndian, Align: 32}})
	// float32(1.5) little-endian bytes.
	pos := &StreamPos{base: []byte{0x00, 0x00, 0xC0, 0x3F}, contentSizeBits: 32}
	def, err := dispatch(pos, decls, ref, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if def.Float.Value != 1.5 {
		t.Fatalf("got %v, want 1.5", def.Float.Value)
	}
}

func TestDispatchEnumInRange(t *testing.T) {
	decls := NewDeclarations()
	backing := uint8Decl(decls)
	ref := decls.Add(Decl{Kind: KindEnum, Enum: &EnumDecl{Backing: backing, Ranges: []EnumRange{
		{Low: 0, High: 0, Label: "A"},
		{Low: 1, High: 3, Label: "B"},
	}}})
	pos := &StreamPos{base: []byte{2}, contentSizeBits: 8}
	def, err := dispatch(pos, decls, ref, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !def.Enum.HasLabel || def.Enum.Label != "B" {
		t.Fatalf("got label %q hasLabel=%v, want B/true", def.Enum.Label, def.Enum.HasLabel)
	}
}

func TestDispatchEnumOutOfRangeIsNotAnError(t *testing.T) {
	decls := NewDeclarations()
	backing := uint8Decl(decls)
	ref := decls.Add(Decl{Kind: KindEnum, Enum: &EnumDecl{Backing: backing, Ranges: []EnumRange{{Low: 0, High: 0, Label: "A"}}}})
	pos := &StreamPos{base: []byte{9}, contentSizeBits: 8}
	def, err := dispatch(pos, decls, ref, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if def.Enum.HasLabel {
		t.Fatalf("HasLabel = true, want false for an out-of-range value")
	}
	if def.Enum.Integer.Unsigned != 9 {
		t.Fatalf("Integer.Unsigned = %d, want 9", def.Enum.Integer.Unsigned)
	}
}

func TestDispatchString(t *testing.T) {
	decls := NewDeclarations()
	ref := decls.Add(Decl{Kind: KindString, Str: &StringDecl{Encoding: EncodingUTF8}})
	pos := &StreamPos{base: []byte{'h', 'i', 0, 'X'}, contentSizeBits: 32}
	def, err := dispatch(pos, decls, ref, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if def.Str.Value != "hi" {
		t.Fatalf("got %q, want %q", def.Str.Value, "hi")
	}
	if pos.offsetBits != 24 {
		t.Fatalf("offsetBits = %d, want 24 (past the NUL terminator)", pos.offsetBits)
	}
}

func TestDispatchStruct(t *testing.T) {
	decls := NewDeclarations()
	a := uint8Decl(decls)
	b := uint32Decl(decls)
	structRef := decls.Add(Decl{Kind: KindStruct, Struct: &StructDecl{
		Fields: []StructField{{Name: "flag", Decl: a}, {Name: "value", Decl: b}},
		Align:  8,
	}})
	pos := &StreamPos{base: []byte{0x01, 0xEF, 0xBE, 0xAD, 0xDE}, contentSizeBits: 40}
	def, err := dispatch(pos, decls, structRef, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if def.Struct.Fields["flag"].Integer.Unsigned != 1 {
		t.Fatalf("flag = %d, want 1", def.Struct.Fields["flag"].Integer.Unsigned)
	}
	if def.Struct.Fields["value"].Integer.Unsigned != 0xDEADBEEF {
		t.Fatalf("value = %#x, want 0xdeadbeef", def.Struct.Fields["value"].Integer.Unsigned)
	}
	if len(def.Struct.Order) != 2 || def.Struct.Order[0] != "flag" || def.Struct.Order[1] != "value" {
		t.Fatalf("Order = %v, want [flag value]", def.Struct.Order)
	}
}

func TestDispatchArray(t *testing.T) {
	decls := NewDeclarations()
	elem := uint8Decl(decls)
	arrRef := decls.Add(Decl{Kind: KindArray, Array: &ArrayDecl{Length: 3, Elem: elem, Align: 8}})
	pos := &StreamPos{base: []byte{1, 2, 3, 4}, contentSizeBits: 32}
	def, err := dispatch(pos, decls, arrRef, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(def.Array.Elems) != 3 {
		t.Fatalf("len(Elems) = %d, want 3", len(def.Array.Elems))
	}
	for i, want := range []uint64{1, 2, 3} {
		if got := def.Array.Elems[i].Integer.Unsigned; got != want {
			t.Fatalf("Elems[%d] = %d, want %d", i, got, want)
		}
	}
}

// TestDispatchSequence reads a struct { uint8_t n; uint8_t xs[n]; }
// equivalent by hand, exercising the scope lookup a sequence's length
// field depends on (§4.2 "Sequence", §4.3).
func TestDispatchSequence(t *testing.T) {
	decls := NewDeclarations()
	lenField := uint8Decl(decls)
	elem := uint8Decl(decls)
	seqRef := decls.Add(Decl{Kind: KindSequence, Sequence: &SequenceDecl{LengthPath: "n", Elem: elem, Align: 8}})
	structRef := decls.Add(Decl{Kind: KindStruct, Struct: &StructDecl{
		Fields: []StructField{{Name: "n", Decl: lenField}, {Name: "xs", Decl: seqRef}},
		Align:  8,
	}})
	pos := &StreamPos{base: []byte{3, 10, 20, 30, 99}, contentSizeBits: 40}
	def, err := dispatch(pos, decls, structRef, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	xs := def.Struct.Fields["xs"].Sequence.Elems
	if len(xs) != 3 {
		t.Fatalf("len(xs) = %d, want 3", len(xs))
	}
	for i, want := range []uint64{10, 20, 30} {
		if got := xs[i].Integer.Unsigned; got != want {
			t.Fatalf("xs[%d] = %d, want %d", i, got, want)
		}
	}
}

// TestDispatchVariant exercises tag resolution through an enum field
// read earlier in the same struct (§4.2 "Variant", §4.3).
func TestDispatchVariant(t *testing.T) {
	decls := NewDeclarations()
	tagBacking := uint8Decl(decls)
	tagRef := decls.Add(Decl{Kind: KindEnum, Enum: &EnumDecl{Backing: tagBacking, Ranges: []EnumRange{
		{Low: 0, High: 0, Label: "A"},
		{Low: 1, High: 1, Label: "B"},
	}}})
	aBranch := uint8Decl(decls)
	bBranch := uint32Decl(decls)
	variantRef := decls.Add(Decl{Kind: KindVariant, Variant: &VariantDecl{
		TagPath: "tag",
		Branches: []VariantBranch{
			{Name: "A", Decl: aBranch},
			{Name: "B", Decl: bBranch},
		},
	}})
	structRef := decls.Add(Decl{Kind: KindStruct, Struct: &StructDecl{
		Fields: []StructField{{Name: "tag", Decl: tagRef}, {Name: "v", Decl: variantRef}},
		Align:  8,
	}})

	pos := &StreamPos{base: []byte{1, 0xEF, 0xBE, 0xAD, 0xDE}, contentSizeBits: 40}
	def, err := dispatch(pos, decls, structRef, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	v := def.Struct.Fields["v"].Variant
	if v.Selected != "B" {
		t.Fatalf("Selected = %q, want B", v.Selected)
	}
	if v.Branch.Integer.Unsigned != 0xDEADBEEF {
		t.Fatalf("branch value = %#x, want 0xdeadbeef", v.Branch.Integer.Unsigned)
	}
}

func TestDispatchVariantUnknownTagIsInvalid(t *testing.T) {
	decls := NewDeclarations()
	variantRef := decls.Add(Decl{Kind: KindVariant, Variant: &VariantDecl{TagPath: "missing", Branches: nil}})
	structRef := decls.Add(Decl{Kind: KindStruct, Struct: &StructDecl{
		Fields: []StructField{{Name: "v", Decl: variantRef}},
		Align:  8,
	}})
	pos := &StreamPos{base: []byte{0}, contentSizeBits: 8}
	_, err := dispatch(pos, decls, structRef, nil)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}
