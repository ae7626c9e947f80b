// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import "encoding/binary"

// Kind tags a Decl with one of the eight CTF type kinds (§4.2 of the
// specification). It replaces the reference's function-pointer
// dispatch table with a tagged variant, per DESIGN NOTES §9.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindEnum
	KindString
	KindStruct
	KindVariant
	KindArray
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindEnum:
		return "enum"
	case KindString:
		return "string"
	case KindStruct:
		return "struct"
	case KindVariant:
		return "variant"
	case KindArray:
		return "array"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// DeclRef is a stable index into a Declarations arena. The reference
// implementation's declaration graph is built from intrusive
// reference counts and container_of casts over heap pointers; here
// declarations live in one arena per Trace and are addressed by
// index, so the parent/child graph is a DAG of small integers rather
// than a pointer graph (DESIGN NOTES §9).
type DeclRef int32

// NoDecl is the zero value of an optional DeclRef (e.g. a StreamClass
// with no packet context declared).
const NoDecl DeclRef = -1

// Valid reports whether r addresses a real declaration.
func (r DeclRef) Valid() bool { return r >= 0 }

// Decl is one node of the declaration tree.
type Decl struct {
	Kind Kind

	Integer  *IntegerDecl
	Float    *FloatDecl
	Enum     *EnumDecl
	Str      *StringDecl
	Struct   *StructDecl
	Variant  *VariantDecl
	Array    *ArrayDecl
	Sequence *SequenceDecl
}

// Align returns the declaration's alignment in bits.
func (d *Decl) Align() uint32 {
	switch d.Kind {
	case KindInteger:
		return d.Integer.Align
	case KindFloat:
		return d.Float.Align
	case KindEnum:
		return d.Enum.Align
	case KindString:
		return 8
	case KindStruct:
		return d.Struct.Align
	case KindVariant:
		return 8
	case KindArray:
		return d.Array.Align
	case KindSequence:
		return d.Sequence.Align
	default:
		return 8
	}
}

// IntegerDecl describes a fixed-width integer field (§4.2).
type IntegerDecl struct {
	Width     uint8 // bits, 1..64
	Signed    bool
	ByteOrder binary.ByteOrder
	Align     uint32 // bits
	Base      int    // display radix: 2, 8, 10, 16
}

// FloatDecl describes an IEEE-like float with explicit component
// widths whose sum must be 32 or 64.
type FloatDecl struct {
	ExpWidth  uint8
	MantWidth uint8
	ByteOrder binary.ByteOrder
	Align     uint32
}

func (f *FloatDecl) Width() uint32 { return uint32(f.ExpWidth) + uint32(f.MantWidth) }

// EnumRange is one closed interval of a mapping from integer value to
// symbolic label.
type EnumRange struct {
	Low, High int64
	Label     string
}

// EnumDecl describes an enum backed by an integer declaration.
type EnumDecl struct {
	Backing DeclRef // must resolve to a Decl with Kind == KindInteger
	Ranges  []EnumRange
	Align   uint32
}

// StringEncoding is the declared encoding tag of a string field. CTF
// carries this only as a hint; the bytes are always read up to the
// first NUL.
type StringEncoding int

const (
	EncodingASCII StringEncoding = iota
	EncodingUTF8
)

// StringDecl describes a null-terminated byte sequence.
type StringDecl struct {
	Encoding StringEncoding
}

// StructField is one named, ordered member of a struct declaration.
type StructField struct {
	Name string
	Decl DeclRef
}

// StructDecl describes an ordered sequence of named fields.
type StructDecl struct {
	Fields []StructField
	Align  uint32
}

// VariantBranch is one named alternative of a variant declaration.
type VariantBranch struct {
	Name string
	Decl DeclRef
}

// VariantDecl describes a discriminated union. TagPath is a dotted
// name resolved through the scope chain back to an enum or integer
// field read earlier in the same event (§4.3).
type VariantDecl struct {
	TagPath  string
	Branches []VariantBranch
}

// ArrayDecl describes a fixed-length homogeneous sequence.
type ArrayDecl struct {
	Length uint64
	Elem   DeclRef
	Align  uint32
}

// SequenceDecl describes a length-prefixed homogeneous sequence whose
// length is read from a previously-decoded integer field.
type SequenceDecl struct {
	LengthPath string
	Elem       DeclRef
	Align      uint32
}

// Declarations is the per-Trace arena owning every Decl. Declarations
// form a DAG: a Decl may be referenced by many others (e.g. a shared
// "uint8_t" integer declaration used by several struct fields), but
// never a cycle, since TSDL name resolution is lexical (DESIGN NOTES
// §9).
type Declarations struct {
	nodes []Decl
}

// NewDeclarations returns an empty arena.
func NewDeclarations() *Declarations {
	return &Declarations{}
}

// Add appends a declaration and returns its stable reference.
func (d *Declarations) Add(decl Decl) DeclRef {
	d.nodes = append(d.nodes, decl)
	return DeclRef(len(d.nodes) - 1)
}

// Get dereferences r. It panics on an out-of-range ref, which can
// only happen from a programmer error (a ref minted by one arena used
// against another) — not a malformed trace, per §7's "invariant
// violations in previously validated data are fatal" policy.
func (d *Declarations) Get(r DeclRef) *Decl {
	return &d.nodes[r]
}
