// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package tsdl

// File is the root AST node: the ordered sequence of top-level blocks
// a metadata text is made of.
type File struct {
	Blocks []*Block
}

// blockKind names a top-level block.
type blockKind int

const (
	blockTrace blockKind = iota
	blockStream
	blockEvent
)

// Block is one `trace { ... };`, `stream { ... };`, or
// `event { ... };` declaration.
type Block struct {
	Kind    blockKind
	Assigns map[string]string // scalar key = value; pairs (byte_order, uuid, id, stream_id, name, ...)
	Named   map[string][]*Field
	// Named holds the struct bodies introduced under a dotted pragma
	// name specific to each block kind: "packet.header" (trace),
	// "packet.context"/"event.header"/"event.context" (stream),
	// "context"/"fields" (event).
}

// Field is one named, typed member of a struct body.
type Field struct {
	Name string
	Type TypeExpr
}

// TypeExpr is the sum type of every TSDL type expression this subset
// supports.
type TypeExpr interface{ isTypeExpr() }

// NamedType is a bare identifier referring to either a built-in alias
// (uint8_t, int32_t, ..., string) or, not supported in this subset, a
// user-defined typedef.
type NamedType struct{ Name string }

// IntegerType is an explicit `integer { ... }` declaration.
type IntegerType struct {
	Size      int
	Signed    bool
	ByteOrder string // "le", "be", or "" (inherit trace default)
	Align     int
	Base      int
}

// FloatType is an explicit `floating_point { ... }` declaration.
type FloatType struct {
	ExpDig, MantDig int
	ByteOrder       string
	Align           int
}

// EnumRange is one `LABEL = N` or `LABEL = N1 ... N2` entry.
type EnumRange struct {
	Label    string
	Low, High int64
}

// EnumType is an `enum : <backing> { ... }` declaration.
type EnumType struct {
	Backing TypeExpr
	Ranges  []EnumRange
}

// StructType is a `struct { ... }` declaration.
type StructType struct {
	Fields []*Field
}

// VariantBranch is one named alternative inside a variant body.
type VariantBranch struct {
	Name string
	Type TypeExpr
}

// VariantType is a `variant <tag> { ... }` declaration.
type VariantType struct {
	Tag      string
	Branches []VariantBranch
}

// StringTypeExpr is a bare `string` field.
type StringTypeExpr struct{}

// ArrayType is `T name[N]` where N is a literal length.
type ArrayType struct {
	Elem   TypeExpr
	Length int64
}

// SequenceType is `T name[length_field]` where length_field names an
// integer field read earlier in the same event.
type SequenceType struct {
	Elem       TypeExpr
	LengthPath string
}

func (NamedType) isTypeExpr()      {}
func (IntegerType) isTypeExpr()    {}
func (FloatType) isTypeExpr()      {}
func (EnumType) isTypeExpr()       {}
func (StructType) isTypeExpr()     {}
func (VariantType) isTypeExpr()    {}
func (StringTypeExpr) isTypeExpr() {}
func (ArrayType) isTypeExpr()      {}
func (SequenceType) isTypeExpr()   {}
