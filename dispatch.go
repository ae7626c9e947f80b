// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"fmt"
	"math"
)

// dispatch is the single entry point used by event reading (§4.1):
// it aligns the cursor to decl's alignment, then invokes the reader
// for decl.Kind. Struct and variant readers recurse back into
// dispatch for their children. Errors propagate the first non-zero
// status; there is no partial recovery within an event (§4.2).
func dispatch(pos *StreamPos, decls *Declarations, ref DeclRef, scope *Scope) (*Def, error) {
	decl := decls.Get(ref)
	pos.align(decl.Align())

	def := &Def{Decl: ref, Kind: decl.Kind, Scope: scope}
	switch decl.Kind {
	case KindInteger:
		v, err := readInteger(pos, decl.Integer)
		if err != nil {
			return nil, err
		}
		def.Integer = v
	case KindFloat:
		v, err := readFloat(pos, decl.Float)
		if err != nil {
			return nil, err
		}
		def.Float = v
	case KindEnum:
		v, err := readEnum(pos, decls, decl.Enum)
		if err != nil {
			return nil, err
		}
		def.Enum = v
	case KindString:
		v, err := readString(pos)
		if err != nil {
			return nil, err
		}
		def.Str = v
	case KindStruct:
		v, childScope, err := readStruct(pos, decls, decl.Struct, scope)
		if err != nil {
			return nil, err
		}
		def.Struct = v
		def.Scope = childScope
	case KindVariant:
		v, err := readVariant(pos, decls, decl.Variant, scope)
		if err != nil {
			return nil, err
		}
		def.Variant = v
	case KindArray:
		v, err := readArray(pos, decls, decl.Array, scope)
		if err != nil {
			return nil, err
		}
		def.Array = v
	case KindSequence:
		v, err := readSequence(pos, decls, decl.Sequence, scope)
		if err != nil {
			return nil, err
		}
		def.Sequence = v
	default:
		return nil, fmt.Errorf("ctf: unknown declaration kind %v: %w", decl.Kind, ErrInvalid)
	}
	return def, nil
}

// readInteger decodes a width-bit integer and populates both the
// unsigned and sign-extended views (§4.2 "Integer").
func readInteger(pos *StreamPos, decl *IntegerDecl) (*IntegerDef, error) {
	raw, err := pos.readBits(decl.Width, decl.ByteOrder)
	if err != nil {
		return nil, err
	}
	signed := int64(raw)
	if decl.Signed && decl.Width < 64 {
		signBit := uint64(1) << (decl.Width - 1)
		if raw&signBit != 0 {
			signed = int64(raw) - (int64(1) << decl.Width)
		}
	}
	return &IntegerDef{Unsigned: raw, Signed: signed}, nil
}

// readFloat reads the integer bit pattern of a float declaration and
// reinterprets it per IEEE 754 (§4.2 "Float"). Only total widths of
// 32 and 64 bits are supported, matching the reference's supported
// widths.
func readFloat(pos *StreamPos, decl *FloatDecl) (*FloatDef, error) {
	width := decl.Width()
	raw, err := pos.readBits(uint8(width), decl.ByteOrder)
	if err != nil {
		return nil, err
	}
	switch width {
	case 32:
		return &FloatDef{Value: float64(math.Float32frombits(uint32(raw)))}, nil
	case 64:
		return &FloatDef{Value: math.Float64frombits(raw)}, nil
	default:
		return nil, fmt.Errorf("ctf: unsupported float width %d: %w", width, ErrUnsupported)
	}
}

// readEnum decodes the backing integer, then maps it through the
// declaration's closed-interval range table (§4.2 "Enum"). A value
// that falls outside every range yields the integer only (HasLabel
// false), it is not an error.
func readEnum(pos *StreamPos, decls *Declarations, decl *EnumDecl) (*EnumDef, error) {
	backing := decls.Get(decl.Backing)
	if backing.Kind != KindInteger {
		return nil, fmt.Errorf("ctf: enum backing declaration is not an integer: %w", ErrInvalid)
	}
	intDef, err := readInteger(pos, backing.Integer)
	if err != nil {
		return nil, err
	}
	for _, r := range decl.Ranges {
		if intDef.Signed >= r.Low && intDef.Signed <= r.High {
			return &EnumDef{Integer: intDef, Label: r.Label, HasLabel: true}, nil
		}
	}
	return &EnumDef{Integer: intDef}, nil
}

// readString reads a NUL-terminated byte sequence starting at the
// current byte-aligned offset and advances past the terminator
// (§4.2 "String"). The declared encoding is informational only: the
// bytes are not transcoded.
func readString(pos *StreamPos) (*StringDef, error) {
	if pos.offsetBits%8 != 0 {
		return nil, fmt.Errorf("ctf: string read at non-byte-aligned offset %d: %w", pos.offsetBits, ErrInvalid)
	}
	start := pos.offsetBits / 8
	idx := start
	var buf []byte
	for {
		b, err := pos.readByte(idx)
		if err != nil {
			return nil, err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
		idx++
	}
	pos.offsetBits = (idx + 1) * 8
	return &StringDef{Value: string(buf)}, nil
}

// readStruct aligns to the struct's own alignment, then reads each
// field in declaration order, each re-aligning to its own alignment
// first (§4.2 "Struct"). Fields are bound into a fresh child scope so
// that name resolution inside this struct body sees its own siblings
// before falling outward to enclosing scopes (§4.3).
func readStruct(pos *StreamPos, decls *Declarations, decl *StructDecl, outer *Scope) (*StructDef, *Scope, error) {
	scope := newScope(outer)
	sd := &StructDef{Fields: make(map[string]*Def, len(decl.Fields)), Order: make([]string, 0, len(decl.Fields))}
	for _, f := range decl.Fields {
		child, err := dispatch(pos, decls, f.Decl, scope)
		if err != nil {
			return nil, nil, fmt.Errorf("ctf: field %q: %w", f.Name, err)
		}
		scope.bind(f.Name, child)
		sd.Fields[f.Name] = child
		sd.Order = append(sd.Order, f.Name)
	}
	return sd, scope, nil
}

// readVariant resolves the tag through the scope chain, selects the
// matching branch, and recurses (§4.2 "Variant"). The tag may be an
// enum (selection by label) or a plain integer (selection by decimal
// value, stringified).
func readVariant(pos *StreamPos, decls *Declarations, decl *VariantDecl, scope *Scope) (*VariantDef, error) {
	var selected string
	if enumDef, ok := lookupEnum(scope, decl.TagPath); ok && enumDef.HasLabel {
		selected = enumDef.Label
	} else if intDef, ok := lookupInteger(scope, decl.TagPath); ok {
		selected = fmt.Sprintf("%d", intDef.Signed)
	} else {
		return nil, fmt.Errorf("ctf: variant tag %q not found in scope: %w", decl.TagPath, ErrInvalid)
	}

	for _, b := range decl.Branches {
		if b.Name == selected {
			branch, err := dispatch(pos, decls, b.Decl, scope)
			if err != nil {
				return nil, fmt.Errorf("ctf: variant branch %q: %w", b.Name, err)
			}
			return &VariantDef{Selected: selected, Branch: branch}, nil
		}
	}
	return nil, fmt.Errorf("ctf: variant tag %q selected unknown branch %q: %w", decl.TagPath, selected, ErrInvalid)
}

// readArray reads the statically declared fixed length N of elements
// (§4.2 "Array").
func readArray(pos *StreamPos, decls *Declarations, decl *ArrayDecl, scope *Scope) (*ArrayDef, error) {
	elems := make([]*Def, 0, decl.Length)
	for i := uint64(0); i < decl.Length; i++ {
		elem, err := dispatch(pos, decls, decl.Elem, scope)
		if err != nil {
			return nil, fmt.Errorf("ctf: array element %d: %w", i, err)
		}
		elems = append(elems, elem)
	}
	return &ArrayDef{Elems: elems}, nil
}

// readSequence reads the length from a named integer field previously
// read in scope, then that many elements (§4.2 "Sequence").
func readSequence(pos *StreamPos, decls *Declarations, decl *SequenceDecl, scope *Scope) (*SequenceDef, error) {
	lenDef, ok := lookupInteger(scope, decl.LengthPath)
	if !ok {
		return nil, fmt.Errorf("ctf: sequence length field %q not found in scope: %w", decl.LengthPath, ErrInvalid)
	}
	elems := make([]*Def, 0, lenDef.Unsigned)
	for i := uint64(0); i < lenDef.Unsigned; i++ {
		elem, err := dispatch(pos, decls, decl.Elem, scope)
		if err != nil {
			return nil, fmt.Errorf("ctf: sequence element %d: %w", i, err)
		}
		elems = append(elems, elem)
	}
	return &SequenceDef{Elems: elems}, nil
}
