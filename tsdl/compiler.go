// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package tsdl

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/saferwall/ctf"
)

// Compiler is the default ctf.MetadataCompiler: it parses TSDL text
// into an AST (parseFile) and walks it to populate a ctf.Declarations
// arena (visitor, below).
type Compiler struct{}

// NewCompiler returns a ready-to-use Compiler.
func NewCompiler() *Compiler { return &Compiler{} }

// Compile implements ctf.MetadataCompiler.
func (c *Compiler) Compile(text string, hostByteOrder binary.ByteOrder) (*ctf.TraceDecl, error) {
	file, err := parseFile(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ctf.ErrInvalid, err)
	}

	v := &visitor{decls: ctf.NewDeclarations(), byteOrder: hostByteOrder, packetHeader: ctf.NoDecl}

	var traceBlock *Block
	var streamBlocks, eventBlocks []*Block
	for _, b := range file.Blocks {
		switch b.Kind {
		case blockTrace:
			traceBlock = b
		case blockStream:
			streamBlocks = append(streamBlocks, b)
		case blockEvent:
			eventBlocks = append(eventBlocks, b)
		}
	}
	if traceBlock == nil {
		return nil, fmt.Errorf("tsdl: metadata has no trace block: %w", ctf.ErrInvalid)
	}

	if bo, ok := traceBlock.Assigns["byte_order"]; ok {
		switch bo {
		case "be":
			v.byteOrder = binary.BigEndian
		case "le":
			v.byteOrder = binary.LittleEndian
		default:
			return nil, fmt.Errorf("tsdl: unknown trace byte_order %q: %w", bo, ctf.ErrInvalid)
		}
	}
	if uuidStr, ok := traceBlock.Assigns["uuid"]; ok {
		u, err := parseUUID(uuidStr)
		if err != nil {
			return nil, fmt.Errorf("tsdl: bad trace uuid %q: %w", uuidStr, ctf.ErrInvalid)
		}
		v.uuid, v.hasUUID = u, true
	}
	if fields, ok := traceBlock.Named["packet.header"]; ok {
		ref, err := v.resolveType(StructType{Fields: fields}, v.byteOrder)
		if err != nil {
			return nil, err
		}
		v.packetHeader = ref
	}

	streamClasses := make(map[uint64]*ctf.StreamClassDecl, len(streamBlocks))
	for _, sb := range streamBlocks {
		id, err := assignUint(sb.Assigns, "id")
		if err != nil {
			return nil, err
		}
		scd := &ctf.StreamClassDecl{
			PacketContext: ctf.NoDecl,
			EventHeader:   ctf.NoDecl,
			EventContext:  ctf.NoDecl,
			Events:        make(map[uint64]*ctf.EventClassDecl),
		}
		if fields, ok := sb.Named["packet.context"]; ok {
			if scd.PacketContext, err = v.resolveType(StructType{Fields: fields}, v.byteOrder); err != nil {
				return nil, err
			}
		}
		if fields, ok := sb.Named["event.header"]; ok {
			if scd.EventHeader, err = v.resolveType(StructType{Fields: fields}, v.byteOrder); err != nil {
				return nil, err
			}
		}
		if fields, ok := sb.Named["event.context"]; ok {
			if scd.EventContext, err = v.resolveType(StructType{Fields: fields}, v.byteOrder); err != nil {
				return nil, err
			}
		}
		streamClasses[id] = scd
	}

	for _, eb := range eventBlocks {
		streamID, err := assignUint(eb.Assigns, "stream_id")
		if err != nil {
			return nil, err
		}
		id, err := assignUint(eb.Assigns, "id")
		if err != nil {
			return nil, err
		}
		scd, ok := streamClasses[streamID]
		if !ok {
			return nil, fmt.Errorf("tsdl: event %q references undeclared stream_id %d: %w",
				eb.Assigns["name"], streamID, ctf.ErrInvalid)
		}
		ecd := &ctf.EventClassDecl{Name: eb.Assigns["name"], EventContext: ctf.NoDecl, EventFields: ctf.NoDecl}
		if fields, ok := eb.Named["context"]; ok {
			if ecd.EventContext, err = v.resolveType(StructType{Fields: fields}, v.byteOrder); err != nil {
				return nil, err
			}
		}
		if fields, ok := eb.Named["fields"]; ok {
			if ecd.EventFields, err = v.resolveType(StructType{Fields: fields}, v.byteOrder); err != nil {
				return nil, err
			}
		}
		scd.Events[id] = ecd
	}

	return &ctf.TraceDecl{
		Decls:         v.decls,
		ByteOrder:     v.byteOrder,
		UUID:          v.uuid,
		HasUUID:       v.hasUUID,
		PacketHeader:  v.packetHeader,
		StreamClasses: streamClasses,
	}, nil
}

func assignUint(assigns map[string]string, key string) (uint64, error) {
	s, ok := assigns[key]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("tsdl: %s=%q is not an integer: %w", key, s, ctf.ErrInvalid)
	}
	return n, nil
}

func parseUUID(s string) ([16]byte, error) {
	var out [16]byte
	clean := strings.ReplaceAll(s, "-", "")
	b, err := hex.DecodeString(clean)
	if err != nil || len(b) != 16 {
		return out, fmt.Errorf("tsdl: malformed uuid %q", s)
	}
	copy(out[:], b)
	return out, nil
}

// visitor is the semantic pass: it walks AST TypeExpr nodes and adds
// matching ctf.Decl nodes to a shared arena, resolving the handful of
// built-in type aliases (uintN_t/intN_t, string) this subset supports.
type visitor struct {
	decls        *ctf.Declarations
	byteOrder    binary.ByteOrder
	uuid         [16]byte
	hasUUID      bool
	packetHeader ctf.DeclRef
}

func (v *visitor) resolveType(t TypeExpr, defaultByteOrder binary.ByteOrder) (ctf.DeclRef, error) {
	switch tt := t.(type) {
	case NamedType:
		return v.resolveNamedType(tt.Name, defaultByteOrder)

	case IntegerType:
		bo := byteOrderOrDefault(tt.ByteOrder, defaultByteOrder)
		align := uint32(tt.Align)
		if align == 0 {
			align = 8
		}
		base := tt.Base
		if base == 0 {
			base = 10
		}
		return v.decls.Add(ctf.Decl{Kind: ctf.KindInteger, Integer: &ctf.IntegerDecl{
			Width: uint8(tt.Size), Signed: tt.Signed, ByteOrder: bo, Align: align, Base: base,
		}}), nil

	case FloatType:
		bo := byteOrderOrDefault(tt.ByteOrder, defaultByteOrder)
		align := uint32(tt.Align)
		if align == 0 {
			align = 8
		}
		return v.decls.Add(ctf.Decl{Kind: ctf.KindFloat, Float: &ctf.FloatDecl{
			ExpWidth: uint8(tt.ExpDig), MantWidth: uint8(tt.MantDig), ByteOrder: bo, Align: align,
		}}), nil

	case EnumType:
		backingRef, err := v.resolveType(tt.Backing, defaultByteOrder)
		if err != nil {
			return ctf.NoDecl, err
		}
		ranges := make([]ctf.EnumRange, 0, len(tt.Ranges))
		for _, r := range tt.Ranges {
			ranges = append(ranges, ctf.EnumRange{Low: r.Low, High: r.High, Label: r.Label})
		}
		return v.decls.Add(ctf.Decl{Kind: ctf.KindEnum, Enum: &ctf.EnumDecl{Backing: backingRef, Ranges: ranges, Align: 8}}), nil

	case StructType:
		fields := make([]ctf.StructField, 0, len(tt.Fields))
		for _, f := range tt.Fields {
			ref, err := v.resolveType(f.Type, defaultByteOrder)
			if err != nil {
				return ctf.NoDecl, err
			}
			fields = append(fields, ctf.StructField{Name: f.Name, Decl: ref})
		}
		return v.decls.Add(ctf.Decl{Kind: ctf.KindStruct, Struct: &ctf.StructDecl{Fields: fields, Align: 8}}), nil

	case VariantType:
		branches := make([]ctf.VariantBranch, 0, len(tt.Branches))
		for _, b := range tt.Branches {
			ref, err := v.resolveType(b.Type, defaultByteOrder)
			if err != nil {
				return ctf.NoDecl, err
			}
			branches = append(branches, ctf.VariantBranch{Name: b.Name, Decl: ref})
		}
		return v.decls.Add(ctf.Decl{Kind: ctf.KindVariant, Variant: &ctf.VariantDecl{TagPath: tt.Tag, Branches: branches}}), nil

	case StringTypeExpr:
		return v.decls.Add(ctf.Decl{Kind: ctf.KindString, Str: &ctf.StringDecl{Encoding: ctf.EncodingUTF8}}), nil

	case ArrayType:
		elemRef, err := v.resolveType(tt.Elem, defaultByteOrder)
		if err != nil {
			return ctf.NoDecl, err
		}
		return v.decls.Add(ctf.Decl{Kind: ctf.KindArray, Array: &ctf.ArrayDecl{Length: uint64(tt.Length), Elem: elemRef, Align: 8}}), nil

	case SequenceType:
		elemRef, err := v.resolveType(tt.Elem, defaultByteOrder)
		if err != nil {
			return ctf.NoDecl, err
		}
		return v.decls.Add(ctf.Decl{Kind: ctf.KindSequence, Sequence: &ctf.SequenceDecl{LengthPath: tt.LengthPath, Elem: elemRef, Align: 8}}), nil

	default:
		return ctf.NoDecl, fmt.Errorf("tsdl: unknown type expression %T", t)
	}
}

func (v *visitor) resolveNamedType(name string, bo binary.ByteOrder) (ctf.DeclRef, error) {
	switch name {
	case "uint8_t":
		return v.namedInt(8, false, bo), nil
	case "int8_t":
		return v.namedInt(8, true, bo), nil
	case "uint16_t":
		return v.namedInt(16, false, bo), nil
	case "int16_t":
		return v.namedInt(16, true, bo), nil
	case "uint32_t":
		return v.namedInt(32, false, bo), nil
	case "int32_t":
		return v.namedInt(32, true, bo), nil
	case "uint64_t":
		return v.namedInt(64, false, bo), nil
	case "int64_t":
		return v.namedInt(64, true, bo), nil
	case "string":
		return v.decls.Add(ctf.Decl{Kind: ctf.KindString, Str: &ctf.StringDecl{Encoding: ctf.EncodingASCII}}), nil
	default:
		return ctf.NoDecl, fmt.Errorf("tsdl: unknown type alias %q: %w", name, ctf.ErrUnsupported)
	}
}

func (v *visitor) namedInt(width uint8, signed bool, bo binary.ByteOrder) ctf.DeclRef {
	return v.decls.Add(ctf.Decl{Kind: ctf.KindInteger, Integer: &ctf.IntegerDecl{
		Width: width, Signed: signed, ByteOrder: bo, Align: 8, Base: 10,
	}})
}

func byteOrderOrDefault(s string, def binary.ByteOrder) binary.ByteOrder {
	switch s {
	case "be":
		return binary.BigEndian
	case "le":
		return binary.LittleEndian
	default:
		return def
	}
}
