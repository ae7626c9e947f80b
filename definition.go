// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import "strings"

// Scope is one link in the name-resolution chain described in §4.3.
// Each of the six root scopes (trace.packet.header, stream.packet
// .context, stream.event.header, stream.event.context, event.context,
// event.fields) is a *Scope whose parent is the previous root scope
// in that priority order; a struct or variant Def's own body gets a
// child Scope so that fields of a nested struct can still be found by
// a dotted name without being confused with a sibling field of the
// same name at an outer level.
type Scope struct {
	parent *Scope
	fields map[string]*Def
}

func newScope(parent *Scope) *Scope {
	return &Scope{parent: parent, fields: make(map[string]*Def)}
}

func (s *Scope) bind(name string, d *Def) {
	s.fields[name] = d
}

// lookup resolves a dotted name by walking the scope chain from s
// outward, matching the first component against field names recorded
// during prior reads of the current event, then descending through
// any remaining dotted components via struct/variant children.
func (s *Scope) lookup(name string) (*Def, bool) {
	parts := strings.Split(name, ".")
	for sc := s; sc != nil; sc = sc.parent {
		if d, ok := sc.fields[parts[0]]; ok {
			return descend(d, parts[1:])
		}
	}
	return nil, false
}

func descend(d *Def, rest []string) (*Def, bool) {
	if len(rest) == 0 {
		return d, true
	}
	switch d.Kind {
	case KindStruct:
		child, ok := d.Struct.Fields[rest[0]]
		if !ok {
			return nil, false
		}
		return descend(child, rest[1:])
	case KindVariant:
		if d.Variant.Branch == nil {
			return nil, false
		}
		return descend(d.Variant.Branch, rest)
	default:
		return nil, false
	}
}

// Def is one runtime instance of a Decl, bound to a parent scope for
// name resolution (§3, "Definition tree node").
type Def struct {
	Decl  DeclRef
	Scope *Scope
	Kind  Kind

	Integer  *IntegerDef
	Float    *FloatDef
	Enum     *EnumDef
	Str      *StringDef
	Struct   *StructDef
	Variant  *VariantDef
	Array    *ArrayDef
	Sequence *SequenceDef
}

// IntegerDef carries both the unsigned and sign-extended views of a
// decoded integer, as required by §4.2.
type IntegerDef struct {
	Unsigned uint64
	Signed   int64
}

// FloatDef carries the reinterpreted IEEE value.
type FloatDef struct {
	Value float64
}

// EnumDef carries the backing integer plus the resolved label, if the
// value fell within one of the declared ranges.
type EnumDef struct {
	Integer  *IntegerDef
	Label    string
	HasLabel bool
}

// StringDef carries the decoded, NUL-terminated (terminator excluded)
// string value.
type StringDef struct {
	Value string
}

// StructDef carries the struct's fields, both by name and in
// declaration order (order matters for §8 invariant 4's bit-accounting
// and for re-deriving dotted paths).
type StructDef struct {
	Fields map[string]*Def
	Order  []string
}

// VariantDef carries the tag value used to select a branch and the
// selected branch's own Def.
type VariantDef struct {
	Selected string
	Branch   *Def
}

// ArrayDef and SequenceDef carry their decoded elements.
type ArrayDef struct {
	Elems []*Def
}

type SequenceDef struct {
	Elems []*Def
}

// lookupInteger resolves name to an integer value, following the enum
// special case in §4.7 step 3 ("otherwise an enum field named id").
func lookupInteger(scope *Scope, name string) (*IntegerDef, bool) {
	d, ok := scope.lookup(name)
	if !ok {
		return nil, false
	}
	switch d.Kind {
	case KindInteger:
		return d.Integer, true
	case KindEnum:
		return d.Enum.Integer, true
	default:
		return nil, false
	}
}

// lookupEnum resolves name to an enum Def specifically.
func lookupEnum(scope *Scope, name string) (*EnumDef, bool) {
	d, ok := scope.lookup(name)
	if !ok || d.Kind != KindEnum {
		return nil, false
	}
	return d.Enum, true
}

// lookupVariant resolves name to a variant Def specifically.
func lookupVariant(scope *Scope, name string) (*VariantDef, bool) {
	d, ok := scope.lookup(name)
	if !ok || d.Kind != KindVariant {
		return nil, false
	}
	return d.Variant, true
}
