// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package tsdl

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/saferwall/ctf"
)

const minimalMetadata = `
trace {
	major = 1;
	minor = 8;
	byte_order = le;
	uuid = "2a6422d0-6cee-11e0-8c08-cb07d7b3a564";
	packet.header {
		uint32_t magic;
		uint8_t uuid[16];
		uint32_t stream_id;
	};
};

stream {
	id = 0;
	packet.context {
		uint64_t timestamp_begin;
		uint64_t timestamp_end;
		uint64_t content_size;
		uint64_t packet_size;
		uint64_t events_discarded;
	};
	event.header {
		uint64_t timestamp;
		uint64_t id;
	};
};

event {
	name = "sched_switch";
	id = 0;
	stream_id = 0;
	fields {
		uint32_t prev_pid;
		uint32_t next_pid;
	};
};
`

func TestCompileMinimalMetadata(t *testing.T) {
	c := NewCompiler()
	decl, err := c.Compile(minimalMetadata, binary.BigEndian)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if decl.ByteOrder != binary.LittleEndian {
		t.Fatal("trace byte_order = le was not honored over the host default")
	}
	if !decl.HasUUID {
		t.Fatal("HasUUID = false, want true")
	}
	if !decl.PacketHeader.Valid() {
		t.Fatal("PacketHeader is not valid")
	}
	sc, ok := decl.StreamClasses[0]
	if !ok {
		t.Fatal("stream class 0 missing")
	}
	if !sc.PacketContext.Valid() || !sc.EventHeader.Valid() {
		t.Fatal("stream class 0 missing packet.context/event.header")
	}
	ec, ok := sc.Events[0]
	if !ok || ec.Name != "sched_switch" {
		t.Fatalf("event class 0 = %+v, want name sched_switch", ec)
	}
	if !ec.EventFields.Valid() {
		t.Fatal("event class 0 missing fields")
	}

	structDecl := decl.Decls.Get(ec.EventFields)
	if structDecl.Kind != ctf.KindStruct || len(structDecl.Struct.Fields) != 2 {
		t.Fatalf("fields decl = %+v", structDecl)
	}
}

func TestCompileDefaultsHostByteOrderWhenTraceOmitsIt(t *testing.T) {
	c := NewCompiler()
	decl, err := c.Compile(`trace { major = 1; minor = 8; };`, binary.BigEndian)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if decl.ByteOrder != binary.BigEndian {
		t.Fatal("Compile did not fall back to the host byte order")
	}
}

func TestCompileRejectsMissingTraceBlock(t *testing.T) {
	c := NewCompiler()
	_, err := c.Compile(`stream { id = 0; };`, binary.LittleEndian)
	if !errors.Is(err, ctf.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestCompileRejectsEventWithUndeclaredStream(t *testing.T) {
	c := NewCompiler()
	_, err := c.Compile(`
		trace { major = 1; };
		event { name = "x"; id = 0; stream_id = 9; };
	`, binary.LittleEndian)
	if !errors.Is(err, ctf.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestCompileRejectsUnknownTypeAlias(t *testing.T) {
	c := NewCompiler()
	_, err := c.Compile(`
		trace { major = 1; packet.header { uint5_t bogus; }; };
	`, binary.LittleEndian)
	if !errors.Is(err, ctf.ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestCompileEnumTagDrivesVariant(t *testing.T) {
	c := NewCompiler()
	decl, err := c.Compile(`
		trace {
			major = 1;
		};
		stream {
			id = 0;
			event.header {
				integer { size = 5; signed = false; align = 1; } id;
			};
		};
		event {
			name = "e";
			id = 0;
			stream_id = 0;
			fields {
				enum : uint8_t { A = 0, B = 1 } tag;
				variant <tag> {
					uint8_t a;
					uint32_t b;
				} v;
			};
		};
	`, binary.LittleEndian)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sc := decl.StreamClasses[0]
	headerDecl := decl.Decls.Get(sc.EventHeader)
	if headerDecl.Kind != ctf.KindStruct {
		t.Fatalf("event.header kind = %v", headerDecl.Kind)
	}
	idField := headerDecl.Struct.Fields[0]
	intDecl := decl.Decls.Get(idField.Decl)
	if intDecl.Kind != ctf.KindInteger || intDecl.Integer.Width != 5 {
		t.Fatalf("event.header id field = %+v, want a 5-bit integer", intDecl)
	}

	ec := sc.Events[0]
	fieldsDecl := decl.Decls.Get(ec.EventFields)
	vField := fieldsDecl.Struct.Fields[1]
	variantDecl := decl.Decls.Get(vField.Decl)
	if variantDecl.Kind != ctf.KindVariant || variantDecl.Variant.TagPath != "tag" {
		t.Fatalf("variant field = %+v", variantDecl)
	}
}

func TestCompileMalformedUUIDIsInvalid(t *testing.T) {
	c := NewCompiler()
	_, err := c.Compile(`trace { major = 1; uuid = "not-a-uuid"; };`, binary.LittleEndian)
	if !errors.Is(err, ctf.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}
