// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import "fmt"

// ReadEvent implements the event reader (§4.7): it decodes the
// optional event header and resolves the event id (root integer "id",
// else enum "id", else an overriding integer "id" nested in a variant
// named "v"), updates the extended timestamp when a "timestamp" field
// is present, then decodes the stream-level and event-class-level
// context/fields declarations in order. It returns EOF once the
// current packet is exhausted; the caller advances with
// packetSeek(SeekCur, 0) and calls ReadEvent again.
func (c *Cursor) ReadEvent() (*StreamEvent, error) {
	fs := c.fs
	if fs.pos.atEOF() {
		return nil, EOF
	}
	fs.pos.align(8)
	if fs.pos.atEOF() {
		return nil, EOF
	}
	if fs.pos.offsetBits >= fs.pos.contentSizeBits {
		return nil, EOF
	}

	decls := fs.trace.decls
	outer := fs.topScope

	var headerDef *Def
	if fs.StreamClass.EventHeader.Valid() {
		d, err := dispatch(&fs.pos, decls, fs.StreamClass.EventHeader, outer)
		if err != nil {
			fs.trace.cfg.Metrics.decodeError("event_header")
			return nil, wrapErr("ReadEvent", fs.Path, err)
		}
		fs.StreamEventHeader = d
		headerDef = d
		outer = d.Scope
	}

	id := resolveEventID(headerDef)
	if tsDef, width, ok := findTimestampField(headerDef, decls); ok {
		extendTimestamp(fs, tsDef.Integer.Unsigned, width)
		fs.Stream.HasTimestamp = true
	} else {
		fs.Stream.HasTimestamp = false
	}

	if fs.StreamClass.EventContext.Valid() {
		d, err := dispatch(&fs.pos, decls, fs.StreamClass.EventContext, outer)
		if err != nil {
			fs.trace.cfg.Metrics.decodeError("stream_event_context")
			return nil, wrapErr("ReadEvent", fs.Path, err)
		}
		fs.StreamEventContext = d
		outer = d.Scope
	}

	ec := fs.StreamClass.eventByID(id)
	if ec == nil {
		fs.trace.cfg.Metrics.decodeError("unknown_event_id")
		return nil, wrapErr("ReadEvent", fs.Path, fmt.Errorf("%w: unknown event id %d", ErrInvalid, id))
	}
	fs.Stream.EventID = id

	var eventContextDef *Def
	if ec.EventContext.Valid() {
		d, err := dispatch(&fs.pos, decls, ec.EventContext, outer)
		if err != nil {
			fs.trace.cfg.Metrics.decodeError("event_context")
			return nil, wrapErr("ReadEvent", fs.Path, err)
		}
		eventContextDef = d
		outer = d.Scope
	}

	var eventFieldsDef *Def
	if ec.EventFields.Valid() {
		d, err := dispatch(&fs.pos, decls, ec.EventFields, outer)
		if err != nil {
			fs.trace.cfg.Metrics.decodeError("event_fields")
			return nil, wrapErr("ReadEvent", fs.Path, err)
		}
		eventFieldsDef = d
	}

	se := &StreamEvent{EventContext: eventContextDef, EventFields: eventFieldsDef}
	for len(fs.EventDefs) <= int(id) {
		fs.EventDefs = append(fs.EventDefs, nil)
	}
	fs.EventDefs[id] = se
	fs.trace.cfg.Metrics.eventRead(ec.Name)
	return se, nil
}

// resolveEventID implements §4.7 step 3: prefer a root integer "id",
// then a root enum "id", then an integer "id" nested inside a variant
// named "v" (which overrides either of the above). Default is 0.
func resolveEventID(headerDef *Def) uint64 {
	if headerDef == nil || headerDef.Kind != KindStruct {
		return 0
	}
	id := uint64(0)
	if d, ok := headerDef.Struct.Fields["id"]; ok {
		switch d.Kind {
		case KindInteger:
			id = d.Integer.Unsigned
		case KindEnum:
			id = d.Enum.Integer.Unsigned
		}
	}
	if v, ok := headerDef.Struct.Fields["v"]; ok && v.Kind == KindVariant && v.Variant.Branch != nil {
		branch := v.Variant.Branch
		if branch.Kind == KindStruct {
			if d, ok := branch.Struct.Fields["id"]; ok {
				switch d.Kind {
				case KindInteger:
					id = d.Integer.Unsigned
				case KindEnum:
					id = d.Enum.Integer.Unsigned
				}
			}
		}
	}
	return id
}

// findTimestampField implements §4.7 step 4: a root integer
// "timestamp", else one nested inside variant "v". Returns the field's
// Def plus its declared bit width (recovered from the declaration
// arena via the Def's own DeclRef), needed by extendTimestamp.
func findTimestampField(headerDef *Def, decls *Declarations) (*Def, uint8, bool) {
	if headerDef == nil || headerDef.Kind != KindStruct {
		return nil, 0, false
	}
	if d, ok := headerDef.Struct.Fields["timestamp"]; ok && d.Kind == KindInteger {
		return d, decls.Get(d.Decl).Integer.Width, true
	}
	if v, ok := headerDef.Struct.Fields["v"]; ok && v.Kind == KindVariant && v.Variant.Branch != nil {
		branch := v.Variant.Branch
		if branch.Kind == KindStruct {
			if d, ok := branch.Struct.Fields["timestamp"]; ok && d.Kind == KindInteger {
				return d, decls.Get(d.Decl).Integer.Width, true
			}
		}
	}
	return nil, 0, false
}

// extendTimestamp implements §4.7.1: it reconstructs a 64-bit
// monotonic timestamp from a possibly-narrower on-wire value by
// detecting a wrap in the low w bits. prev_timestamp is updated before
// timestamp, matching the reference's field write order.
func extendTimestamp(fs *FileStream, value uint64, width uint8) {
	fs.Stream.PrevTimestamp = fs.Stream.Timestamp
	if width >= 64 {
		fs.Stream.Timestamp = value
		return
	}
	mask := (uint64(1) << width) - 1
	oldLow := fs.Stream.Timestamp & mask
	newLow := value
	if newLow < oldLow {
		newLow += uint64(1) << width
	}
	fs.Stream.Timestamp = (fs.Stream.Timestamp &^ mask) + newLow
}
