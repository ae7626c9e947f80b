// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

// EventClass owns the optional declarations for one event's context
// and payload fields (§3 "EventClass").
type EventClass struct {
	Name          string
	EventContext  DeclRef // NoDecl if absent
	EventFields   DeclRef // NoDecl if absent
	StreamClassID uint64
	ID            uint64
}

// StreamClass owns the optional declarations shared by every
// FileStream bound to it, and the dense, possibly-sparse sequence of
// EventClass slots indexed by event id (§3 "StreamClass").
type StreamClass struct {
	ID uint64

	PacketContext DeclRef // NoDecl if absent
	EventHeader   DeclRef // NoDecl if absent
	EventContext  DeclRef // NoDecl if absent

	// EventsByID holes are allowed: a nil entry at index i means no
	// event class declares that id.
	EventsByID []*EventClass

	Streams []*FileStream
}

// eventByID returns the EventClass bound to id, or nil if the slot is
// out of range or empty (§4.7 step 6).
func (sc *StreamClass) eventByID(id uint64) *EventClass {
	if id >= uint64(len(sc.EventsByID)) {
		return nil
	}
	return sc.EventsByID[id]
}

// EventByID is the exported form of eventByID, for callers outside the
// package (e.g. cmd/ctfdump) that already hold a StreamClass from a
// Cursor and need to label a decoded event by name.
func (sc *StreamClass) EventByID(id uint64) *EventClass { return sc.eventByID(id) }
