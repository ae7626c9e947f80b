// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// packetMagic is the trace_packet_header magic value validated at the
// start of every packet, when the trace declares such a header (§4.5).
const packetMagic uint32 = 0xC1FC1FC1

// packetHeaderPageBytes bounds the bootstrap mapping used to decode a
// packet's trace_packet_header/stream_packet_context before their true
// content_size/packet_size are known. Every trace this reader targets
// keeps both well under one page.
const packetHeaderPageBytes = 4096

// hashPrefixBytes is how much of a stream file the index cache hashes
// to detect in-place replacement without a size/mtime change (§4.9).
const hashPrefixBytes = 4096

// indexFileStream runs the packet indexer (§4.5) once over fs,
// consulting the trace's IndexCache first and populating it afterward.
func (t *Trace) indexFileStream(fs *FileStream) error {
	size := fs.pager.size()
	if size <= 0 {
		return wrapErr("indexFileStream", fs.Path, fmt.Errorf("%w: empty stream file", ErrInvalid))
	}

	// The metadata digest namespaces the cache key, so two traces with
	// the same stream file path but different metadata never collide.
	cacheKey := t.metadataDigest.String() + ":" + fs.Path
	if cache := t.cfg.IndexCache; cache != nil {
		if _, mtime, hash, err := fs.statForCache(); err == nil {
			if entries, ok := cache.lookup(cacheKey, size, mtime, hash); ok {
				fs.Index = entries
				sc, err := t.bindStreamClassFromFirstPacket(fs)
				if err != nil {
					return err
				}
				fs.StreamClass = sc
				sc.Streams = append(sc.Streams, fs)
				for range fs.Index {
					t.cfg.Metrics.packetIndexed(fs.Path)
				}
				return nil
			}
		}
	}

	entries, err := t.scanPackets(fs, size)
	if err != nil {
		return err
	}
	fs.Index = entries

	if cache := t.cfg.IndexCache; cache != nil {
		if _, mtime, hash, err := fs.statForCache(); err == nil {
			_ = cache.store(cacheKey, size, mtime, hash, entries)
		}
	}
	for range entries {
		t.cfg.Metrics.packetIndexed(fs.Path)
	}
	return nil
}

// bindStreamClassFromFirstPacket re-derives which StreamClass fs
// belongs to on an index-cache hit, by mapping just the first packet's
// header (the scan this skips would otherwise have discovered it).
func (t *Trace) bindStreamClassFromFirstPacket(fs *FileStream) (*StreamClass, error) {
	base, err := fs.pager.mapRegion(0, minInt(packetHeaderPageBytes, int(fs.pager.size())))
	if err != nil {
		return nil, wrapErr("indexFileStream", fs.Path, err)
	}
	defer fs.pager.unmap()
	pos := &StreamPos{base: base, contentSizeBits: uint64(len(base)) * 8, packetSizeBits: uint64(len(base)) * 8}

	streamID, _, err := t.readPacketHeader(pos, fs)
	if err != nil {
		return nil, err
	}
	sc, ok := t.streamClasses[streamID]
	if !ok {
		return nil, wrapErr("indexFileStream", fs.Path,
			fmt.Errorf("%w: no stream class declared for stream_id %d", ErrInvalid, streamID))
	}
	return sc, nil
}

// scanPackets walks fs page-by-page, implementing §4.5 steps 1-7.
func (t *Trace) scanPackets(fs *FileStream, size int64) ([]PacketIndex, error) {
	var entries []PacketIndex
	var byteOffset int64
	var firstStreamID uint64
	var haveFirstPacket bool

	for byteOffset < size {
		mapLen := packetHeaderPageBytes
		if remaining := size - byteOffset; int64(mapLen) > remaining {
			mapLen = int(remaining)
		}
		base, err := fs.pager.mapRegion(byteOffset, mapLen)
		if err != nil {
			return nil, wrapErr("indexFileStream", fs.Path, err)
		}
		pos := &StreamPos{base: base, contentSizeBits: uint64(mapLen) * 8, packetSizeBits: uint64(mapLen) * 8}

		streamID, headerDef, err := t.readPacketHeader(pos, fs)
		if err != nil {
			fs.pager.unmap()
			return nil, err
		}

		if !haveFirstPacket {
			sc, ok := t.streamClasses[streamID]
			if !ok {
				fs.pager.unmap()
				return nil, wrapErr("indexFileStream", fs.Path,
					fmt.Errorf("%w: no stream class declared for stream_id %d", ErrInvalid, streamID))
			}
			fs.StreamClass = sc
			sc.Streams = append(sc.Streams, fs)
			firstStreamID = streamID
			haveFirstPacket = true
		} else if streamID != firstStreamID {
			fs.pager.unmap()
			return nil, wrapErr("indexFileStream", fs.Path,
				fmt.Errorf("%w: stream_id %d does not match first packet's %d", ErrInvalid, streamID, firstStreamID))
		}

		var ctxDef *Def
		contentSizeBits := uint64(size-byteOffset) * 8
		packetSizeBits := contentSizeBits
		var timestampBegin, timestampEnd, eventsDiscarded uint64

		if fs.StreamClass.PacketContext.Valid() {
			var outer *Scope
			if headerDef != nil {
				outer = headerDef.Scope
			}
			ctxDef, err = dispatch(pos, t.decls, fs.StreamClass.PacketContext, outer)
			if err != nil {
				fs.pager.unmap()
				return nil, wrapErr("indexFileStream", fs.Path, err)
			}
			if v, ok := fieldUint(ctxDef, "content_size"); ok {
				contentSizeBits = v
			}
			if v, ok := fieldUint(ctxDef, "packet_size"); ok {
				packetSizeBits = v
			}
			timestampBegin, _ = fieldUint(ctxDef, "timestamp_begin")
			timestampEnd, _ = fieldUint(ctxDef, "timestamp_end")
			eventsDiscarded, _ = fieldUint(ctxDef, "events_discarded")
		}

		if !(contentSizeBits <= packetSizeBits && packetSizeBits <= uint64(size-byteOffset)*8) {
			fs.pager.unmap()
			return nil, wrapErr("indexFileStream", fs.Path,
				fmt.Errorf("%w: content_size %d / packet_size %d inconsistent at offset %d",
					ErrInvalid, contentSizeBits, packetSizeBits, byteOffset))
		}

		entries = append(entries, PacketIndex{
			ByteOffset:      uint64(byteOffset),
			ContentSize:     contentSizeBits,
			PacketSize:      packetSizeBits,
			TimestampBegin:  timestampBegin,
			TimestampEnd:    timestampEnd,
			EventsDiscarded: eventsDiscarded,
			DataOffsetBits:  pos.offsetBits,
		})

		fs.pager.unmap()
		byteOffset += int64(packetSizeBits / 8)
	}
	return entries, nil
}

// readPacketHeader reads the optional trace_packet_header and returns
// the declared stream_id (default 0), validating magic/uuid when those
// fields are present (§4.5 step 2).
func (t *Trace) readPacketHeader(pos *StreamPos, fs *FileStream) (uint64, *Def, error) {
	if !t.packetHeaderDecl.Valid() {
		return 0, nil, nil
	}
	def, err := dispatch(pos, t.decls, t.packetHeaderDecl, nil)
	if err != nil {
		return 0, nil, wrapErr("indexFileStream", fs.Path, err)
	}
	if magic, ok := fieldUint(def, "magic"); ok && uint32(magic) != packetMagic {
		return 0, nil, wrapErr("indexFileStream", fs.Path,
			fmt.Errorf("%w: bad packet magic %#x", ErrInvalid, magic))
	}
	if t.hasUUID {
		if uuidField, ok := def.Struct.Fields["uuid"]; ok && uuidField.Kind == KindArray {
			for i, elem := range uuidField.Array.Elems {
				if i >= len(t.uuid) {
					break
				}
				if elem.Kind == KindInteger && byte(elem.Integer.Unsigned) != t.uuid[i] {
					return 0, nil, wrapErr("indexFileStream", fs.Path, fmt.Errorf("%w: packet uuid mismatch", ErrInvalid))
				}
			}
		}
	}
	streamID, _ := fieldUint(def, "stream_id")
	return streamID, def, nil
}

// fieldUint looks up a direct field of a struct Def and returns its
// unsigned integer value, following the enum-backing-integer case.
func fieldUint(def *Def, name string) (uint64, bool) {
	if def == nil || def.Kind != KindStruct {
		return 0, false
	}
	d, ok := def.Struct.Fields[name]
	if !ok {
		return 0, false
	}
	switch d.Kind {
	case KindInteger:
		return d.Integer.Unsigned, true
	case KindEnum:
		return d.Enum.Integer.Unsigned, true
	default:
		return 0, false
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// statForCache reports the size/mtime/content-hash triple used as an
// index cache key. Only mmapPager-backed streams (real files) support
// this; in-memory fixtures simply miss the cache every time.
func (fs *FileStream) statForCache() (size, mtime int64, hash uint64, err error) {
	mp, ok := fs.pager.(*mmapPager)
	if !ok {
		return 0, 0, 0, fmt.Errorf("ctf: no file backing for %s: %w", fs.Path, ErrUnsupported)
	}
	fi, statErr := mp.file.Stat()
	if statErr != nil {
		return 0, 0, 0, statErr
	}
	n := hashPrefixBytes
	if int64(n) > fi.Size() {
		n = int(fi.Size())
	}
	buf := make([]byte, n)
	if _, err := mp.file.ReadAt(buf, 0); err != nil {
		return 0, 0, 0, err
	}
	return fi.Size(), fi.ModTime().UnixNano(), xxhash.Sum64(buf), nil
}
