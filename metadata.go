// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/saferwall/ctf/ctflog"
)

// tsdlMagic is TSDL_MAGIC, the 4-byte marker that opens a binary-framed
// metadata packet (§4.4).
const tsdlMagic uint32 = 0x75D11D57

// metadataWireHeaderSize is the on-wire size, in bytes, of
// metadataPacketHeader: magic(4) + uuid(16) + checksum(4) +
// content_size(4) + packet_size(4) + three 1-byte scheme fields(3) +
// major(1) + minor(1).
const metadataWireHeaderSize = 4 + 16 + 4 + 4 + 4 + 1 + 1 + 1 + 1 + 1

// metadataPacketHeader is the fixed header of one binary-framed
// metadata packet (§4.4).
type metadataPacketHeader struct {
	Magic             uint32
	UUID              [16]byte
	Checksum          uint32
	ContentSizeBits   uint32
	PacketSizeBits    uint32
	CompressionScheme uint8
	EncryptionScheme  uint8
	ChecksumScheme    uint8
	Major             uint8
	Minor             uint8
}

// nativeByteOrder is this reader's notion of "host byte order" (§4.4
// step 1). Every platform this module ships on is little-endian.
var nativeByteOrder binary.ByteOrder = binary.LittleEndian

// loadMetadata implements §4.4: it classifies the stream as
// binary-framed or text-only, assembles the contiguous TSDL text, and
// hands it to compiler. It returns the compiled declarations plus the
// raw text, which the caller digests for provenance logging (§4.9).
func loadMetadata(r io.Reader, compiler MetadataCompiler, logger *ctflog.Helper) (*TraceDecl, string, error) {
	if logger == nil {
		logger = ctflog.NewHelper(nil)
	}
	br := bufio.NewReader(r)
	peek, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, "", fmt.Errorf("ctf: peek metadata header: %w", err)
	}

	var text string
	var byteOrder binary.ByteOrder = nativeByteOrder

	if len(peek) == 4 && binary.LittleEndian.Uint32(peek) == tsdlMagic {
		text, err = readBinaryFramedMetadata(br, binary.LittleEndian, logger)
		byteOrder = binary.LittleEndian
	} else if len(peek) == 4 && binary.BigEndian.Uint32(peek) == tsdlMagic {
		text, err = readBinaryFramedMetadata(br, binary.BigEndian, logger)
		byteOrder = binary.BigEndian
	} else {
		var raw []byte
		raw, err = io.ReadAll(br)
		if err == nil {
			text = string(raw)
			if !strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), "/* CTF") {
				err = fmt.Errorf("ctf: text metadata missing %q prefix: %w", "/* CTF", ErrInvalid)
			}
		}
	}
	if err != nil {
		return nil, "", err
	}

	decl, err := compiler.Compile(text, byteOrder)
	if err != nil {
		return nil, "", fmt.Errorf("ctf: compile metadata: %w", err)
	}
	return decl, text, nil
}

// readBinaryFramedMetadata reads one metadata packet at a time,
// validates each header, and concatenates the payload bytes into one
// TSDL text buffer (§4.4).
func readBinaryFramedMetadata(br *bufio.Reader, byteOrder binary.ByteOrder, logger *ctflog.Helper) (string, error) {
	var buf strings.Builder
	var uuid [16]byte
	var hasUUID bool

	for {
		var hdr metadataPacketHeader
		if err := binary.Read(br, byteOrder, &hdr); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("ctf: read metadata packet header: %w", err)
		}
		if hdr.Magic != tsdlMagic {
			return "", fmt.Errorf("ctf: bad metadata packet magic %#x: %w", hdr.Magic, ErrInvalid)
		}
		if hdr.CompressionScheme != 0 || hdr.EncryptionScheme != 0 {
			return "", fmt.Errorf("ctf: metadata packet compression/encryption unsupported: %w", ErrUnsupported)
		}
		if hdr.ChecksumScheme != 0 {
			return "", fmt.Errorf("ctf: metadata packet checksum scheme %d unsupported: %w", hdr.ChecksumScheme, ErrUnsupported)
		}
		if hdr.Checksum != 0 {
			logger.Warnf("ctf: metadata packet carries checksum %#x, verification not supported yet", hdr.Checksum)
		}
		if hdr.Major != 1 || hdr.Minor != 8 {
			logger.Warnf("ctf: metadata packet version %d.%d differs from 1.8, proceeding anyway", hdr.Major, hdr.Minor)
		}
		if !hasUUID {
			uuid = hdr.UUID
			hasUUID = true
		} else if uuid != hdr.UUID {
			return "", fmt.Errorf("ctf: metadata packet uuid mismatch: %w", ErrInvalid)
		}

		contentBytes := hdr.ContentSizeBits / 8
		packetBytes := hdr.PacketSizeBits / 8
		if contentBytes < metadataWireHeaderSize || packetBytes < contentBytes {
			return "", fmt.Errorf("ctf: metadata packet size %d/%d inconsistent with header size %d: %w",
				contentBytes, packetBytes, metadataWireHeaderSize, ErrInvalid)
		}
		payload := make([]byte, contentBytes-metadataWireHeaderSize)
		if _, err := io.ReadFull(br, payload); err != nil {
			return "", fmt.Errorf("ctf: read metadata packet payload: %w", ErrShortIO)
		}
		buf.Write(payload)

		if padding := packetBytes - contentBytes; padding > 0 {
			if _, err := io.CopyN(io.Discard, br, int64(padding)); err != nil {
				return "", fmt.Errorf("ctf: skip metadata packet padding: %w", ErrShortIO)
			}
		}
	}
	return buf.String(), nil
}
