package omnibuf

import "encoding/binary"

// Chunk flag bits, matching DS_CHUNK_* in mxdschunk.h.
const (
	FlagOwnedData  uint16 = 0x01
	FlagEndOfSteam uint16 = 0x02
	FlagBit3       uint16 = 0x04
	FlagSplit      uint16 = 0x10
	FlagBit16      uint16 = 0x8000
)

const magic = "MxCh"

// envelopeHeader is the 8-byte RIFF-style wrapper every MxCh sub-chunk
// opens with: the "MxCh" tag followed by a length covering everything
// after it (innerHeader bytes + payload, odd lengths padded by one byte).
const envelopeHeaderSize = 8

// innerHeaderSize is the fixed record immediately following the RIFF
// envelope: flags u16, padding u16, objectId u32, time i32, length u32.
const innerHeaderSize = 16

// Chunk is a framed view into a Buffer: a flags/object-id/time/length
// header plus the data slice it describes. Reading a Chunk takes a
// reference on its owning Buffer; Release gives it back.
type Chunk struct {
	Flags    uint16
	ObjectID uint32
	Time     int32
	Length   uint32
	Data     []byte

	owner *Buffer
}

// SizeFromHeader returns the total on-wire size (envelope + inner header +
// payload + pad) of the chunk starting at buf, without fully parsing it.
// buf must have at least 8 bytes available.
func SizeFromHeader(buf []byte) (uint32, error) {
	if len(buf) < envelopeHeaderSize {
		return 0, ErrTruncatedChunk
	}
	riffLen := binary.LittleEndian.Uint32(buf[4:8])
	return envelopeHeaderSize + riffLen + (riffLen & 1), nil
}

// ReadChunk parses the chunk at buf's current cursor, advances the cursor
// past it, and takes a reference on buf. Callers must call Release on the
// returned Chunk once done with its Data.
func ReadChunk(buf *Buffer) (*Chunk, error) {
	data := buf.data
	start := buf.cursor

	if start+envelopeHeaderSize > buf.write {
		return nil, ErrTruncatedChunk
	}
	if string(data[start:start+4]) != magic {
		return nil, ErrInvalidMagic
	}

	riffLen := binary.LittleEndian.Uint32(data[start+4 : start+8])
	total := envelopeHeaderSize + riffLen + (riffLen & 1)
	if start+int(total) > buf.write {
		return nil, ErrTruncatedChunk
	}
	if riffLen < innerHeaderSize {
		return nil, ErrTruncatedChunk
	}

	hdr := data[start+envelopeHeaderSize : start+envelopeHeaderSize+innerHeaderSize]
	flags := binary.LittleEndian.Uint16(hdr[0:2])
	objectID := binary.LittleEndian.Uint32(hdr[4:8])
	t := int32(binary.LittleEndian.Uint32(hdr[8:12]))
	length := binary.LittleEndian.Uint32(hdr[12:16])

	if innerHeaderSize+length != riffLen {
		return nil, ErrTruncatedChunk
	}

	dataStart := start + envelopeHeaderSize + innerHeaderSize
	chunkData := data[dataStart : dataStart+int(length)]

	buf.cursor = start + int(total)
	buf.AddRef()

	return &Chunk{
		Flags:    flags,
		ObjectID: objectID,
		Time:     t,
		Length:   length,
		Data:     chunkData,
		owner:    buf,
	}, nil
}

// IsEndOfStream reports whether the end-of-stream flag is set.
func (c *Chunk) IsEndOfStream() bool { return c.Flags&FlagEndOfSteam != 0 }

// IsSplit reports whether this chunk is a fragment of a larger logical
// chunk that must be reassembled with its continuation(s).
func (c *Chunk) IsSplit() bool { return c.Flags&FlagSplit != 0 }

// Clone returns a second view over the same owning Buffer's Data, taking
// its own reference. Used when a single wire chunk fans out to more than
// one subscriber: each recipient must be able to Release independently
// without releasing the others' view out from under them.
func (c *Chunk) Clone() *Chunk {
	c.owner.AddRef()
	clone := *c
	clone.owner = c.owner
	return &clone
}

// Release gives back the reference this Chunk holds on its owning Buffer.
// Safe to call once; subsequent calls are no-ops.
func (c *Chunk) Release() {
	if c.owner != nil {
		c.owner.ReleaseRef()
		c.owner = nil
	}
}

// DecodeInnerHeader parses the 16-byte stream-chunk record from the start
// of payload, where payload is the MxCh envelope's contents with the
// 8-byte RIFF envelope (tag + length) already stripped off — the shape a
// generic RIFF walker (internal/container) produces. It only requires the
// header bytes to be present, not the data they describe, so a directory
// builder can decode routing fields from a header-only read without
// pulling a chunk's payload off disk. It is the allocation-free sibling of
// ReadChunk, used to build a chunk directory without materializing a
// Buffer/Chunk pair per entry.
func DecodeInnerHeader(payload []byte) (flags uint16, objectID uint32, t int32, length uint32, err error) {
	if len(payload) < innerHeaderSize {
		return 0, 0, 0, 0, ErrTruncatedChunk
	}
	flags = binary.LittleEndian.Uint16(payload[0:2])
	objectID = binary.LittleEndian.Uint32(payload[4:8])
	t = int32(binary.LittleEndian.Uint32(payload[8:12]))
	length = binary.LittleEndian.Uint32(payload[12:16])
	return flags, objectID, t, length, nil
}

// EncodeChunk serializes flags/objectID/time/data into wire form, for
// producers (tests, the RAM/Disk providers' synthetic fixtures) that need
// to build an MxCh sub-chunk from scratch.
func EncodeChunk(flags uint16, objectID uint32, t int32, data []byte) []byte {
	riffLen := uint32(innerHeaderSize + len(data))
	pad := riffLen & 1
	out := make([]byte, envelopeHeaderSize+riffLen+pad)

	copy(out[0:4], magic)
	binary.LittleEndian.PutUint32(out[4:8], riffLen)
	binary.LittleEndian.PutUint16(out[8:10], flags)
	binary.LittleEndian.PutUint32(out[12:16], objectID)
	binary.LittleEndian.PutUint32(out[16:20], uint32(t))
	binary.LittleEndian.PutUint32(out[20:24], uint32(len(data)))
	copy(out[24:24+len(data)], data)

	return out
}
