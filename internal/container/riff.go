package container

import "encoding/binary"

// riffChunk is one generic fourCC+size+payload sub-chunk, the framing used
// throughout the container outside of MxCh (which nests its own inner
// header inside the payload — see internal/omnibuf).
type riffChunk struct {
	ID      string
	Payload []byte
	// End is the absolute offset of the byte following this chunk
	// (including its pad byte, if any) within the buffer it was read from.
	End int
}

// readRIFFChunk reads one fourCC+size+payload chunk starting at offset in
// data.
func readRIFFChunk(data []byte, offset int) (riffChunk, error) {
	if offset+8 > len(data) {
		return riffChunk{}, ErrTruncated
	}
	id := string(data[offset : offset+4])
	size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
	pad := size & 1
	start := offset + 8
	if start+int(size) > len(data) {
		return riffChunk{}, ErrTruncated
	}
	return riffChunk{
		ID:      id,
		Payload: data[start : start+int(size)],
		End:     start + int(size) + int(pad),
	}, nil
}

// Header is the parsed MxHd record: container format version and the
// buffering parameters the original streamer used to size its blocks.
type Header struct {
	Major             int16
	Minor             int16
	BufferSize        uint32
	StreamBufferCount int16
	Reserved          int16
}

const (
	SupportedMajor = 2
	SupportedMinor = 2
)

func parseHeader(payload []byte) (Header, error) {
	if len(payload) < 12 {
		return Header{}, ErrTruncated
	}
	h := Header{
		Major:             int16(binary.LittleEndian.Uint16(payload[0:2])),
		Minor:             int16(binary.LittleEndian.Uint16(payload[2:4])),
		BufferSize:        binary.LittleEndian.Uint32(payload[4:8]),
		StreamBufferCount: int16(binary.LittleEndian.Uint16(payload[8:10])),
		Reserved:          int16(binary.LittleEndian.Uint16(payload[10:12])),
	}
	if h.Major != SupportedMajor || h.Minor != SupportedMinor {
		return h, ErrUnsupportedVersion
	}
	return h, nil
}
