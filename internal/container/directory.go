package container

import "github.com/omni-engine/omni/internal/omnibuf"

// ObjectEntry locates one serialized MxOb action-tree object within a
// container.
type ObjectEntry struct {
	// Offset is the absolute byte offset of the MxOb sub-chunk's fourCC,
	// suitable for a second readRIFFChunk call to materialize its payload.
	Offset int
	// Length is the MxOb sub-chunk's declared payload length (excluding
	// the 8-byte fourCC+size envelope and any trailing pad byte), enough
	// to read the object's bytes in one seek+read without re-parsing the
	// envelope.
	Length uint32
}

// ChunkEntry locates one MxCh stream chunk within a container, with its
// inner header already decoded so random-access readers (the stream
// controller routing chunks to subscribers) don't need to touch the file
// again just to learn which object a chunk belongs to.
type ChunkEntry struct {
	ObjectID uint32
	Offset   int // absolute offset of the MxCh envelope's fourCC
	Time     int32
	Length   uint32
	Flags    uint16
}

// Directory is the fully parsed offset index of a container: enough to
// seek directly to any object or chunk without re-scanning the file, and
// small enough to serialize into the header-directory cache.
type Directory struct {
	Header  Header
	Objects []ObjectEntry
	Chunks  []ChunkEntry
}

// ParseDirectory walks data (a full RIFF/OMNI container, typically an
// mmap'd file from the RAM provider) once and builds its Directory. It does
// not copy chunk payloads; callers re-read them on demand via the stored
// offsets.
func ParseDirectory(data []byte) (*Directory, error) {
	top, err := readRIFFChunk(data, 0)
	if err != nil {
		return nil, err
	}
	if top.ID != "RIFF" {
		return nil, ErrInvalidMagic
	}
	if len(top.Payload) < 4 || string(top.Payload[:4]) != "OMNI" {
		return nil, ErrInvalidMagic
	}

	dir := &Directory{}
	bodyStart := 8 + 4 // "RIFF" + size + "OMNI"
	for pos := bodyStart; pos < top.End; {
		sub, err := readRIFFChunk(data, pos)
		if err != nil {
			return nil, err
		}

		switch sub.ID {
		case "MxHd":
			h, err := parseHeader(sub.Payload)
			if err != nil {
				return nil, err
			}
			dir.Header = h
		case "LIST":
			if err := parseList(data, pos, sub, dir); err != nil {
				return nil, err
			}
		}

		pos = sub.End
	}
	return dir, nil
}

// parseList walks a LIST/MxDa body, recording every MxOb and MxCh entry it
// contains. listStart is the absolute offset of the LIST sub-chunk's fourCC.
func parseList(data []byte, listStart int, list riffChunk, dir *Directory) error {
	if len(list.Payload) < 4 {
		return ErrTruncated
	}
	// formType (e.g. "MxDa") is ignored for routing purposes; every list
	// body in this container format holds the same object/chunk mix.
	bodyStart := listStart + 8 + 4
	for pos := bodyStart; pos < list.End; {
		sub, err := readRIFFChunk(data, pos)
		if err != nil {
			return err
		}

		switch sub.ID {
		case "MxOb":
			dir.Objects = append(dir.Objects, ObjectEntry{Offset: pos, Length: uint32(len(sub.Payload))})
		case "MxCh":
			flags, objectID, t, length, err := omnibuf.DecodeInnerHeader(sub.Payload)
			if err != nil {
				return err
			}
			dir.Chunks = append(dir.Chunks, ChunkEntry{
				ObjectID: objectID,
				Offset:   pos,
				Time:     t,
				Length:   length,
				Flags:    flags,
			})
		}

		pos = sub.End
	}
	return nil
}

// ChunksForObject returns every chunk entry belonging to objectID, in file
// (and therefore playback) order.
func (d *Directory) ChunksForObject(objectID uint32) []ChunkEntry {
	var out []ChunkEntry
	for _, c := range d.Chunks {
		if c.ObjectID == objectID {
			out = append(out, c)
		}
	}
	return out
}
