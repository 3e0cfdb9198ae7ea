package container

import (
	"encoding/binary"
	"io"

	"github.com/omni-engine/omni/internal/omnibuf"
)

// ParseDirectoryFromReader builds a Directory the same way ParseDirectory
// does, but reads only chunk headers from r — never a chunk's data payload
// — seeking past everything else. This is what the Disk provider uses to
// keep only headers resident (spec.md §4.2) instead of loading the whole
// container into memory the way the RAM provider does.
func ParseDirectoryFromReader(r io.ReaderAt, size int64) (*Directory, error) {
	topID, topBodySize, err := readHeaderAt(r, 0)
	if err != nil {
		return nil, err
	}
	if topID != "RIFF" {
		return nil, ErrInvalidMagic
	}

	formType := make([]byte, 4)
	if _, err := r.ReadAt(formType, 8); err != nil {
		return nil, ErrTruncated
	}
	if string(formType) != "OMNI" {
		return nil, ErrInvalidMagic
	}

	dir := &Directory{}
	bodyEnd := int64(8) + int64(topBodySize) + int64(topBodySize&1)
	if bodyEnd > size {
		return nil, ErrTruncated
	}

	for pos := int64(12); pos < bodyEnd; {
		id, subSize, err := readHeaderAt(r, pos)
		if err != nil {
			return nil, err
		}
		subStart := pos + 8
		subEnd := subStart + int64(subSize) + int64(subSize&1)

		switch id {
		case "MxHd":
			payload := make([]byte, subSize)
			if _, err := r.ReadAt(payload, subStart); err != nil {
				return nil, ErrTruncated
			}
			h, err := parseHeader(payload)
			if err != nil {
				return nil, err
			}
			dir.Header = h
		case "LIST":
			if err := walkListHeaders(r, subStart, subSize, dir); err != nil {
				return nil, err
			}
		}

		pos = subEnd
	}
	return dir, nil
}

func walkListHeaders(r io.ReaderAt, listStart int64, listSize uint32, dir *Directory) error {
	// first 4 bytes of the LIST body are its formType (e.g. "MxDa")
	listBodyStart := listStart + 4
	listEnd := listStart + int64(listSize)

	for pos := listBodyStart; pos < listEnd; {
		id, subSize, err := readHeaderAt(r, pos)
		if err != nil {
			return err
		}
		subStart := pos + 8

		switch id {
		case "MxOb":
			dir.Objects = append(dir.Objects, ObjectEntry{Offset: int(pos), Length: subSize})
		case "MxCh":
			hdr := make([]byte, 16)
			if _, err := r.ReadAt(hdr, subStart); err != nil {
				return ErrTruncated
			}
			flags, objectID, t, length, err := omnibuf.DecodeInnerHeader(hdr)
			if err != nil {
				return err
			}
			dir.Chunks = append(dir.Chunks, ChunkEntry{
				ObjectID: objectID,
				Offset:   int(pos),
				Time:     t,
				Length:   length,
				Flags:    flags,
			})
		}

		pos = subStart + int64(subSize) + int64(subSize&1)
	}
	return nil
}

func readHeaderAt(r io.ReaderAt, offset int64) (id string, size uint32, err error) {
	buf := make([]byte, 8)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return "", 0, ErrTruncated
	}
	return string(buf[0:4]), binary.LittleEndian.Uint32(buf[4:8]), nil
}
