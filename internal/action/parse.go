package action

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/omni-engine/omni/internal/omnibuf"
)

// minHeaderLen is the fixed portion of a serialized MxOb payload before its
// two variable-length strings: type, flags, object id, size on disk, and
// the two string-length prefixes.
const minHeaderLen = 2 + 2 + 4 + 4 + 2 + 2

// mediaTailLen is the fixed tail appended after the common header for leaf
// media actions (Anim, Sound, Still, and the generic MediaAction): duration,
// loop count, and the x/y/z placement the presenter reads at start_action.
const mediaTailLen = 4 + 4 + 4 + 4 + 4

// Parse decodes one MxOb object's payload — the bytes between a container's
// MxOb RIFF envelope and its end, already isolated into buf by the caller
// (typically the stream controller, reading the span container.ObjectEntry
// located) — into a concrete Action. It mirrors MxDSObject::Deserialize
// dispatching on Type to build the matching subtype (spec.md §4.5's
// "ownership passes from buffer to controller to presenter" contract).
//
// original_source/LEGO1/omni/include/mxdsobject.h declares Deserialize's
// signature and MxDSObject's in-memory field list, but the header alone
// does not specify the on-disk byte layout. This function's layout is
// this implementation's own length-prefixed rendering of those same
// fields — little-endian throughout, consistent with the rest of
// internal/omnibuf's framing — documented here rather than reverse
// engineered from a missing .cpp:
//
//	uint16 type
//	uint16 flags
//	uint32 objectID
//	uint32 sizeOnDisk
//	uint16 objectNameLen;  []byte objectName
//	uint16 sourceNameLen;  []byte sourceName
//	(MediaAction/Anim/Sound/Still only, mediaTailLen bytes:)
//	uint32 durationMillis
//	int32  loopCount
//	int32  locationX
//	int32  locationY
//	int32  displayZ
func Parse(buf *omnibuf.Buffer) (Action, error) {
	data := buf.Bytes()
	if len(data) < minHeaderLen {
		return nil, fmt.Errorf("action: payload too short (%d bytes, want at least %d)", len(data), minHeaderLen)
	}

	typ := Type(binary.LittleEndian.Uint16(data[0:2]))
	flags := Flags(binary.LittleEndian.Uint16(data[2:4]))
	objectID := binary.LittleEndian.Uint32(data[4:8])
	sizeOnDisk := binary.LittleEndian.Uint32(data[8:12])

	objectName, pos, err := readString(data, 12)
	if err != nil {
		return nil, fmt.Errorf("action: object %d: %w", objectID, err)
	}
	sourceName, pos, err := readString(data, pos)
	if err != nil {
		return nil, fmt.Errorf("action: object %d: %w", objectID, err)
	}

	meta := Meta{
		Type:       typ,
		ObjectID:   objectID,
		ObjectName: objectName,
		SourceName: sourceName,
		SizeOnDisk: sizeOnDisk,
		Flags:      flags,
	}

	switch typ {
	case TypeMediaAction, TypeAnim, TypeSound, TypeStill:
		return parseMediaTail(data, pos, meta)
	case TypeMultiAction, TypeSerialAction, TypeParallelAction:
		// Composite children are nested MxOb objects under this one in the
		// container tree; directory.go's flat walk does not currently
		// descend into them, so Children is left empty here. The
		// coordinator still dispatches start/end on the composite itself.
		return CompositeAction{Meta: meta}, nil
	case TypeSelectAction:
		return SelectAction{Meta: meta}, nil
	case TypeEvent, TypeObjectAction, TypeObject, TypeAction:
		return EventAction{Meta: meta}, nil
	default:
		return nil, fmt.Errorf("action: object %d: unrecognized type %d", objectID, typ)
	}
}

func parseMediaTail(data []byte, pos int, meta Meta) (Action, error) {
	if len(data)-pos < mediaTailLen {
		return nil, fmt.Errorf("action: object %d: truncated media tail (%d bytes left, want %d)",
			meta.ObjectID, len(data)-pos, mediaTailLen)
	}
	durationMS := binary.LittleEndian.Uint32(data[pos : pos+4])
	loopCount := int32(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
	locX := int32(binary.LittleEndian.Uint32(data[pos+8 : pos+12]))
	locY := int32(binary.LittleEndian.Uint32(data[pos+12 : pos+16]))
	z := int32(binary.LittleEndian.Uint32(data[pos+16 : pos+20]))

	return MediaAction{
		Meta:      meta,
		Duration:  time.Duration(durationMS) * time.Millisecond,
		LoopCount: loopCount,
		LocationX: locX,
		LocationY: locY,
		DisplayZ:  z,
	}, nil
}

// readString reads a uint16-length-prefixed string starting at pos,
// returning the string and the offset immediately following it.
func readString(data []byte, pos int) (string, int, error) {
	if pos+2 > len(data) {
		return "", 0, fmt.Errorf("truncated string length at offset %d", pos)
	}
	n := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2
	if pos+n > len(data) {
		return "", 0, fmt.Errorf("truncated string body at offset %d", pos)
	}
	return string(data[pos : pos+n]), pos + n, nil
}

// Encode serializes act back into the wire format Parse understands. Used
// by tests and by anything synthesizing a container (e.g. cmd/omnidemo)
// rather than hand-building a RIFF file byte by byte.
func Encode(act Action) []byte {
	m := act.Info()
	objectName := []byte(m.ObjectName)
	sourceName := []byte(m.SourceName)

	size := minHeaderLen + len(objectName) + len(sourceName)
	media, isMedia := act.(MediaAction)
	if isMedia {
		size += mediaTailLen
	}

	out := make([]byte, size)
	binary.LittleEndian.PutUint16(out[0:2], uint16(m.Type))
	binary.LittleEndian.PutUint16(out[2:4], uint16(m.Flags))
	binary.LittleEndian.PutUint32(out[4:8], m.ObjectID)
	binary.LittleEndian.PutUint32(out[8:12], m.SizeOnDisk)

	pos := 12
	pos = putString(out, pos, objectName)
	pos = putString(out, pos, sourceName)

	if isMedia {
		binary.LittleEndian.PutUint32(out[pos:pos+4], uint32(media.Duration/time.Millisecond))
		binary.LittleEndian.PutUint32(out[pos+4:pos+8], uint32(media.LoopCount))
		binary.LittleEndian.PutUint32(out[pos+8:pos+12], uint32(media.LocationX))
		binary.LittleEndian.PutUint32(out[pos+12:pos+16], uint32(media.LocationY))
		binary.LittleEndian.PutUint32(out[pos+16:pos+20], uint32(media.DisplayZ))
	}

	return out
}

func putString(out []byte, pos int, s []byte) int {
	binary.LittleEndian.PutUint16(out[pos:pos+2], uint16(len(s)))
	pos += 2
	copy(out[pos:], s)
	return pos + len(s)
}
