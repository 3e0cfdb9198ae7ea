package omni

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/omni-engine/omni/internal/omnibuf"
)

func riffChunkBytes(id string, payload []byte) []byte {
	pad := len(payload) % 2
	out := make([]byte, 8+len(payload)+pad)
	copy(out[0:4], id)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(payload)))
	copy(out[8:], payload)
	return out
}

func mxHdPayload(bufSize uint32, streamBufCount int16) []byte {
	p := make([]byte, 12)
	binary.LittleEndian.PutUint16(p[0:2], 2)
	binary.LittleEndian.PutUint16(p[2:4], 2)
	binary.LittleEndian.PutUint32(p[4:8], bufSize)
	binary.LittleEndian.PutUint16(p[8:10], uint16(streamBufCount))
	return p
}

func buildFixtureContainer(chunks [][]byte) []byte {
	mxHd := riffChunkBytes("MxHd", mxHdPayload(4096, 4))

	listBody := append([]byte{}, []byte("MxDa")...)
	for _, c := range chunks {
		listBody = append(listBody, riffChunkBytes("MxCh", c[8:])...)
	}
	list := riffChunkBytes("LIST", listBody)

	omniBody := append([]byte{}, []byte("OMNI")...)
	omniBody = append(omniBody, mxHd...)
	omniBody = append(omniBody, list...)

	return riffChunkBytes("RIFF", omniBody)
}

func writeFixtureFile(t *testing.T, chunks [][]byte) string {
	t.Helper()
	data := buildFixtureContainer(chunks)
	path := filepath.Join(t.TempDir(), "fixture.si")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func oneChunkFixture(t *testing.T, objectID uint32) string {
	t.Helper()
	return writeFixtureFile(t, [][]byte{omnibuf.EncodeChunk(0, objectID, 0, []byte("x"))})
}
