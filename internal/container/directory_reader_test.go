package container

import (
	"bytes"
	"testing"

	"github.com/omni-engine/omni/internal/omnibuf"
)

func TestParseDirectoryFromReaderMatchesInMemoryParse(t *testing.T) {
	c1 := omnibuf.EncodeChunk(0, 9, 0, []byte("alpha"))
	c2 := omnibuf.EncodeChunk(omnibuf.FlagEndOfSteam, 9, 50, []byte("beta"))
	data := buildContainer(t, []byte("tree"), [][]byte{c1, c2})

	inMemory, err := ParseDirectory(data)
	if err != nil {
		t.Fatalf("unexpected error from ParseDirectory: %v", err)
	}

	fromReader, err := ParseDirectoryFromReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("unexpected error from ParseDirectoryFromReader: %v", err)
	}

	if fromReader.Header != inMemory.Header {
		t.Fatalf("header mismatch: reader=%+v memory=%+v", fromReader.Header, inMemory.Header)
	}
	if len(fromReader.Objects) != len(inMemory.Objects) {
		t.Fatalf("object count mismatch: reader=%d memory=%d", len(fromReader.Objects), len(inMemory.Objects))
	}
	if len(fromReader.Chunks) != len(inMemory.Chunks) {
		t.Fatalf("chunk count mismatch: reader=%d memory=%d", len(fromReader.Chunks), len(inMemory.Chunks))
	}
	for i := range fromReader.Chunks {
		if fromReader.Chunks[i] != inMemory.Chunks[i] {
			t.Fatalf("chunk %d mismatch: reader=%+v memory=%+v", i, fromReader.Chunks[i], inMemory.Chunks[i])
		}
	}
}

func TestParseDirectoryFromReaderRejectsBadMagic(t *testing.T) {
	data := []byte("NOPE0000notacontainerpadded0000")
	if _, err := ParseDirectoryFromReader(bytes.NewReader(data), int64(len(data))); err != ErrInvalidMagic {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}
