package container

import (
	"bytes"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/sha3"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// Fingerprint identifies a container by path, size and modification time so
// a stale directory is never served for a file that has since changed.
func Fingerprint(path string, size int64, modTime time.Time) string {
	sum := sha3.Sum256([]byte(fmt.Sprintf("%s:%d:%d", path, size, modTime.UnixNano())))
	return hex.EncodeToString(sum[:])
}

// DirectoryCache fronts a persistent sqlite table of parsed directories
// with an in-process TTL layer, so reopening a container a provider just
// closed skips the full RIFF walk. It is a performance cache of container
// structure, never a record of application/session state.
type DirectoryCache struct {
	hot *gocache.Cache
	db  *sql.DB
}

// NewDirectoryCache opens (creating if needed) the sqlite-backed store at
// dbPath and wraps it with a TTL hot layer.
func NewDirectoryCache(dbPath string, ttl time.Duration) (*DirectoryCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("container: opening directory cache db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS directories (
		fingerprint TEXT PRIMARY KEY,
		blob        BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("container: creating directory cache table: %w", err)
	}

	return &DirectoryCache{
		hot: gocache.New(ttl, ttl/2),
		db:  db,
	}, nil
}

// Close releases the underlying sqlite handle.
func (c *DirectoryCache) Close() error {
	return c.db.Close()
}

// Get returns the cached Directory for fingerprint, checking the hot layer
// before falling through to sqlite. The second return reports whether
// anything was found.
func (c *DirectoryCache) Get(fingerprint string) (*Directory, bool, error) {
	if v, ok := c.hot.Get(fingerprint); ok {
		dir := v.(*Directory)
		return dir, true, nil
	}

	var blob []byte
	err := c.db.QueryRow(`SELECT blob FROM directories WHERE fingerprint = ?`, fingerprint).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("container: reading directory cache row: %w", err)
	}

	dir, err := decodeDirectory(blob)
	if err != nil {
		return nil, false, err
	}
	c.hot.SetDefault(fingerprint, dir)
	return dir, true, nil
}

// Put stores dir under fingerprint in both layers.
func (c *DirectoryCache) Put(fingerprint string, dir *Directory) error {
	blob, err := encodeDirectory(dir)
	if err != nil {
		return err
	}

	if _, err := c.db.Exec(
		`INSERT INTO directories (fingerprint, blob) VALUES (?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET blob = excluded.blob`,
		fingerprint, blob,
	); err != nil {
		return fmt.Errorf("container: writing directory cache row: %w", err)
	}

	c.hot.SetDefault(fingerprint, dir)
	return nil
}

func encodeDirectory(dir *Directory) ([]byte, error) {
	raw, err := json.Marshal(dir)
	if err != nil {
		return nil, fmt.Errorf("container: marshaling directory: %w", err)
	}

	var compressed bytes.Buffer
	w, err := zstd.NewWriter(&compressed)
	if err != nil {
		return nil, fmt.Errorf("container: creating zstd writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, fmt.Errorf("container: compressing directory: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("container: flushing zstd writer: %w", err)
	}

	return compressed.Bytes(), nil
}

func decodeDirectory(blob []byte) (*Directory, error) {
	r, err := zstd.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("container: creating zstd reader: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("container: decompressing directory: %w", err)
	}

	var dir Directory
	if err := json.Unmarshal(raw, &dir); err != nil {
		return nil, fmt.Errorf("container: unmarshaling directory: %w", err)
	}
	return &dir, nil
}
