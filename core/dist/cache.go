package dist

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/rendlang/rend/core"
)

// ErrCacheMiss indicates no cached scan exists for the source.
var ErrCacheMiss = errors.New("scan not cached")

// ScanCache is a persistent source-to-block cache. Entries are keyed by
// the SHA-256 of the source text and hold the wire encoding of its
// scanned block, so repeated loads of unchanged scripts skip the
// scanner entirely.
type ScanCache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenCache opens (creating if needed) the cache database at path.
func OpenCache(path string) (*ScanCache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS scans (
		key TEXT PRIMARY KEY,
		wire BLOB NOT NULL,
		version INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating scans table: %w", err)
	}

	return &ScanCache{db: db, path: path}, nil
}

// Close closes the database connection.
func (sc *ScanCache) Close() error {
	if sc.db != nil {
		return sc.db.Close()
	}
	return nil
}

// Key returns the cache key for a source text.
func Key(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// Load rebuilds the cached scan of src, or ErrCacheMiss when absent.
// Stale wire versions read as misses.
func (sc *ScanCache) Load(in *core.Interp, src string) (*core.Series, error) {
	var wire []byte
	var version int
	err := sc.db.QueryRow(
		"SELECT wire, version FROM scans WHERE key = ?", Key(src),
	).Scan(&wire, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("querying scan: %w", err)
	}
	if version != WireVersion {
		return nil, ErrCacheMiss
	}

	block, err := UnmarshalBlock(in, wire)
	if err != nil {
		return nil, fmt.Errorf("decoding cached scan: %w", err)
	}
	return block, nil
}

// Store records the scanned block for src.
func (sc *ScanCache) Store(in *core.Interp, src string, block *core.Series) error {
	wire, err := MarshalBlock(block)
	if err != nil {
		return fmt.Errorf("encoding scan: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, err = sc.db.Exec(
		"INSERT OR REPLACE INTO scans (key, wire, version) VALUES (?, ?, ?)",
		Key(src), wire, WireVersion,
	)
	if err != nil {
		return fmt.Errorf("storing scan: %w", err)
	}
	return nil
}

// ScanCached scans src through the cache: a hit decodes the stored
// wire form, a miss scans and stores. A nil cache always scans.
func ScanCached(in *core.Interp, sc *ScanCache, src string) (*core.Series, error) {
	if sc != nil {
		block, err := sc.Load(in, src)
		if err == nil {
			return block, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			return nil, err
		}
	}

	var block *core.Series
	failure := in.RescueError(func() {
		block = in.Scan(src)
	})
	if failure != nil {
		return nil, fmt.Errorf("scan: %s", in.ErrorMessage(failure))
	}

	if sc != nil {
		if err := sc.Store(in, src, block); err != nil {
			return nil, err
		}
	}
	return block, nil
}
