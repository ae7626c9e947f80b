// Copyright 2026 The CTF Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"

	_ "modernc.org/sqlite"
)

// IndexCache is an optional, opt-in on-disk cache of previously
// computed packet indexes, keyed by stream file path, size, and
// modification time (§4.9). Backed by modernc.org/sqlite, a pure-Go
// driver, so a process that enables the cache stays a single static
// binary.
type IndexCache struct {
	db *sql.DB
}

// OpenIndexCache opens (creating if necessary) a sqlite database at
// path and ensures its schema exists.
func OpenIndexCache(path string) (*IndexCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ctf: open index cache %s: %w", path, err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS packet_index (
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		mtime INTEGER NOT NULL,
		xxhash INTEGER NOT NULL,
		entries BLOB NOT NULL,
		PRIMARY KEY (path, size, mtime)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ctf: create index cache schema: %w", err)
	}
	return &IndexCache{db: db}, nil
}

// Close closes the underlying database handle.
func (c *IndexCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// lookup returns the cached packet index for path/size/mtime/hash, if
// one was stored by a prior scan. A hit additionally requires the
// stored content hash to match, so a file replaced in place without
// changing size or mtime (a narrow but real race) still forces a
// rescan.
func (c *IndexCache) lookup(path string, size, mtime int64, hash uint64) ([]PacketIndex, bool) {
	if c == nil || c.db == nil {
		return nil, false
	}
	var storedHash uint64
	var blob []byte
	row := c.db.QueryRow(
		`SELECT xxhash, entries FROM packet_index WHERE path = ? AND size = ? AND mtime = ?`,
		path, size, mtime)
	if err := row.Scan(&storedHash, &blob); err != nil {
		return nil, false
	}
	if storedHash != hash {
		return nil, false
	}
	var entries []PacketIndex
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&entries); err != nil {
		return nil, false
	}
	return entries, true
}

// store records a freshly scanned packet index under path/size/mtime/
// hash, replacing any previous entry for that key.
func (c *IndexCache) store(path string, size, mtime int64, hash uint64, entries []PacketIndex) error {
	if c == nil || c.db == nil {
		return nil
	}
	var blob bytes.Buffer
	if err := gob.NewEncoder(&blob).Encode(entries); err != nil {
		return fmt.Errorf("ctf: encode index cache entry: %w", err)
	}
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO packet_index (path, size, mtime, xxhash, entries) VALUES (?, ?, ?, ?, ?)`,
		path, size, mtime, hash, blob.Bytes())
	if err != nil {
		return fmt.Errorf("ctf: store index cache entry: %w", err)
	}
	return nil
}
