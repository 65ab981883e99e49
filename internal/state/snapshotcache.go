package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const snapshotCacheSchema = `
CREATE TABLE IF NOT EXISTS item_snapshots (
	board_id    TEXT NOT NULL,
	item_id     TEXT NOT NULL,
	content_kind TEXT NOT NULL,
	data        TEXT NOT NULL,
	synced_at   TEXT NOT NULL,
	PRIMARY KEY (board_id, item_id)
);
`

// SnapshotCache is a local SQLite cache of last-seen board item field
// values, keyed by board and item id. It is a pure performance cache
// (spec.md §4.4): the reconciliation engine never reads it (re-anchor
// always pages through the board) and only purges it after a run that
// deleted items. It is rebuilt wholesale if it is missing or its schema
// is stale.
type SnapshotCache struct {
	db *sql.DB
}

// OpenSnapshotCache opens or creates the SQLite cache at dbPath, recreating
// it from scratch if the existing file has an incompatible schema.
func OpenSnapshotCache(dbPath string) (*SnapshotCache, error) {
	cache, err := openSnapshotDB(dbPath)
	if err != nil {
		if strings.Contains(err.Error(), "no such column") || strings.Contains(err.Error(), "no such table") {
			if removeErr := os.Remove(dbPath); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("remove incompatible snapshot cache: %w", removeErr)
			}
			os.Remove(dbPath + "-wal")
			os.Remove(dbPath + "-shm")
			return openSnapshotDB(dbPath)
		}
		return nil, err
	}
	return cache, nil
}

func openSnapshotDB(dbPath string) (*SnapshotCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}
	if _, err := db.Exec(snapshotCacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize snapshot cache schema: %w", err)
	}
	// CREATE TABLE IF NOT EXISTS leaves an older table as it is, so probe
	// the expected columns to surface a stale schema as "no such column".
	rows, err := db.Query(`SELECT board_id, item_id, content_kind, data, synced_at FROM item_snapshots LIMIT 0`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("check snapshot cache schema: %w", err)
	}
	rows.Close()
	return &SnapshotCache{db: db}, nil
}

// Close closes the underlying database connection.
func (c *SnapshotCache) Close() error { return c.db.Close() }

// ItemSnapshot is the cached view of one board item. Nothing in the
// engine reads it back.
type ItemSnapshot struct {
	ItemID      string
	ContentKind string
	FieldValues map[string]any
	SyncedAt    string
}

// Put upserts a cached snapshot for one item.
func (c *SnapshotCache) Put(boardID string, snap ItemSnapshot) error {
	data, err := json.Marshal(snap.FieldValues)
	if err != nil {
		return fmt.Errorf("marshal snapshot fields: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT INTO item_snapshots (board_id, item_id, content_kind, data, synced_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(board_id, item_id) DO UPDATE SET
		   content_kind = excluded.content_kind,
		   data = excluded.data,
		   synced_at = excluded.synced_at`,
		boardID, snap.ItemID, snap.ContentKind, string(data), snap.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot for item %q: %w", snap.ItemID, err)
	}
	return nil
}

// Get returns the cached snapshot for one item, if present.
func (c *SnapshotCache) Get(boardID, itemID string) (ItemSnapshot, bool, error) {
	row := c.db.QueryRow(
		`SELECT item_id, content_kind, data, synced_at FROM item_snapshots WHERE board_id = ? AND item_id = ?`,
		boardID, itemID,
	)
	var snap ItemSnapshot
	var data string
	if err := row.Scan(&snap.ItemID, &snap.ContentKind, &data, &snap.SyncedAt); err != nil {
		if err == sql.ErrNoRows {
			return ItemSnapshot{}, false, nil
		}
		return ItemSnapshot{}, false, fmt.Errorf("read snapshot for item %q: %w", itemID, err)
	}
	if err := json.Unmarshal([]byte(data), &snap.FieldValues); err != nil {
		return ItemSnapshot{}, false, fmt.Errorf("parse cached field values for item %q: %w", itemID, err)
	}
	return snap, true, nil
}

// Purge removes every cached snapshot for a board. Sync calls it after a
// run that deleted items.
func (c *SnapshotCache) Purge(boardID string) error {
	_, err := c.db.Exec(`DELETE FROM item_snapshots WHERE board_id = ?`, boardID)
	if err != nil {
		return fmt.Errorf("purge snapshot cache for board %q: %w", boardID, err)
	}
	return nil
}
