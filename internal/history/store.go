// Package history keeps an append-only log of delivered notifications.
// The log is advisory: failures are logged by callers and never block a
// delivery.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/towncrier/internal/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS deliveries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guid TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	rig TEXT NOT NULL DEFAULT '',
	channel_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries(created_at);
`

// Delivery is one recorded notification.
type Delivery struct {
	ID        int64
	GUID      string
	Kind      string
	Rig       string
	ChannelID int64
	Title     string
	CreatedAt time.Time
}

// Store is the SQLite-backed delivery log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the delivery log at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	log.Info(log.CatHistory, "Opened delivery history", "path", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a delivery. A GUID is assigned when the caller supplies
// none; the assigned values are written back into d.
func (s *Store) Record(d *Delivery) error {
	if d.GUID == "" {
		d.GUID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.Exec(
		`INSERT INTO deliveries (guid, kind, rig, channel_id, title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.GUID, d.Kind, d.Rig, d.ChannelID, d.Title, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting delivery: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting delivery id: %w", err)
	}
	d.ID = id
	return nil
}

// Recent returns the most recent deliveries, newest first.
func (s *Store) Recent(limit int) ([]Delivery, error) {
	rows, err := s.db.Query(
		`SELECT id, guid, kind, rig, channel_id, title, created_at
		 FROM deliveries ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.GUID, &d.Kind, &d.Rig, &d.ChannelID, &d.Title, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deliveries: %w", err)
	}
	return out, nil
}
