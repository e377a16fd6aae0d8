package swap

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements PageStore on a SQLite database, one row per
// occupied slot.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the swap database at dbPath.
// Use ":memory:" for an in-memory store (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "swap"),
	}, nil
}

// Migrate creates the swap table and discards stale contents.
func (s *SQLiteStore) Migrate() error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(s.db)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Write persists a page image into slot, replacing any previous image.
func (s *SQLiteStore) Write(slot int, data []byte) error {
	s.logger.Debug("sql", "op", "write", "slot", slot, "bytes", len(data))

	// Copy: the caller hands us a live frame slice.
	img := make([]byte, len(data))
	copy(img, data)

	_, err := s.db.Exec(
		`INSERT INTO swap_slots (slot, contents, written_at) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET contents = excluded.contents, written_at = excluded.written_at`,
		slot, img, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write swap slot %d: %w", slot, err)
	}
	return nil
}

// Read returns the image last written to slot.
func (s *SQLiteStore) Read(slot int) ([]byte, error) {
	s.logger.Debug("sql", "op", "read", "slot", slot)

	var contents []byte
	err := s.db.QueryRow(
		`SELECT contents FROM swap_slots WHERE slot = ?`, slot,
	).Scan(&contents)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("swap slot %d is empty", slot)
	}
	if err != nil {
		return nil, fmt.Errorf("read swap slot %d: %w", slot, err)
	}
	return contents, nil
}

// Delete discards the image in slot, if any.
func (s *SQLiteStore) Delete(slot int) error {
	s.logger.Debug("sql", "op", "delete", "slot", slot)

	if _, err := s.db.Exec(`DELETE FROM swap_slots WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("delete swap slot %d: %w", slot, err)
	}
	return nil
}
