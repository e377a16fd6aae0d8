package swap

import "database/sql"

// schema contains the DDL for the swap store.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS swap_slots (
		slot       INTEGER PRIMARY KEY,
		contents   BLOB NOT NULL,
		written_at TEXT NOT NULL
	)`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	// Swap contents never persist across runs: whatever a previous kernel
	// left behind is garbage, not state.
	if _, err := db.Exec(`DELETE FROM swap_slots`); err != nil {
		return err
	}
	return nil
}
