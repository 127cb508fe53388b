package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// 1: alert sequences
	`CREATE TABLE IF NOT EXISTS alerts (
		id           TEXT PRIMARY KEY,
		device       TEXT NOT NULL DEFAULT '',
		triggered_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		delta_x      REAL NOT NULL DEFAULT 0.0,
		delta_y      REAL NOT NULL DEFAULT 0.0,
		delta_z      REAL NOT NULL DEFAULT 0.0,
		pitch        REAL NOT NULL DEFAULT 0.0,
		roll         REAL NOT NULL DEFAULT 0.0,
		yaw          REAL NOT NULL DEFAULT 0.0,
		artifacts    INTEGER NOT NULL DEFAULT 0,
		status       TEXT NOT NULL DEFAULT 'completed',
		created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_triggered_at ON alerts(triggered_at);`,

	// 2: per-artifact delivery results
	`CREATE TABLE IF NOT EXISTS deliveries (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id      TEXT NOT NULL REFERENCES alerts(id) ON DELETE CASCADE,
		notifier      TEXT NOT NULL,
		artifact_path TEXT NOT NULL,
		ok            INTEGER NOT NULL DEFAULT 0,
		ack           TEXT NOT NULL DEFAULT '',
		error         TEXT NOT NULL DEFAULT '',
		sent_at       DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deliveries_alert ON deliveries(alert_id);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}

// SchemaVersion reports the highest applied migration.
func (s *SQLite) SchemaVersion() (int, error) {
	var v int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
