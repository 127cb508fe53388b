package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/motion-guardian/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements Journal using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the status API read while the engine writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) RecordAlert(ctx context.Context, record *model.AlertRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Status == "" {
		record.Status = model.AlertStatusCompleted
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin alert insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO alerts (id, device, triggered_at, completed_at, delta_x, delta_y, delta_z, pitch, roll, yaw, artifacts, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Device, record.TriggeredAt.UTC(), record.CompletedAt.UTC(),
		record.Delta.X, record.Delta.Y, record.Delta.Z,
		record.Orientation.Pitch, record.Orientation.Roll, record.Orientation.Yaw,
		record.Artifacts, record.Status,
	)
	if err != nil {
		return fmt.Errorf("insert alert record: %w", err)
	}

	for _, d := range record.Deliveries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO deliveries (alert_id, notifier, artifact_path, ok, ack, error, sent_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.ID, d.Notifier, d.ArtifactPath, d.OK, d.Ack, d.Error, d.SentAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert record: %w", err)
	}
	return nil
}

func (s *SQLite) ListAlerts(ctx context.Context, filter model.HistoryFilter) ([]model.AlertRecord, error) {
	query := `SELECT id, device, triggered_at, completed_at, delta_x, delta_y, delta_z, pitch, roll, yaw, artifacts, status
		FROM alerts`
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY triggered_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var records []model.AlertRecord
	for rows.Next() {
		var r model.AlertRecord
		if err := rows.Scan(&r.ID, &r.Device, &r.TriggeredAt, &r.CompletedAt,
			&r.Delta.X, &r.Delta.Y, &r.Delta.Z,
			&r.Orientation.Pitch, &r.Orientation.Roll, &r.Orientation.Yaw,
			&r.Artifacts, &r.Status); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range records {
		records[i].Deliveries, err = s.deliveries(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *SQLite) deliveries(ctx context.Context, alertID string) ([]model.Delivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT notifier, artifact_path, ok, ack, error, sent_at
		 FROM deliveries WHERE alert_id = ? ORDER BY id`, alertID)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []model.Delivery
	for rows.Next() {
		var d model.Delivery
		if err := rows.Scan(&d.Notifier, &d.ArtifactPath, &d.OK, &d.Ack, &d.Error, &d.SentAt); err != nil {
			return nil, fmt.Errorf("scan delivery row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// buildWhereClause constructs a SQL WHERE clause from a HistoryFilter.
func buildWhereClause(filter model.HistoryFilter) (string, []any) {
	var conditions []string
	var args []any

	if !filter.Since.IsZero() {
		conditions = append(conditions, "triggered_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	return strings.Join(conditions, " AND "), args
}

var _ Journal = (*SQLite)(nil)
