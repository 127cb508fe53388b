package storage

import (
	"context"

	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

// Journal persists completed alert sequences and their deliveries.
type Journal interface {
	// RecordAlert stores a record and its deliveries atomically.
	// An empty ID is filled in.
	RecordAlert(ctx context.Context, record *model.AlertRecord) error

	// ListAlerts returns records newest first.
	ListAlerts(ctx context.Context, filter model.HistoryFilter) ([]model.AlertRecord, error)

	// Close releases resources.
	Close() error
}
