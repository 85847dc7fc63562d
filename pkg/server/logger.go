package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mikeboe/openloop/pkg/database"
)

// RunLogHandler is a slog.Handler that writes records to the
// research_logs table, scoped to one research run.
type RunLogHandler struct {
	DB    *database.PostgresDB
	RunID uuid.UUID
}

func NewRunLogHandler(db *database.PostgresDB, runID uuid.UUID) *RunLogHandler {
	return &RunLogHandler{
		DB:    db,
		RunID: runID,
	}
}

func (h *RunLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true // Log everything
}

func (h *RunLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]interface{})
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO research_logs (run_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	// Use a background context so log rows survive request cancellation;
	// the streamed run may be cancelled while a record is in flight.
	_, err = h.DB.Pool.Exec(context.Background(), query, h.RunID, r.Time, r.Level.String(), r.Message, metaJSON)
	return err
}

func (h *RunLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	// Attribute chaining is not needed for run-scoped logs; attributes
	// attached per record are captured in Handle.
	return h
}

func (h *RunLogHandler) WithGroup(name string) slog.Handler {
	return h
}
