package synchronizer

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/ulid"
)

// Recorder persists session summaries
type Recorder interface {
	// RecordSession stores a finished session
	RecordSession(ctx context.Context, rec *SessionRecord) error

	// ListSessions returns the most recent sessions first
	ListSessions(ctx context.Context, kind Kind, limit int) ([]*SessionRecord, error)
}

var sessionColumns = []string{
	"id", "kind", "requested", "kept", "deleted", "pulls", "pulled_files",
	"discovered", "imported", "success", "error_message", "started_at", "completed_at",
}

// SQLRecorder implements Recorder using a SQL database
type SQLRecorder struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRecorder creates a new SQL recorder
func NewSQLRecorder(db *sql.DB, logger *loggy.Logger) *SQLRecorder {
	return &SQLRecorder{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// RecordSession stores a finished session
func (r *SQLRecorder) RecordSession(ctx context.Context, rec *SessionRecord) error {
	if rec.ID == "" {
		rec.ID = ulid.SessionID()
	}

	query, args, err := r.builder.Insert("sync_sessions").
		Columns(sessionColumns...).
		Values(
			rec.ID, rec.Kind, rec.Requested, rec.Kept, rec.Deleted, rec.Pulls, rec.PulledFiles,
			rec.Discovered, rec.Imported, rec.Success, rec.ErrorMessage, rec.StartedAt, rec.CompletedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building record session query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing record session query: %w", err)
	}

	r.logger.Debug("Recorded sync session", "session_id", rec.ID, "kind", rec.Kind)
	return nil
}

// ListSessions returns the most recent sessions first, optionally of one kind
func (r *SQLRecorder) ListSessions(ctx context.Context, kind Kind, limit int) ([]*SessionRecord, error) {
	q := r.builder.Select(sessionColumns...).
		From("sync_sessions").
		OrderBy("completed_at DESC")

	if kind != "" {
		q = q.Where(sq.Eq{"kind": kind})
	}

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list sessions query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing list sessions query: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		var rec SessionRecord
		err := rows.Scan(
			&rec.ID,
			&rec.Kind,
			&rec.Requested,
			&rec.Kept,
			&rec.Deleted,
			&rec.Pulls,
			&rec.PulledFiles,
			&rec.Discovered,
			&rec.Imported,
			&rec.Success,
			&rec.ErrorMessage,
			&rec.StartedAt,
			&rec.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning sync session row: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync session rows: %w", err)
	}

	return records, nil
}
