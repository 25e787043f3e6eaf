package vcs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/tildaslashalef/assetsync/internal/loggy"
)

// saveBatchSize keeps multi-row inserts under SQLite's bound variable limit
const saveBatchSize = 100

// StatusRepository persists the last known status of files
type StatusRepository interface {
	// SaveStatuses inserts or replaces the given statuses
	SaveStatuses(ctx context.Context, statuses []FileStatus) error

	// ListStatuses returns stored statuses carrying a flag in mask, all when mask is StatusNone
	ListStatuses(ctx context.Context, mask Status, limit int) ([]FileStatus, error)
}

// SQLRepository stores file statuses and the have list in SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) *SQLRepository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// SaveStatuses inserts or replaces the given statuses
func (r *SQLRepository) SaveStatuses(ctx context.Context, statuses []FileStatus) error {
	for start := 0; start < len(statuses); start += saveBatchSize {
		end := min(start+saveBatchSize, len(statuses))

		q := r.builder.Insert("file_status").
			Columns("path", "status", "local_hash", "remote_hash", "updated_at").
			Suffix("ON CONFLICT(path) DO UPDATE SET " +
				"status = excluded.status, " +
				"local_hash = excluded.local_hash, " +
				"remote_hash = excluded.remote_hash, " +
				"updated_at = excluded.updated_at")

		for _, st := range statuses[start:end] {
			updatedAt := st.UpdatedAt
			if updatedAt.IsZero() {
				updatedAt = time.Now()
			}
			q = q.Values(st.Path, int64(st.Status), st.LocalHash, st.RemoteHash, updatedAt)
		}

		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("building save statuses query: %w", err)
		}

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("executing save statuses query: %w", err)
		}
	}

	r.logger.Debug("Saved file statuses", "count", len(statuses))
	return nil
}

// ListStatuses returns stored statuses carrying a flag in mask, ordered by path
func (r *SQLRepository) ListStatuses(ctx context.Context, mask Status, limit int) ([]FileStatus, error) {
	q := r.builder.Select("path", "status", "local_hash", "remote_hash", "updated_at").
		From("file_status").
		OrderBy("path ASC")

	if mask != StatusNone {
		q = q.Where(sq.Expr("(status & ?) != 0", int64(mask)))
	}

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list statuses query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing list statuses query: %w", err)
	}
	defer rows.Close()

	var statuses []FileStatus
	for rows.Next() {
		var st FileStatus
		var status int64
		if err := rows.Scan(&st.Path, &status, &st.LocalHash, &st.RemoteHash, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning file status row: %w", err)
		}
		st.Status = Status(status)
		statuses = append(statuses, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file status rows: %w", err)
	}

	return statuses, nil
}

// GetHave returns the recorded blob hash for path
func (r *SQLRepository) GetHave(ctx context.Context, path string) (string, bool, error) {
	query, args, err := r.builder.Select("blob_hash").
		From("have_files").
		Where(sq.Eq{"path": path}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("building get have query: %w", err)
	}

	var hash string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("executing get have query: %w", err)
	}

	return hash, true, nil
}

// SetHave records hash as the synced blob of path
func (r *SQLRepository) SetHave(ctx context.Context, path, hash string) error {
	query, args, err := r.builder.Insert("have_files").
		Columns("path", "blob_hash", "synced_at").
		Values(path, hash, time.Now()).
		Suffix("ON CONFLICT(path) DO UPDATE SET blob_hash = excluded.blob_hash, synced_at = excluded.synced_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building set have query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing set have query: %w", err)
	}

	return nil
}

// ListHave returns recorded paths starting with prefix in path order
func (r *SQLRepository) ListHave(ctx context.Context, prefix string) ([]string, error) {
	q := r.builder.Select("path").
		From("have_files").
		OrderBy("path ASC")

	if prefix != "" {
		q = q.Where(sq.Expr("path LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%"))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list have query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing list have query: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scanning have row: %w", err)
		}
		// LIKE ignores ASCII case in SQLite
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating have rows: %w", err)
	}

	return paths, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
