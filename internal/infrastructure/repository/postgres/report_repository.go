package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/infrastructure/repository/reportrow"
)

// ReportRepository stores report records, one table per collection. Ids and
// timestamps are assigned by the database.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func tableName(collection string) (string, error) {
	if err := reportrow.ValidateCollection(collection); err != nil {
		return "", err
	}
	return pgx.Identifier{collection}.Sanitize(), nil
}

func (r *ReportRepository) EnsureSchema(ctx context.Context, collection string) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	index := pgx.Identifier{"idx_" + collection + "_user_created"}.Sanitize()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id TEXT NOT NULL,
	file_url TEXT NOT NULL,
	file_name TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	page_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'ok',
	score INTEGER NOT NULL DEFAULT 0,
	summary TEXT NOT NULL DEFAULT '',
	vitals JSONB NOT NULL DEFAULT '{}'::jsonb,
	recommendations JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s(user_id, created_at DESC);
`, table, index)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) Insert(ctx context.Context, collection string, record domain.ReportRecord) (string, error) {
	table, err := tableName(collection)
	if err != nil {
		return "", err
	}
	enc, err := reportrow.Encode(record)
	if err != nil {
		return "", err
	}

	var id string
	err = r.db.QueryRowContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	user_id, file_url, file_name, mime_type, page_count, status, score, summary, vitals, recommendations
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id
`, table),
		record.UserID, record.FileURL, record.FileName, record.MimeType, record.PageCount,
		string(record.Status), record.Score, record.Summary, enc.Vitals, enc.Recommendations,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

func (r *ReportRepository) Query(ctx context.Context, collection string, q domain.RecordQuery) ([]domain.ReportRecord, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}
	if err := reportrow.ValidateOrder(q.OrderBy); err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s\nFROM %s\nWHERE user_id = $1\n", reportrow.Columns, table)
	sb.WriteString("ORDER BY created_at DESC, id DESC")
	args := []any{q.UserID}
	if q.Limit > 0 {
		sb.WriteString("\nLIMIT $2")
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ReportRecord, 0)
	for rows.Next() {
		var row reportrow.Row
		if err := rows.Scan(row.Dest()...); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, row.Record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}
