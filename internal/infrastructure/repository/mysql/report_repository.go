package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/infrastructure/repository/reportrow"
)

// ReportRepository is the MySQL document store. Ids come from an
// AUTO_INCREMENT column and are returned as decimal strings.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// OpenDB forces parseTime and UTC so DATETIME columns scan into time.Time.
func OpenDB(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
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
	return "`" + collection + "`", nil
}

func (r *ReportRepository) EnsureSchema(ctx context.Context, collection string) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	user_id VARCHAR(255) NOT NULL,
	file_url TEXT NOT NULL,
	file_name VARCHAR(1024) NOT NULL,
	mime_type VARCHAR(255) NOT NULL DEFAULT '',
	page_count INT NOT NULL DEFAULT 0,
	status VARCHAR(32) NOT NULL DEFAULT 'ok',
	score INT NOT NULL DEFAULT 0,
	summary TEXT NOT NULL,
	vitals JSON NOT NULL,
	recommendations JSON NOT NULL,
	created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
	INDEX idx_user_created (user_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
`, table)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
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

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	user_id, file_url, file_name, mime_type, page_count, status, score, summary, vitals, recommendations
) VALUES (?,?,?,?,?,?,?,?,?,?)
`, table),
		record.UserID, record.FileURL, record.FileName, record.MimeType, record.PageCount,
		string(record.Status), record.Score, record.Summary, string(enc.Vitals), string(enc.Recommendations),
	)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read insert id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
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
	fmt.Fprintf(&sb, "SELECT %s\nFROM %s\nWHERE user_id = ?\n", reportrow.Columns, table)
	sb.WriteString("ORDER BY created_at DESC, id DESC")
	args := []any{q.UserID}
	if q.Limit > 0 {
		sb.WriteString("\nLIMIT ?")
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
