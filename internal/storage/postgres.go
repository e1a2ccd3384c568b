// Package storage persists extraction results to PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
)

// Document statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Record is one processed document.
type Record struct {
	ID       string
	JobID    string
	Filename string
	Result   *extract.Result
	Err      error
	Duration time.Duration
}

// Config configures the connection pool.
type Config struct {
	DatabaseURL     string        `json:"database_url" yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// Enabled reports whether a database is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.DatabaseURL) != "" }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id            UUID PRIMARY KEY,
		job_id        TEXT NOT NULL DEFAULT '',
		filename      TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		path          TEXT NOT NULL DEFAULT '',
		pages         INTEGER NOT NULL DEFAULT 0,
		full_text     TEXT NOT NULL DEFAULT '',
		page_texts    TEXT[] NOT NULL DEFAULT '{}',
		error_code    TEXT,
		error_message TEXT,
		duration_ms   BIGINT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS statement_rows (
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		row_index   INTEGER NOT NULL,
		cells       TEXT[] NOT NULL,
		PRIMARY KEY (document_id, row_index)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_job_id_idx ON documents (job_id)`,
}

// PostgresStore writes documents and their structured rows.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings the database.
func NewPostgresStore(ctx context.Context, config Config) (*PostgresStore, error) {
	if !config.Enabled() {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Save upserts a document and replaces its structured rows.
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("document ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	d := documentRow(rec)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (
			id, job_id, filename, status, path, pages, full_text, page_texts,
			error_code, error_message, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
		ON CONFLICT (id) DO UPDATE SET
			status        = EXCLUDED.status,
			path          = EXCLUDED.path,
			pages         = EXCLUDED.pages,
			full_text     = EXCLUDED.full_text,
			page_texts    = EXCLUDED.page_texts,
			error_code    = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			duration_ms   = EXCLUDED.duration_ms,
			updated_at    = NOW()`,
		rec.ID, rec.JobID, sanitize(rec.Filename), d.status, d.path, d.pages,
		d.fullText, pq.Array(d.pageTexts), d.errorCode, d.errorMessage, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", rec.ID, describe(err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM statement_rows WHERE document_id = $1`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear rows of %s: %w", rec.ID, describe(err))
	}

	rows := cellsForInsert(rec.Result)
	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO statement_rows (document_id, row_index, cells) VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("failed to prepare row insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, cells := range rows {
			if _, err := stmt.ExecContext(ctx, rec.ID, i, pq.Array(cells)); err != nil {
				return fmt.Errorf("failed to save row %d of %s: %w", i, rec.ID, describe(err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document %s: %w", rec.ID, err)
	}
	return nil
}

// Rows returns the structured rows of a document in order.
func (s *PostgresStore) Rows(ctx context.Context, documentID string) ([]table.StructuredRow, error) {
	rs, err := s.db.QueryContext(ctx,
		`SELECT cells FROM statement_rows WHERE document_id = $1 ORDER BY row_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", describe(err))
	}
	defer func() { _ = rs.Close() }()

	var out []table.StructuredRow
	for rs.Next() {
		var cells pq.StringArray
		if err := rs.Scan(&cells); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, table.StructuredRow(cells))
	}
	return out, rs.Err()
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type docRow struct {
	status       string
	path         string
	pages        int
	fullText     string
	pageTexts    []string
	errorCode    string
	errorMessage string
}

func documentRow(rec Record) docRow {
	d := docRow{status: StatusCompleted, pageTexts: []string{}}
	if rec.Err != nil {
		d.status = StatusFailed
		d.errorCode = extract.Code(rec.Err)
		d.errorMessage = sanitize(rec.Err.Error())
	}
	if rec.Result != nil {
		d.path = string(rec.Result.Path)
		d.pages = rec.Result.Pages
		d.fullText = sanitize(rec.Result.FullText)
		d.pageTexts = make([]string, len(rec.Result.PageTexts))
		for i, t := range rec.Result.PageTexts {
			d.pageTexts[i] = sanitize(t)
		}
	}
	return d
}

func cellsForInsert(res *extract.Result) [][]string {
	if res == nil {
		return nil
	}
	out := make([][]string, len(res.StructuredRows))
	for i, row := range res.StructuredRows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = sanitize(c)
		}
		out[i] = cells
	}
	return out
}

// sanitize removes NUL bytes, which PostgreSQL text columns reject. PDF text
// layers occasionally contain them.
func sanitize(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

// describe adds the PostgreSQL error code and detail to driver errors.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w (code %s: %s)", err, pqErr.Code, pqErr.Code.Name())
	}
	return err
}
