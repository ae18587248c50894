package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"listingcheck/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// Key design point vs Postgres: SQLite has no native TIMESTAMPTZ type, and
// modernc.org/sqlite stores time values with TEXT affinity unless you
// intentionally store INTEGER/REAL. Timestamps are therefore stored as
// RFC3339Nano strings for reliable round-trip behavior and easy debugging.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureSchema creates the report tables if they do not exist, keeping
// startup idempotent.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS extraction_reports (
			id INTEGER PRIMARY KEY,
			page_url TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			field_count INTEGER NOT NULL,
			failed_count INTEGER NOT NULL,
			skipped_count INTEGER NOT NULL,
			UNIQUE (page_url, fetched_at)
		)`,
		`CREATE TABLE IF NOT EXISTS extraction_fields (
			report_id INTEGER NOT NULL REFERENCES extraction_reports(id),
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			strategy INTEGER NOT NULL,
			payload TEXT NOT NULL,
			skipped INTEGER NOT NULL,
			PRIMARY KEY (report_id, position)
		)`,
	}
	for _, q := range stmts {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveReport inserts the report header and field rows in one transaction.
//
// "INSERT OR IGNORE" relies on the (page_url, fetched_at) UNIQUE constraint:
// when the header already exists, zero rows are affected and the field
// inserts are skipped, making re-saves a no-op.
func (r *Repo) SaveReport(ctx context.Context, rec storage.ReportRecord) error {
	rows, err := storage.FieldRows(rec.Report)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO extraction_reports
			(page_url, fetched_at, field_count, failed_count, skipped_count)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.PageURL,
		rec.FetchedAt.UTC().Format(time.RFC3339Nano),
		rec.Report.Len(),
		rec.Report.FailedCount(),
		rec.Report.SkippedCount(),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Duplicate (page_url, fetched_at): nothing to do.
		return tx.Commit()
	}
	reportID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO extraction_fields
				(report_id, position, name, status, strategy, payload, skipped)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			reportID, row.Position, row.Name, row.Status, row.Strategy, row.Payload, row.Skipped,
		); err != nil {
			return fmt.Errorf("insert field %s: %w", row.Name, err)
		}
	}

	return tx.Commit()
}
