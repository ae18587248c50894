package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"listingcheck/internal/storage"
)

// Repo implements storage.Repository for PostgreSQL using a pgx pool.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS extraction_reports (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			page_url TEXT NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL,
			field_count INT NOT NULL,
			failed_count INT NOT NULL,
			skipped_count INT NOT NULL,
			UNIQUE (page_url, fetched_at)
		)`,
		`CREATE TABLE IF NOT EXISTS extraction_fields (
			report_id BIGINT NOT NULL REFERENCES extraction_reports(id),
			position INT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			strategy INT NOT NULL,
			payload JSONB NOT NULL,
			skipped INT NOT NULL,
			PRIMARY KEY (report_id, position)
		)`,
	}
	for _, q := range stmts {
		if _, err := r.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveReport inserts the header with ON CONFLICT DO NOTHING and reads the new
// id back via RETURNING. pgx.ErrNoRows from the RETURNING scan means the
// (page_url, fetched_at) pair already exists, so the save is a no-op.
func (r *Repo) SaveReport(ctx context.Context, rec storage.ReportRecord) error {
	rows, err := storage.FieldRows(rec.Report)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var reportID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO extraction_reports
			(page_url, fetched_at, field_count, failed_count, skipped_count)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (page_url, fetched_at) DO NOTHING
		 RETURNING id`,
		rec.PageURL,
		rec.FetchedAt.UTC(),
		rec.Report.Len(),
		rec.Report.FailedCount(),
		rec.Report.SkippedCount(),
	).Scan(&reportID)
	if errors.Is(err, pgx.ErrNoRows) {
		return tx.Commit(ctx)
	}
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for _, row := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO extraction_fields
				(report_id, position, name, status, strategy, payload, skipped)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			reportID, row.Position, row.Name, row.Status, row.Strategy, row.Payload, row.Skipped,
		); err != nil {
			return fmt.Errorf("insert field %s: %w", row.Name, err)
		}
	}

	return tx.Commit(ctx)
}
