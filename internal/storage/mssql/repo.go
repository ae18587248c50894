package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"listingcheck/internal/storage"
)

// Repo implements storage.Repository for SQL Server.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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

// EnsureSchema uses the IF NOT EXISTS object check because SQL Server has no
// CREATE TABLE IF NOT EXISTS.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`IF OBJECT_ID('extraction_reports', 'U') IS NULL
		 CREATE TABLE extraction_reports (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			page_url NVARCHAR(2048) NOT NULL,
			fetched_at DATETIMEOFFSET NOT NULL,
			field_count INT NOT NULL,
			failed_count INT NOT NULL,
			skipped_count INT NOT NULL,
			CONSTRAINT uq_extraction_reports UNIQUE (page_url, fetched_at)
		 )`,
		`IF OBJECT_ID('extraction_fields', 'U') IS NULL
		 CREATE TABLE extraction_fields (
			report_id BIGINT NOT NULL REFERENCES extraction_reports(id),
			position INT NOT NULL,
			name NVARCHAR(256) NOT NULL,
			status NVARCHAR(32) NOT NULL,
			strategy INT NOT NULL,
			payload NVARCHAR(MAX) NOT NULL,
			skipped INT NOT NULL,
			CONSTRAINT pk_extraction_fields PRIMARY KEY (report_id, position)
		 )`,
	}
	for _, q := range stmts {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveReport guards the header insert with NOT EXISTS instead of relying on
// the unique constraint, so duplicates commit cleanly without raising a
// constraint violation. sql.ErrNoRows from the OUTPUT scan means the row
// already existed.
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

	var reportID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO extraction_reports
			(page_url, fetched_at, field_count, failed_count, skipped_count)
		 OUTPUT INSERTED.id
		 SELECT @p1, @p2, @p3, @p4, @p5
		 WHERE NOT EXISTS (
			SELECT 1 FROM extraction_reports
			WHERE page_url = @p1 AND fetched_at = @p2
		 )`,
		rec.PageURL,
		rec.FetchedAt.UTC(),
		rec.Report.Len(),
		rec.Report.FailedCount(),
		rec.Report.SkippedCount(),
	).Scan(&reportID)
	if errors.Is(err, sql.ErrNoRows) {
		return tx.Commit()
	}
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO extraction_fields
				(report_id, position, name, status, strategy, payload, skipped)
			 VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7)`,
			reportID, row.Position, row.Name, row.Status, row.Strategy, row.Payload, row.Skipped,
		); err != nil {
			return fmt.Errorf("insert field %s: %w", row.Name, err)
		}
	}

	return tx.Commit()
}
