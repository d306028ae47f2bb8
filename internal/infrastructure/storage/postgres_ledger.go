package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"

	"StarWatch/internal/domain"
	"StarWatch/internal/ports"
)

const ledgerTable = "starred_repos"

const ledgerSchema = `CREATE TABLE IF NOT EXISTS starred_repos (
    url TEXT PRIMARY KEY,
    local_path TEXT NOT NULL DEFAULT '',
    clonetime TEXT NOT NULL DEFAULT '',
    scantime TEXT NOT NULL DEFAULT '',
    verifytime TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL DEFAULT ''
)`

// PostgresLedger persists ledger records in Postgres. Row-level upserts give
// the same per-key serialization the CSV backend gets from its mutex.
type PostgresLedger struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.Ledger = (*PostgresLedger)(nil)

// OpenPostgresLedger connects via the pgx stdlib driver and ensures the
// ledger table exists.
func OpenPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure ledger table: %w", err)
	}

	return &PostgresLedger{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close releases the underlying pool.
func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

// Contains reports whether a record exists for url.
func (l *PostgresLedger) Contains(ctx context.Context, url string) (bool, error) {
	query, args, err := l.builder.
		Select("1").
		From(ledgerTable).
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build contains query: %w", err)
	}

	var one int
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return true, nil
}

// Upsert inserts or updates the row for url, touching only the provided
// fields on conflict.
func (l *PostgresLedger) Upsert(ctx context.Context, url string, update domain.LedgerUpdate) error {
	columns := []string{"url"}
	values := []interface{}{url}
	var conflictSet string

	appendField := func(column string, value *string) {
		if value == nil {
			return
		}
		columns = append(columns, column)
		values = append(values, *value)
		if conflictSet != "" {
			conflictSet += ", "
		}
		conflictSet += fmt.Sprintf("%s = EXCLUDED.%s", column, column)
	}
	appendField("local_path", update.LocalPath)
	appendField("clonetime", update.CloneTime)
	appendField("scantime", update.ScanTime)
	appendField("verifytime", update.VerifyTime)
	appendField("outcome", update.Outcome)

	suffix := "ON CONFLICT (url) DO NOTHING"
	if conflictSet != "" {
		suffix = "ON CONFLICT (url) DO UPDATE SET " + conflictSet
	}

	query, args, err := l.builder.
		Insert(ledgerTable).
		Columns(columns...).
		Values(values...).
		Suffix(suffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert ledger row: %w", err)
	}
	return nil
}

// Snapshot returns every record ordered by url.
func (l *PostgresLedger) Snapshot(ctx context.Context) ([]domain.LedgerRecord, error) {
	query, args, err := l.builder.
		Select("url", "local_path", "clonetime", "scantime", "verifytime", "outcome").
		From(ledgerTable).
		OrderBy("url").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build snapshot query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerRecord
	for rows.Next() {
		var rec domain.LedgerRecord
		if err := rows.Scan(&rec.URL, &rec.LocalPath, &rec.CloneTime, &rec.ScanTime, &rec.VerifyTime, &rec.Outcome); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return out, nil
}
