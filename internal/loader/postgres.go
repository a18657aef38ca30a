package loader

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/snowplow-loadgen/internal/ddl"
	"github.com/ignite/snowplow-loadgen/internal/events"
	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
)

// PostgresTarget streams the file through COPY FROM STDIN.
type PostgresTarget struct {
	db      *sql.DB
	ddl     *ddl.Renderer
	schema  string
	table   string
	derived []string
}

// OpenPostgres opens a pooled connection to databaseURL.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresTarget loads into schema.table on db.
func NewPostgresTarget(db *sql.DB, schema, table string, derived []string) *PostgresTarget {
	return &PostgresTarget{db: db, ddl: ddl.NewRenderer(), schema: schema, table: table, derived: derived}
}

// DB exposes the handle so the load lock can share it.
func (t *PostgresTarget) DB() *sql.DB { return t.db }

func (t *PostgresTarget) Name() string { return "postgres" }

func (t *PostgresTarget) relation() string {
	return pq.QuoteIdentifier(t.schema) + "." + pq.QuoteIdentifier(t.table)
}

func (t *PostgresTarget) Prepare(ctx context.Context, fullRefresh bool) error {
	if fullRefresh {
		for _, s := range t.derived {
			if _, err := t.db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(s)+" CASCADE"); err != nil {
				return fmt.Errorf("failed to drop schema %s: %w", s, err)
			}
		}
	}
	stmts, err := t.ddl.Statements(ddl.Postgres, t.schema, t.table)
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d/%d failed: %w", i+1, len(stmts), err)
		}
	}
	return nil
}

// Load copies every row in one transaction. Empty fields become NULL.
func (t *PostgresTarget) Load(ctx context.Context, path string) (n int64, err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin copy: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(t.schema, t.table, events.Header()...))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy: %w", err)
	}

	args := make([]any, len(events.Columns))
	n, err = readRecords(path, func(rec []string) error {
		for i, v := range rec {
			if v == "" {
				args[i] = nil
			} else {
				args[i] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to copy row: %w", err)
		}
		return nil
	})
	if err != nil {
		stmt.Close()
		return 0, err
	}

	// An argument-less Exec flushes the buffered COPY data.
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("failed to flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close copy: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit copy: %w", err)
	}
	logger.Info("Copied rows into postgres", "table", t.schema+"."+t.table, "rows", n)
	return n, nil
}

func (t *PostgresTarget) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.relation()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.relation(), err)
	}
	return n, nil
}

func (t *PostgresTarget) Sample(ctx context.Context, n int) ([]SampleRow, error) {
	q := fmt.Sprintf("SELECT event_id, event, user_id, collector_tstamp, page_url FROM %s LIMIT %d", t.relation(), n)
	return querySample(ctx, t.db, q)
}

func (t *PostgresTarget) Finish(context.Context) error { return nil }

func (t *PostgresTarget) Close() error { return t.db.Close() }

func querySample(ctx context.Context, db *sql.DB, q string) ([]SampleRow, error) {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to sample: %w", err)
	}
	defer rows.Close()

	var out []SampleRow
	for rows.Next() {
		var id, ev, user, ts, url sql.NullString
		if err := rows.Scan(&id, &ev, &user, &ts, &url); err != nil {
			return nil, fmt.Errorf("failed to scan sample row: %w", err)
		}
		out = append(out, SampleRow{
			EventID:         id.String,
			Event:           ev.String,
			UserID:          user.String,
			CollectorTstamp: ts.String,
			PageURL:         url.String,
		})
	}
	return out, rows.Err()
}
