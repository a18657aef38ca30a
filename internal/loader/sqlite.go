package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver

	"github.com/ignite/snowplow-loadgen/internal/ddl"
	"github.com/ignite/snowplow-loadgen/internal/events"
	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
)

// SQLiteTarget inserts rows in batched transactions into a local database
// file. It has no schemas, so derived schema drops are skipped.
type SQLiteTarget struct {
	db        *sql.DB
	ddl       *ddl.Renderer
	table     string
	batchSize int
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// One writer; extra connections only contend for the file lock.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	return db, nil
}

// NewSQLiteTarget loads into table on db, committing every batchSize rows.
func NewSQLiteTarget(db *sql.DB, table string, batchSize int) *SQLiteTarget {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &SQLiteTarget{db: db, ddl: ddl.NewRenderer(), table: table, batchSize: batchSize}
}

func (t *SQLiteTarget) Name() string { return "sqlite" }

func (t *SQLiteTarget) Prepare(ctx context.Context, fullRefresh bool) error {
	if fullRefresh {
		logger.Debug("Skipping derived schema drop", "target", "sqlite")
	}
	stmts, err := t.ddl.Statements(ddl.SQLite, "", t.table)
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

func (t *SQLiteTarget) insertSQL() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(events.Columns)), ",")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.table, strings.Join(events.Header(), ", "), placeholders)
}

// Load inserts the file's rows. A failed batch rolls back and aborts the
// load; earlier batches stay committed.
func (t *SQLiteTarget) Load(ctx context.Context, path string) (int64, error) {
	query := t.insertSQL()
	types := make([]events.ColumnType, len(events.Columns))
	for i, c := range events.Columns {
		types[i] = c.Type
	}

	var (
		tx      *sql.Tx
		stmt    *sql.Stmt
		pending int
	)
	begin := func() error {
		var err error
		if tx, err = t.db.BeginTx(ctx, nil); err != nil {
			return fmt.Errorf("failed to begin batch: %w", err)
		}
		if stmt, err = tx.PrepareContext(ctx, query); err != nil {
			tx.Rollback()
			tx = nil
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		return nil
	}
	commit := func() error {
		stmt.Close()
		err := tx.Commit()
		tx, stmt, pending = nil, nil, 0
		if err != nil {
			return fmt.Errorf("failed to commit batch: %w", err)
		}
		return nil
	}
	abort := func() {
		if tx != nil {
			stmt.Close()
			tx.Rollback()
			tx = nil
		}
	}

	args := make([]any, len(events.Columns))
	n, err := readRecords(path, func(rec []string) error {
		if tx == nil {
			if err := begin(); err != nil {
				return err
			}
		}
		for i, v := range rec {
			args[i] = sqliteValue(types[i], v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
		pending++
		if pending >= t.batchSize {
			return commit()
		}
		return nil
	})
	if err != nil {
		abort()
		return 0, err
	}
	if tx != nil {
		if err := commit(); err != nil {
			return 0, err
		}
	}
	logger.Info("Inserted rows into sqlite", "table", t.table, "rows", n)
	return n, nil
}

// sqliteValue maps empty fields to NULL and TRUE/FALSE to 1/0.
func sqliteValue(t events.ColumnType, v string) any {
	if v == "" {
		return nil
	}
	if t == events.TypeBool {
		if strings.EqualFold(v, "TRUE") {
			return 1
		}
		return 0
	}
	return v
}

func (t *SQLiteTarget) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.table, err)
	}
	return n, nil
}

func (t *SQLiteTarget) Sample(ctx context.Context, n int) ([]SampleRow, error) {
	q := fmt.Sprintf("SELECT event_id, event, user_id, collector_tstamp, page_url FROM %s ORDER BY rowid LIMIT %d", t.table, n)
	return querySample(ctx, t.db, q)
}

func (t *SQLiteTarget) Finish(context.Context) error { return nil }

func (t *SQLiteTarget) Close() error { return t.db.Close() }
