package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/ignite/snowplow-loadgen/internal/events"
)

// fileFormat mirrors how the generator writes CSV: one header line, quoted
// fields only where needed, and empty fields meaning NULL.
const fileFormat = `FILE_FORMAT = (
    TYPE = 'CSV'
    FIELD_DELIMITER = ','
    RECORD_DELIMITER = '\n'
    SKIP_HEADER = 1
    FIELD_OPTIONALLY_ENCLOSED_BY = '"'
    ESCAPE_UNENCLOSED_FIELD = NONE
    ERROR_ON_COLUMN_COUNT_MISMATCH = FALSE
    REPLACE_INVALID_CHARACTERS = TRUE
    DATE_FORMAT = 'AUTO'
    TIMESTAMP_FORMAT = 'AUTO'
    BINARY_FORMAT = 'HEX'
    TRIM_SPACE = TRUE
)
ON_ERROR = 'CONTINUE'`

// Client provides access to a Snowflake database
type Client struct {
	config Config
	db     *sql.DB
}

// NewClient creates a new Snowflake client
func NewClient(cfg Config) (*Client, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake connection: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewClientFromDB(db, cfg), nil
}

// NewClientFromDB wraps an already opened handle.
func NewClientFromDB(db *sql.DB, cfg Config) *Client {
	return &Client{config: cfg, db: db}
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Schema is the fully qualified schema the client loads into.
func (c *Client) Schema() string {
	return qualify(c.config.Database, c.config.Schema)
}

// Table qualifies name with the configured database and schema.
func (c *Client) Table(name string) string {
	return qualify(c.config.Database, c.config.Schema, name)
}

func (c *Client) exec(ctx context.Context, query string, what string) error {
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return nil
}

// ResumeWarehouse starts the configured warehouse. It is a no-op without one.
func (c *Client) ResumeWarehouse(ctx context.Context) error {
	if c.config.Warehouse == "" {
		return nil
	}
	q := fmt.Sprintf("ALTER WAREHOUSE IF EXISTS %s RESUME IF SUSPENDED", c.config.Warehouse)
	return c.exec(ctx, q, "resume warehouse")
}

// SuspendWarehouse stops the configured warehouse so it does not bill idle time.
func (c *Client) SuspendWarehouse(ctx context.Context) error {
	if c.config.Warehouse == "" {
		return nil
	}
	q := fmt.Sprintf("ALTER WAREHOUSE IF EXISTS %s SUSPEND", c.config.Warehouse)
	return c.exec(ctx, q, "suspend warehouse")
}

// EnsureSchema creates the configured database and schema if missing.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if err := c.exec(ctx, "CREATE DATABASE IF NOT EXISTS "+c.config.Database, "create database"); err != nil {
		return err
	}
	return c.exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+c.Schema(), "create schema")
}

// DropSchemas drops each schema in the configured database, with everything in it.
func (c *Client) DropSchemas(ctx context.Context, schemas []string) error {
	for _, s := range schemas {
		q := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", qualify(c.config.Database, s))
		if err := c.exec(ctx, q, "drop schema "+s); err != nil {
			return err
		}
	}
	return nil
}

// ExecStatements runs each statement in order and stops at the first failure.
func (c *Client) ExecStatements(ctx context.Context, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d/%d failed: %w", i+1, len(stmts), err)
		}
	}
	return nil
}

// CreateStage (re)creates a stage in the configured schema.
func (c *Client) CreateStage(ctx context.Context, name string, src *ExternalSource) error {
	q := "CREATE OR REPLACE STAGE " + c.Table(name)
	if src != nil {
		q += " URL = " + quoteLiteral(src.URL)
		if src.KeyID != "" {
			q += fmt.Sprintf(" CREDENTIALS = (AWS_KEY_ID = %s AWS_SECRET_KEY = %s)",
				quoteLiteral(src.KeyID), quoteLiteral(src.SecretKey))
		}
	}
	return c.exec(ctx, q, "create stage")
}

// Put uploads a local file to an internal stage.
func (c *Client) Put(ctx context.Context, stage, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	abs = filepath.ToSlash(abs)
	q := fmt.Sprintf("PUT 'file://%s' @%s AUTO_COMPRESS = TRUE OVERWRITE = TRUE", abs, c.Table(stage))
	return c.exec(ctx, q, "put "+filepath.Base(path))
}

// CopyInto loads the staged file into table. JSON context columns are
// parsed into VARIANT on the way in.
func (c *Client) CopyInto(ctx context.Context, table, stage, file string) ([]CopyResult, error) {
	rows, err := c.db.QueryContext(ctx, CopyStatement(c.Table(table), c.Table(stage), file))
	if err != nil {
		return nil, fmt.Errorf("failed to copy %s into %s: %w", file, table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read copy result: %w", err)
	}

	var results []CopyResult
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan copy result: %w", err)
		}
		results = append(results, parseCopyRow(vals))
	}
	return results, rows.Err()
}

// CopyStatement renders the COPY INTO for one staged file.
func CopyStatement(table, stage, file string) string {
	names := make([]string, len(events.Columns))
	exprs := make([]string, len(events.Columns))
	for i, col := range events.Columns {
		names[i] = col.Name
		exprs[i] = "$" + strconv.Itoa(i+1)
		if col.Type == events.TypeJSON {
			exprs[i] = "TRY_PARSE_JSON(" + exprs[i] + ")"
		}
	}
	return fmt.Sprintf("COPY INTO %s (%s)\nFROM (SELECT %s FROM @%s/%s)\n%s",
		table, strings.Join(names, ", "), strings.Join(exprs, ", "), stage, file, fileFormat)
}

// Columns: file, status, rows_parsed, rows_loaded, error_limit, errors_seen,
// first_error, ... A "Copy executed with 0 files processed." reply has one.
func parseCopyRow(vals []sql.NullString) CopyResult {
	at := func(i int) string {
		if i < len(vals) {
			return vals[i].String
		}
		return ""
	}
	num := func(i int) int64 {
		n, _ := strconv.ParseInt(at(i), 10, 64)
		return n
	}
	return CopyResult{
		File:       at(0),
		Status:     at(1),
		RowsParsed: num(2),
		RowsLoaded: num(3),
		ErrorsSeen: num(5),
		FirstError: at(6),
	}
}

// RemoveStaged deletes every file from the stage.
func (c *Client) RemoveStaged(ctx context.Context, stage string) error {
	return c.exec(ctx, "REMOVE @"+c.Table(stage), "clear stage")
}

// CountRows returns the row count of a table in the configured schema.
func (c *Client) CountRows(ctx context.Context, table string) (int64, error) {
	return c.CountTable(ctx, c.Table(table))
}

// CountTable returns the row count of a fully qualified table.
func (c *Client) CountTable(ctx context.Context, relation string) (int64, error) {
	var count int64
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+relation).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", relation, err)
	}
	return count, nil
}

// SampleRows returns up to n rows of identifying columns.
func (c *Client) SampleRows(ctx context.Context, table string, n int) ([]SampleRow, error) {
	q := fmt.Sprintf("SELECT event_id, event, user_id, collector_tstamp, page_url FROM %s LIMIT %d", c.Table(table), n)
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s: %w", table, err)
	}
	defer rows.Close()

	var out []SampleRow
	for rows.Next() {
		var r SampleRow
		if err := rows.Scan(&r.EventID, &r.Event, &r.UserID, &r.CollectorTstamp, &r.PageURL); err != nil {
			return nil, fmt.Errorf("failed to scan sample row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
