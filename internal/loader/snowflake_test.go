package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/snowplow-loadgen/internal/ddl"
	"github.com/ignite/snowplow-loadgen/internal/events"
	"github.com/ignite/snowplow-loadgen/internal/snowflake"
)

func TestSnowflakeTarget_FullLoad(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	client := snowflake.NewClientFromDB(db, snowflake.Config{Database: "SNOWPLOW", Schema: "atomic", Warehouse: "COMPUTE_WH"})
	target := NewSnowflakeTarget(client, SnowflakeOptions{
		Table:           "events",
		Stage:           "events_stage",
		DerivedSchemas:  []string{"public_derived"},
		ManageWarehouse: true,
	})
	dir := t.TempDir()
	path := filepath.Join(dir, events.YesterdayFile)
	abs, err := filepath.Abs(path)
	require.NoError(t, err)

	ok := sqlmock.NewResult(0, 0)
	mock.ExpectExec("ALTER WAREHOUSE IF EXISTS COMPUTE_WH RESUME IF SUSPENDED").WillReturnResult(ok)
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS SNOWPLOW").WillReturnResult(ok)
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS SNOWPLOW.atomic").WillReturnResult(ok)
	mock.ExpectExec("DROP SCHEMA IF EXISTS SNOWPLOW.public_derived CASCADE").WillReturnResult(ok)
	stmts, err := ddl.NewRenderer().Statements(ddl.Snowflake, "SNOWPLOW.atomic", "events")
	require.NoError(t, err)
	for _, s := range stmts {
		mock.ExpectExec(s).WillReturnResult(ok)
	}
	mock.ExpectExec("CREATE OR REPLACE STAGE SNOWPLOW.atomic.events_stage").WillReturnResult(ok)
	mock.ExpectExec("PUT 'file://" + filepath.ToSlash(abs) + "' @SNOWPLOW.atomic.events_stage AUTO_COMPRESS = TRUE OVERWRITE = TRUE").WillReturnResult(ok)
	mock.ExpectQuery(snowflake.CopyStatement("SNOWPLOW.atomic.events", "SNOWPLOW.atomic.events_stage", events.YesterdayFile)).
		WillReturnRows(sqlmock.NewRows([]string{"file", "status", "rows_parsed", "rows_loaded", "error_limit", "errors_seen"}).
			AddRow("events_stage/events_yesterday.csv.gz", "LOADED", "500", "500", "500", "0"))
	mock.ExpectExec("REMOVE @SNOWPLOW.atomic.events_stage").WillReturnResult(ok)
	mock.ExpectExec("ALTER WAREHOUSE IF EXISTS COMPUTE_WH SUSPEND").WillReturnResult(ok)

	ctx := context.Background()
	require.NoError(t, target.Prepare(ctx, true))
	n, err := target.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(500), n)
	require.NoError(t, target.Finish(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnowflakeTarget_IncrementalSkipsDrops(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	client := snowflake.NewClientFromDB(db, snowflake.Config{Database: "DEMO", Schema: "atomic"})
	target := NewSnowflakeTarget(client, SnowflakeOptions{
		Name:           "embucket",
		Table:          "events",
		Stage:          "events_stage",
		DerivedSchemas: []string{"public_derived"},
	})
	assert.Equal(t, "embucket", target.Name())

	ok := sqlmock.NewResult(0, 0)
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS DEMO").WillReturnResult(ok)
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS DEMO.atomic").WillReturnResult(ok)
	stmts, err := ddl.NewRenderer().Statements(ddl.Snowflake, "DEMO.atomic", "events")
	require.NoError(t, err)
	for _, s := range stmts {
		mock.ExpectExec(s).WillReturnResult(ok)
	}
	mock.ExpectExec("CREATE OR REPLACE STAGE DEMO.atomic.events_stage").WillReturnResult(ok)

	require.NoError(t, target.Prepare(context.Background(), false))
	assert.NoError(t, mock.ExpectationsWereMet())
}
