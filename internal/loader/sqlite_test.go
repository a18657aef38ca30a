package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/snowplow-loadgen/internal/events"
)

// generate writes the three event files for rows per day into a temp dir.
func generate(t *testing.T, rows int64) string {
	t.Helper()
	dir := t.TempDir()
	_, err := events.Run(events.RunConfig{
		OutDir:             dir,
		Seed:               7,
		Target:             events.Target{Rows: rows},
		Yesterday:          time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		Today:              time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
		YesterdayMobilePct: 66,
		TodayMobilePct:     50,
		BotShare:           0.01,
		Probabilities:      events.DefaultProbabilities,
		SampleRows:         50,
		BatchSize:          32,
	})
	require.NoError(t, err)
	return dir
}

func openTestSQLite(t *testing.T) *SQLiteTarget {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	target := NewSQLiteTarget(db, "events", 25)
	t.Cleanup(func() { target.Close() })
	return target
}

func TestSQLite_YesterdayThenCombined(t *testing.T) {
	ctx := context.Background()
	dir := generate(t, 120)
	target := openTestSQLite(t)
	l := New(target, nil, Options{DataDir: dir, SampleRows: 3})

	res, err := l.Run(ctx, ModeYesterday)
	require.NoError(t, err)
	assert.Equal(t, int64(120), res.RowsLoaded)
	assert.Equal(t, int64(120), res.TotalRows)
	require.Len(t, res.Sample, 3)
	assert.Equal(t, "page_view", res.Sample[0].Event, "sessions open with a page view")
	assert.NotEmpty(t, res.Sample[0].EventID)

	res, err = l.Run(ctx, ModeCombined)
	require.NoError(t, err)
	assert.Equal(t, int64(240), res.RowsLoaded)
	assert.Equal(t, int64(240), res.TotalRows, "the table is replaced, not appended to")

	var distinct int64
	require.NoError(t, target.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT event_id) FROM events").Scan(&distinct))
	assert.Equal(t, int64(240), distinct)
}

func TestSQLite_TypedColumns(t *testing.T) {
	ctx := context.Background()
	dir := generate(t, 40)
	target := openTestSQLite(t)
	require.NoError(t, target.Prepare(ctx, true))
	_, err := target.Load(ctx, filepath.Join(dir, events.YesterdayFile))
	require.NoError(t, err)

	var bad int64
	require.NoError(t, target.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE br_cookies IS NOT NULL AND br_cookies NOT IN (0, 1)").Scan(&bad))
	assert.Zero(t, bad, "booleans are stored as 0/1")

	var nulls int64
	require.NoError(t, target.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE txn_id IS NULL").Scan(&nulls))
	assert.Equal(t, int64(40), nulls, "empty fields load as NULL")

	var views int64
	require.NoError(t, target.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE event = 'page_view' AND json_extract(contexts_com_snowplowanalytics_snowplow_web_page_1, '$[0].id') IS NOT NULL").Scan(&views))
	assert.Positive(t, views, "web page context is valid JSON")
}

func TestSQLite_HeaderMismatch(t *testing.T) {
	ctx := context.Background()
	target := openTestSQLite(t)
	require.NoError(t, target.Prepare(ctx, false))

	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n1,2,3\n"), 0644))

	_, err := target.Load(ctx, path)
	assert.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestSQLiteValue(t *testing.T) {
	assert.Nil(t, sqliteValue(events.TypeText, ""))
	assert.Equal(t, 1, sqliteValue(events.TypeBool, "TRUE"))
	assert.Equal(t, 0, sqliteValue(events.TypeBool, "FALSE"))
	assert.Equal(t, "42", sqliteValue(events.TypeInt, "42"))
}
