package events

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunConfig(dir string, target Target) RunConfig {
	return RunConfig{
		OutDir:             dir,
		Seed:               20251101,
		Target:             target,
		Yesterday:          time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		Today:              time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
		YesterdayMobilePct: 66,
		TodayMobilePct:     50,
		BotShare:           0.01,
		Probabilities:      DefaultProbabilities,
		SampleRows:         200,
		BatchSize:          64,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestTarget_Validate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr error
	}{
		{"rows", Target{Rows: 100}, nil},
		{"gb", Target{GB: 0.1}, nil},
		{"both", Target{GB: 1, Rows: 10}, ErrConflictingTarget},
		{"neither", Target{}, ErrNoTarget},
		{"negative rows", Target{Rows: -5}, ErrNoTarget},
		{"negative gb", Target{GB: -0.5}, ErrNoTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, ExactRows, Target{Rows: 1}.Policy())
	assert.Equal(t, CompleteSessions, Target{GB: 1}.Policy())
}

func TestRun_RowsExact(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(testRunConfig(dir, Target{Rows: 100}))
	require.NoError(t, err)

	assert.Equal(t, int64(100), res.Yesterday.Rows)
	assert.Equal(t, int64(100), res.Today.Rows)
	assert.Equal(t, int64(200), res.Combined.Rows)

	rows := readCSV(t, filepath.Join(dir, YesterdayFile))
	require.Len(t, rows, 101)
	assert.Equal(t, Header(), rows[0])

	eventCol := ColumnIndex("event")
	for _, row := range rows[1:] {
		assert.Contains(t, []string{"page_view", "page_ping", "unstruct"}, row[eventCol])
	}

	info, err := os.Stat(filepath.Join(dir, CombinedFile))
	require.NoError(t, err)
	assert.Equal(t, res.Combined.Bytes, info.Size())
}

func TestRun_CombinedStartsWithYesterday(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(testRunConfig(dir, Target{Rows: 750}))
	require.NoError(t, err)

	yday, err := os.ReadFile(filepath.Join(dir, YesterdayFile))
	require.NoError(t, err)
	today, err := os.ReadFile(filepath.Join(dir, TodayFile))
	require.NoError(t, err)
	combined, err := os.ReadFile(filepath.Join(dir, CombinedFile))
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(combined, yday))
	todayBody := today[bytes.IndexByte(today, '\n')+1:]
	assert.Equal(t, todayBody, combined[len(yday):])
}

func TestRun_Deterministic(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	_, err := Run(testRunConfig(a, Target{Rows: 300}))
	require.NoError(t, err)
	_, err = Run(testRunConfig(b, Target{Rows: 300}))
	require.NoError(t, err)

	for _, name := range []string{YesterdayFile, TodayFile, CombinedFile} {
		x, err := os.ReadFile(filepath.Join(a, name))
		require.NoError(t, err)
		y, err := os.ReadFile(filepath.Join(b, name))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(x, y), name)
	}
}

func TestRun_DaysDiffer(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(testRunConfig(dir, Target{Rows: 50}))
	require.NoError(t, err)

	ts := ColumnIndex("collector_tstamp")
	for _, row := range readCSV(t, filepath.Join(dir, YesterdayFile))[1:] {
		assert.Contains(t, row[ts], "2025-11-01")
	}
	for _, row := range readCSV(t, filepath.Join(dir, TodayFile))[1:] {
		assert.Contains(t, row[ts], "2025-11-02")
	}
}

func TestRun_InvalidTarget(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(testRunConfig(dir, Target{GB: 1, Rows: 1}))
	assert.ErrorIs(t, err, ErrConflictingTarget)

	_, statErr := os.Stat(filepath.Join(dir, YesterdayFile))
	assert.True(t, os.IsNotExist(statErr), "nothing is written before validation")
}

func assertWithinTolerance(t *testing.T, gb float64, size int64) {
	t.Helper()
	want := float64(GBToBytes(gb))
	assert.GreaterOrEqual(t, float64(size), want*0.8)
	assert.LessOrEqual(t, float64(size), want*1.2)
}

func TestRun_SizeTarget(t *testing.T) {
	dir := t.TempDir()
	cfg := testRunConfig(dir, Target{GB: 0.004})
	cfg.SampleRows = DefaultSampleRows
	res, err := Run(cfg)
	require.NoError(t, err)

	assertWithinTolerance(t, 0.004, res.Yesterday.Bytes)
	assertWithinTolerance(t, 0.004, res.Today.Bytes)
	assert.Equal(t, res.Yesterday.Bytes+res.Today.Bytes, res.Combined.Bytes+headerBytes(t))
}

func headerBytes(t *testing.T) int64 {
	t.Helper()
	var buf bytes.Buffer
	w := NewBatchWriter(&buf, WriterOptions{})
	require.NoError(t, w.WriteHeader())
	return w.Bytes()
}

func TestRun_TenthOfAGigabyte(t *testing.T) {
	if testing.Short() {
		t.Skip("writes about 300 MB")
	}
	dir := t.TempDir()
	cfg := testRunConfig(dir, Target{GB: 0.1})
	cfg.SampleRows = DefaultSampleRows
	cfg.BatchSize = DefaultBatchSize
	res, err := Run(cfg)
	require.NoError(t, err)

	info, err := os.Stat(res.Yesterday.Path)
	require.NoError(t, err)
	assertWithinTolerance(t, 0.1, info.Size())
}
