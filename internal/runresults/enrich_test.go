package runresults

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/snowplow-loadgen/internal/snowflake"
)

type mapCounter map[string]int64

func (m mapCounter) CountTable(_ context.Context, relation string) (int64, error) {
	if n, ok := m[relation]; ok {
		return n, nil
	}
	return 0, errors.New("table does not exist")
}

const manifestJSON = `{
  "metadata": {"dbt_version": "1.8.0"},
  "nodes": {
    "model.snowplow_web.snowplow_web_page_views": {
      "name": "snowplow_web_page_views", "alias": "snowplow_web_page_views",
      "schema": "PUBLIC_DERIVED", "database": "SNOWPLOW"
    },
    "model.snowplow_web.snowplow_web_sessions_this_run": {
      "name": "snowplow_web_sessions_this_run",
      "schema": "PUBLIC_SCRATCH", "database": "SNOWPLOW"
    },
    "model.snowplow_web.snowplow_web_users": {
      "name": "snowplow_web_users", "alias": "users_v2",
      "schema": "PUBLIC_DERIVED", "database": "SNOWPLOW"
    }
  }
}`

const runResultsJSON = `{
  "metadata": {"generated_at": "2025-11-02T10:00:00Z"},
  "elapsed_time": 12.5,
  "results": [
    {"unique_id": "model.snowplow_web.snowplow_web_page_views", "status": "success", "adapter_response": {"rows_affected": 1}},
    {"unique_id": "model.snowplow_web.snowplow_web_sessions_this_run", "status": "success"},
    {"unique_id": "model.snowplow_web.snowplow_web_users", "status": "success"},
    {"unique_id": "model.snowplow_web.not_in_manifest", "status": "success"},
    {"unique_id": "test.snowplow_web.unique_page_view_id", "status": "pass"}
  ]
}`

func writeFixtures(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	m := filepath.Join(dir, "manifest.json")
	r := filepath.Join(dir, "run_results.json")
	require.NoError(t, os.WriteFile(m, []byte(manifestJSON), 0644))
	require.NoError(t, os.WriteFile(r, []byte(runResultsJSON), 0644))
	return m, r
}

func TestEnrichFiles(t *testing.T) {
	manifest, results := writeFixtures(t)
	out := filepath.Join(t.TempDir(), "run_results_enriched.json")
	counter := mapCounter{
		"DB.PUBLIC_DERIVED.snowplow_web_page_views":        1500,
		"DB.PUBLIC_SCRATCH.snowplow_web_sessions_this_run": 120,
	}

	sum, err := EnrichFiles(context.Background(), counter, "DB", manifest, results, out)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Enriched)
	assert.Equal(t, 1, sum.Skipped, "users_v2 count fails and is skipped")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, 12.5, got["elapsed_time"], "unknown fields survive")
	rs := got["results"].([]any)
	require.Len(t, rs, 5)
	first := rs[0].(map[string]any)
	assert.Equal(t, float64(1500), first["actual_row_count"])
	assert.Equal(t, map[string]any{"rows_affected": float64(1)}, first["adapter_response"])
	assert.Equal(t, float64(120), rs[1].(map[string]any)["actual_row_count"])
	for _, i := range []int{2, 3, 4} {
		assert.NotContains(t, rs[i].(map[string]any), "actual_row_count")
	}
}

func TestEnrich_UsesAlias(t *testing.T) {
	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(manifestJSON), &m))
	var r map[string]any
	require.NoError(t, json.Unmarshal([]byte(runResultsJSON), &r))

	sum, err := Enrich(context.Background(), mapCounter{"DB.PUBLIC_DERIVED.users_v2": 7}, "DB", m, r)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"model.snowplow_web.snowplow_web_users": 7}, sum.Counts)
}

func TestEnrich_NoResults(t *testing.T) {
	_, err := Enrich(context.Background(), mapCounter{}, "DB", Manifest{}, map[string]any{})
	assert.Error(t, err)
}

func TestEnrichFiles_MissingInput(t *testing.T) {
	_, results := writeFixtures(t)
	_, err := EnrichFiles(context.Background(), mapCounter{}, "DB", filepath.Join(t.TempDir(), "nope.json"), results, filepath.Join(t.TempDir(), "out.json"))
	assert.Error(t, err)
}

func TestEnrich_WithSnowflakeClient(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	client := snowflake.NewClientFromDB(db, snowflake.Config{Database: "SNOWPLOW"})

	mock.ExpectQuery("SELECT COUNT(*) FROM SNOWPLOW.PUBLIC_DERIVED.snowplow_web_page_views").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(99)))
	mock.ExpectQuery("SELECT COUNT(*) FROM SNOWPLOW.PUBLIC_SCRATCH.snowplow_web_sessions_this_run").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery("SELECT COUNT(*) FROM SNOWPLOW.PUBLIC_DERIVED.users_v2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))

	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(manifestJSON), &m))
	var r map[string]any
	require.NoError(t, json.Unmarshal([]byte(runResultsJSON), &r))

	sum, err := Enrich(context.Background(), client, "SNOWPLOW", m, r)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Enriched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectProvider(t *testing.T) {
	env := func(vars ...string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			for _, v := range vars {
				if v == k {
					return "x", true
				}
			}
			return "", false
		}
	}

	p, err := DetectProvider(env("EMBUCKET_DATABASE"))
	require.NoError(t, err)
	assert.Equal(t, ProviderEmbucket, p)

	p, err = DetectProvider(env("SNOWFLAKE_DATABASE"))
	require.NoError(t, err)
	assert.Equal(t, ProviderSnowflake, p)

	_, err = DetectProvider(env("SNOWFLAKE_DATABASE", "EMBUCKET_DATABASE"))
	assert.ErrorIs(t, err, ErrUnknownProvider)
	_, err = DetectProvider(env())
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestValidateProvider(t *testing.T) {
	assert.NoError(t, ValidateProvider("snowflake"))
	assert.NoError(t, ValidateProvider("embucket"))
	assert.Error(t, ValidateProvider("bigquery"))
}
