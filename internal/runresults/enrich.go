// Package runresults adds real table row counts to a dbt run_results.json.
//
// dbt reports rows_affected = 1 for CREATE TABLE AS statements, so the
// enriched file carries an actual_row_count per model taken from the
// warehouse after the run.
package runresults

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
)

const (
	ProviderSnowflake = "snowflake"
	ProviderEmbucket  = "embucket"
)

// ErrUnknownProvider is returned when no provider is given and the
// environment does not settle it.
var ErrUnknownProvider = errors.New("runresults: could not detect provider; pass --provider embucket or --provider snowflake")

// Counter counts rows of a fully qualified table.
type Counter interface {
	CountTable(ctx context.Context, relation string) (int64, error)
}

// Manifest is the part of dbt's manifest.json needed to locate model tables.
type Manifest struct {
	Nodes map[string]Node `json:"nodes"`
}

// Node is one manifest node.
type Node struct {
	Name     string `json:"name"`
	Alias    string `json:"alias"`
	Schema   string `json:"schema"`
	Database string `json:"database"`
}

// Relation is the table name a model materializes to.
func (n Node) Relation() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// Summary reports what Enrich did.
type Summary struct {
	Enriched int
	Skipped  int
	Counts   map[string]int64
}

// DetectProvider picks a provider from which *_DATABASE variable is set.
// lookup has the signature of os.LookupEnv.
func DetectProvider(lookup func(string) (string, bool)) (string, error) {
	_, embucket := lookup("EMBUCKET_DATABASE")
	_, snowflake := lookup("SNOWFLAKE_DATABASE")
	switch {
	case embucket && !snowflake:
		return ProviderEmbucket, nil
	case snowflake && !embucket:
		return ProviderSnowflake, nil
	default:
		return "", ErrUnknownProvider
	}
}

// ValidateProvider rejects anything but the two supported providers.
func ValidateProvider(p string) error {
	if p != ProviderSnowflake && p != ProviderEmbucket {
		return fmt.Errorf("runresults: unknown provider %q, must be embucket or snowflake", p)
	}
	return nil
}

// Enrich sets actual_row_count on every model result found in the manifest.
// Tables are counted as <database>.<schema>.<relation>. A failed count is
// logged and leaves that result untouched. Unknown fields are preserved.
func Enrich(ctx context.Context, counter Counter, database string, manifest Manifest, runResults map[string]any) (Summary, error) {
	sum := Summary{Counts: map[string]int64{}}

	results, ok := runResults["results"].([]any)
	if !ok {
		return sum, errors.New("runresults: run_results.json has no results array")
	}

	for _, item := range results {
		result, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := result["unique_id"].(string)
		if !strings.HasPrefix(id, "model.") {
			continue
		}
		node, ok := manifest.Nodes[id]
		if !ok {
			continue
		}

		relation := node.Relation()
		count, err := counter.CountTable(ctx, database+"."+node.Schema+"."+relation)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			logger.Warn("Could not get row count", "model", id, "table", node.Schema+"."+relation, "error", err)
			sum.Skipped++
			continue
		}
		result["actual_row_count"] = count
		sum.Counts[id] = count
		sum.Enriched++
		logger.Info("Counted model rows", "table", relation, "rows", count)
	}
	return sum, nil
}

// EnrichFiles reads the manifest and run results, enriches them and writes
// the result as indented JSON to outputPath.
func EnrichFiles(ctx context.Context, counter Counter, database, manifestPath, runResultsPath, outputPath string) (Summary, error) {
	var manifest Manifest
	if err := readJSON(manifestPath, &manifest); err != nil {
		return Summary{}, err
	}
	var runResults map[string]any
	if err := readJSON(runResultsPath, &runResults); err != nil {
		return Summary{}, err
	}

	sum, err := Enrich(ctx, counter, database, manifest, runResults)
	if err != nil {
		return sum, err
	}

	out, err := json.MarshalIndent(runResults, "", "  ")
	if err != nil {
		return sum, fmt.Errorf("failed to encode run results: %w", err)
	}
	if err := os.WriteFile(outputPath, append(out, '\n'), 0o644); err != nil {
		return sum, fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return sum, nil
}

// readJSON decodes path into v keeping numbers as written.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
