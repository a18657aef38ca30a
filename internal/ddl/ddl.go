// Package ddl renders the atomic events table definition for each supported
// warehouse and splits the result into executable statements.
package ddl

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/snowplow-loadgen/internal/events"
)

//go:embed templates/*.sql.liquid
var templates embed.FS

// Dialect names a SQL flavor. Embucket speaks the Snowflake dialect.
type Dialect string

const (
	Snowflake Dialect = "snowflake"
	Postgres  Dialect = "postgres"
	SQLite    Dialect = "sqlite"
)

var columnTypes = map[Dialect]map[events.ColumnType]string{
	Snowflake: {
		events.TypeText:      "VARCHAR",
		events.TypeInt:       "INTEGER",
		events.TypeFloat:     "FLOAT",
		events.TypeBool:      "BOOLEAN",
		events.TypeTimestamp: "TIMESTAMP_NTZ",
		events.TypeJSON:      "VARIANT",
	},
	Postgres: {
		events.TypeText:      "TEXT",
		events.TypeInt:       "BIGINT",
		events.TypeFloat:     "DOUBLE PRECISION",
		events.TypeBool:      "BOOLEAN",
		events.TypeTimestamp: "TIMESTAMP",
		events.TypeJSON:      "JSONB",
	},
	SQLite: {
		events.TypeText:      "TEXT",
		events.TypeInt:       "INTEGER",
		events.TypeFloat:     "REAL",
		events.TypeBool:      "INTEGER",
		events.TypeTimestamp: "TEXT",
		events.TypeJSON:      "TEXT",
	},
}

// ColumnType maps a logical column type to the dialect's SQL type.
func ColumnType(d Dialect, t events.ColumnType) (string, error) {
	types, ok := columnTypes[d]
	if !ok {
		return "", fmt.Errorf("ddl: unknown dialect %q", d)
	}
	sqlType, ok := types[t]
	if !ok {
		return "", fmt.Errorf("ddl: no %s type for %q", d, t)
	}
	return sqlType, nil
}

// Renderer renders the embedded table templates. Parsed templates are cached.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[Dialect]*liquid.Template
}

// NewRenderer creates a renderer with the coltype filter registered.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// {{ col.type | coltype: "postgres" }}
	engine.RegisterFilter("coltype", func(t string, dialect string) string {
		sqlType, err := ColumnType(Dialect(dialect), events.ColumnType(t))
		if err != nil {
			return "TEXT"
		}
		return sqlType
	})

	return &Renderer{engine: engine}
}

func (r *Renderer) template(d Dialect) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(d); ok {
		return cached.(*liquid.Template), nil
	}
	src, err := templates.ReadFile("templates/" + string(d) + ".sql.liquid")
	if err != nil {
		return nil, fmt.Errorf("ddl: unknown dialect %q", d)
	}
	tpl, err := r.engine.ParseTemplate(src)
	if err != nil {
		return nil, fmt.Errorf("ddl: parse %s template: %w", d, err)
	}
	r.cache.Store(d, tpl)
	return tpl, nil
}

// Render returns the full DDL script for the events table.
func (r *Renderer) Render(d Dialect, schema, table string) (string, error) {
	tpl, err := r.template(d)
	if err != nil {
		return "", err
	}

	cols := make([]map[string]any, len(events.Columns))
	for i, c := range events.Columns {
		cols[i] = map[string]any{"name": c.Name, "type": string(c.Type)}
	}
	out, err := tpl.RenderString(liquid.Bindings{
		"schema":  schema,
		"table":   table,
		"columns": cols,
	})
	if err != nil {
		return "", fmt.Errorf("ddl: render %s: %w", d, err)
	}
	return out, nil
}

// Statements renders the script and splits it for one-by-one execution.
func (r *Renderer) Statements(d Dialect, schema, table string) ([]string, error) {
	script, err := r.Render(d, schema, table)
	if err != nil {
		return nil, err
	}
	return Split(script), nil
}

// Split breaks a script into statements on lines ending with ';'. Blank
// lines and lines starting with "--" are dropped; the terminator is removed.
func Split(script string) []string {
	var stmts []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			stmts = append(stmts, strings.Join(cur, "\n"))
			cur = cur[:0]
		}
	}
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if strings.HasSuffix(line, ";") {
			if body := strings.TrimSpace(strings.TrimSuffix(line, ";")); body != "" {
				cur = append(cur, body)
			}
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return stmts
}
