package snowflake

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/snowflakedb/gosnowflake"
)

// Config holds Snowflake (or Snowflake-wire compatible) connection settings.
// Host, Port and Protocol are only needed for endpoints other than
// <account>.snowflakecomputing.com, such as a local Embucket.
type Config struct {
	Account   string
	User      string
	Password  string
	Role      string
	Database  string
	Schema    string
	Warehouse string
	Host      string
	Port      int
	Protocol  string
}

// DSN renders the driver connection string.
func (c Config) DSN() (string, error) {
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Role:      c.Role,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
		Host:      c.Host,
		Port:      c.Port,
		Protocol:  c.Protocol,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build snowflake dsn: %w", err)
	}
	return dsn, nil
}

// ExternalSource points a stage at an S3 prefix. A nil source creates an
// internal stage that files are PUT into.
type ExternalSource struct {
	URL       string
	KeyID     string
	SecretKey string
}

// CopyResult is one row of COPY INTO output, one per staged file.
type CopyResult struct {
	File       string
	Status     string
	RowsParsed int64
	RowsLoaded int64
	ErrorsSeen int64
	FirstError string
}

// SampleRow is a handful of identifying columns used to eyeball a load.
type SampleRow struct {
	EventID         sql.NullString
	Event           sql.NullString
	UserID          sql.NullString
	CollectorTstamp sql.NullString
	PageURL         sql.NullString
}

// qualify joins identifier parts with dots, skipping empty ones. Names are
// left unquoted so Snowflake upper-cases them like the rest of the project.
func qualify(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}

// quoteLiteral renders s as a single-quoted SQL string.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
