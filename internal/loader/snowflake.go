package loader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ignite/snowplow-loadgen/internal/ddl"
	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
	"github.com/ignite/snowplow-loadgen/internal/snowflake"
	"github.com/ignite/snowplow-loadgen/internal/stage"
)

// SnowflakeTarget loads through a stage and COPY INTO. It also serves
// Embucket, which speaks the same wire protocol but only reads from S3.
type SnowflakeTarget struct {
	name            string
	client          *snowflake.Client
	ddl             *ddl.Renderer
	table           string
	stageName       string
	derived         []string
	manageWarehouse bool

	// s3 is nil for an internal stage fed by PUT.
	s3        *stage.S3Stage
	s3KeyID   string
	s3Secret  string
	uploadKey string
}

// SnowflakeOptions configure a SnowflakeTarget.
type SnowflakeOptions struct {
	Name            string // "snowflake" or "embucket"
	Table           string
	Stage           string
	DerivedSchemas  []string
	ManageWarehouse bool
	S3              *stage.S3Stage
	S3KeyID         string
	S3Secret        string
}

// NewSnowflakeTarget wraps a client.
func NewSnowflakeTarget(client *snowflake.Client, opts SnowflakeOptions) *SnowflakeTarget {
	if opts.Name == "" {
		opts.Name = "snowflake"
	}
	return &SnowflakeTarget{
		name:            opts.Name,
		client:          client,
		ddl:             ddl.NewRenderer(),
		table:           opts.Table,
		stageName:       opts.Stage,
		derived:         opts.DerivedSchemas,
		manageWarehouse: opts.ManageWarehouse,
		s3:              opts.S3,
		s3KeyID:         opts.S3KeyID,
		s3Secret:        opts.S3Secret,
	}
}

func (t *SnowflakeTarget) Name() string { return t.name }

func (t *SnowflakeTarget) Prepare(ctx context.Context, fullRefresh bool) error {
	if t.manageWarehouse {
		if err := t.client.ResumeWarehouse(ctx); err != nil {
			return err
		}
	}
	if err := t.client.EnsureSchema(ctx); err != nil {
		return err
	}
	if fullRefresh && len(t.derived) > 0 {
		logger.Info("Dropping derived schemas", "target", t.name, "schemas", fmt.Sprint(t.derived))
		if err := t.client.DropSchemas(ctx, t.derived); err != nil {
			return err
		}
	}

	stmts, err := t.ddl.Statements(ddl.Snowflake, t.client.Schema(), t.table)
	if err != nil {
		return err
	}
	if err := t.client.ExecStatements(ctx, stmts); err != nil {
		return err
	}

	var src *snowflake.ExternalSource
	if t.s3 != nil {
		src = &snowflake.ExternalSource{URL: t.s3.URL(), KeyID: t.s3KeyID, SecretKey: t.s3Secret}
	}
	return t.client.CreateStage(ctx, t.stageName, src)
}

func (t *SnowflakeTarget) Load(ctx context.Context, path string) (int64, error) {
	if t.s3 != nil {
		key, err := t.s3.Upload(ctx, path)
		if err != nil {
			return 0, err
		}
		t.uploadKey = key
	} else if err := t.client.Put(ctx, t.stageName, path); err != nil {
		return 0, err
	}

	results, err := t.client.CopyInto(ctx, t.table, t.stageName, filepath.Base(path))
	if err != nil {
		return 0, err
	}

	var loaded int64
	for _, r := range results {
		loaded += r.RowsLoaded
		logger.Info("Copied staged file",
			"file", r.File,
			"status", r.Status,
			"rows_parsed", r.RowsParsed,
			"rows_loaded", r.RowsLoaded,
		)
		if r.ErrorsSeen > 0 {
			logger.Warn("Rows rejected during copy", "file", r.File, "errors", r.ErrorsSeen, "first_error", r.FirstError)
		}
	}
	return loaded, nil
}

func (t *SnowflakeTarget) Count(ctx context.Context) (int64, error) {
	return t.client.CountRows(ctx, t.table)
}

func (t *SnowflakeTarget) Sample(ctx context.Context, n int) ([]SampleRow, error) {
	rows, err := t.client.SampleRows(ctx, t.table, n)
	if err != nil {
		return nil, err
	}
	out := make([]SampleRow, len(rows))
	for i, r := range rows {
		out[i] = SampleRow{
			EventID:         r.EventID.String,
			Event:           r.Event.String,
			UserID:          r.UserID.String,
			CollectorTstamp: r.CollectorTstamp.String,
			PageURL:         r.PageURL.String,
		}
	}
	return out, nil
}

// Finish clears staged files and suspends the warehouse when managed.
func (t *SnowflakeTarget) Finish(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if t.s3 != nil {
		if t.uploadKey != "" {
			keep(t.s3.Delete(ctx, t.uploadKey))
			t.uploadKey = ""
		}
	} else {
		keep(t.client.RemoveStaged(ctx, t.stageName))
	}
	if t.manageWarehouse {
		keep(t.client.SuspendWarehouse(ctx))
	}
	return firstErr
}

func (t *SnowflakeTarget) Close() error { return t.client.Close() }
