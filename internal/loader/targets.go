package loader

import (
	"context"
	"fmt"

	"github.com/ignite/snowplow-loadgen/internal/config"
	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
	"github.com/ignite/snowplow-loadgen/internal/snowflake"
	"github.com/ignite/snowplow-loadgen/internal/stage"
)

// Target names accepted by OpenTarget.
const (
	TargetSnowflake = "snowflake"
	TargetEmbucket  = "embucket"
	TargetPostgres  = "postgres"
	TargetSQLite    = "sqlite"
)

// OpenTarget connects to the target named by cfg.Load.Target.
func OpenTarget(ctx context.Context, cfg *config.Config) (Target, error) {
	switch cfg.Load.Target {
	case TargetSnowflake:
		return openSnowflake(ctx, cfg, TargetSnowflake, cfg.Snowflake)
	case TargetEmbucket:
		return openSnowflake(ctx, cfg, TargetEmbucket, cfg.Embucket.WithEmbucketDefaults())
	case TargetPostgres:
		if err := cfg.Postgres.Validate(); err != nil {
			return nil, err
		}
		db, err := OpenPostgres(ctx, cfg.Postgres.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to postgres", "database_url", cfg.Postgres.DatabaseURL)
		return NewPostgresTarget(db, cfg.Postgres.Schema, cfg.Load.Table, cfg.Load.DerivedSchemas()), nil
	case TargetSQLite:
		db, err := OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("Opened sqlite database", "path", cfg.SQLite.Path)
		return NewSQLiteTarget(db, cfg.Load.Table, cfg.SQLite.BatchSize), nil
	default:
		return nil, fmt.Errorf("loader: unknown target %q", cfg.Load.Target)
	}
}

func openSnowflake(ctx context.Context, cfg *config.Config, name string, sf config.SnowflakeConfig) (Target, error) {
	if err := sf.Validate(); err != nil {
		return nil, err
	}

	opts := SnowflakeOptions{
		Name:            name,
		Table:           cfg.Load.Table,
		Stage:           cfg.Stage.Name,
		DerivedSchemas:  cfg.Load.DerivedSchemas(),
		ManageWarehouse: sf.ManageWarehouse,
	}

	// Embucket cannot receive PUT uploads, so it always stages through S3.
	if cfg.Stage.Type == "s3" || name == TargetEmbucket {
		s3Stage, err := stage.NewS3Stage(ctx, stage.Config{
			Bucket:       cfg.Stage.S3Bucket,
			Prefix:       cfg.Stage.S3Prefix,
			Region:       cfg.Stage.AWSRegion,
			Profile:      cfg.Stage.AWSProfile,
			AccessKey:    cfg.Stage.AccessKey,
			SecretKey:    cfg.Stage.SecretKey,
			Endpoint:     cfg.Stage.S3Endpoint,
			UsePathStyle: cfg.Stage.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("%s staging: %w", name, err)
		}
		opts.S3 = s3Stage
		opts.S3KeyID = cfg.Stage.AccessKey
		opts.S3Secret = cfg.Stage.SecretKey
	}

	client, err := snowflake.NewClient(snowflake.Config{
		Account:   sf.Account,
		User:      sf.User,
		Password:  sf.Password,
		Role:      sf.Role,
		Database:  sf.Database,
		Schema:    sf.Schema,
		Warehouse: sf.Warehouse,
		Host:      sf.Host,
		Port:      sf.Port,
		Protocol:  sf.Protocol,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", name, err)
	}
	logger.Info("Connected to warehouse", "target", name, "account", sf.Account, "database", sf.Database, "schema", sf.Schema)
	return NewSnowflakeTarget(client, opts), nil
}
