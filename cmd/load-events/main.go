// Command load-events loads generated events into a warehouse table.
//
//	load-events --yesterday   # first run: full load of events_yesterday.csv
//	load-events --combined    # second run: load events_combined.csv
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/snowplow-loadgen/internal/config"
	"github.com/ignite/snowplow-loadgen/internal/loader"
	"github.com/ignite/snowplow-loadgen/internal/pkg/distlock"
	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	mode       loader.Mode
	target     string
	dataDir    string
	configPath string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	var (
		opts                options
		yesterday, combined bool
	)
	fs := flag.NewFlagSet("load-events", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&yesterday, "yesterday", false, "Full load of events_yesterday.csv (drops derived schemas)")
	fs.BoolVar(&combined, "combined", false, "Incremental load of events_combined.csv")
	fs.StringVar(&opts.target, "target", "", "snowflake, embucket, postgres or sqlite (default from config)")
	fs.StringVar(&opts.dataDir, "data-dir", "", "Directory holding the generated CSV files")
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: load-events (--yesterday | --combined) [--target NAME] [--data-dir DIR] [--config FILE]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	mode, err := loader.ParseMode(yesterday, combined)
	if err != nil {
		return nil, err
	}
	opts.mode = mode
	return &opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	cfg, err := config.LoadFromEnv(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: failed to load config: %v\n", err)
		return 1
	}
	if opts.target != "" {
		cfg.Load.Target = opts.target
	}
	if opts.dataDir != "" {
		cfg.Load.DataDir = opts.dataDir
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactSecrets(cfg.Logging.Redact())

	target, err := loader.OpenTarget(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open target", "target", cfg.Load.Target, "error", err)
		return 1
	}
	defer target.Close()

	lock, closeLock := newLock(cfg, target)
	defer closeLock()

	l := loader.New(target, lock, loader.Options{
		DataDir:    cfg.Load.DataDir,
		SampleRows: cfg.Load.VerifySampleRows,
		Timeout:    cfg.Load.Timeout(),
	})
	res, err := l.Run(ctx, opts.mode)
	if err != nil {
		logger.Error("Load failed", "target", target.Name(), "mode", opts.mode.String(), "error", err)
		return 1
	}

	fmt.Fprintf(stdout, "Loaded %d rows from %s into %s (%d rows in table)\n",
		res.RowsLoaded, res.File, target.Name(), res.TotalRows)
	for _, r := range res.Sample {
		fmt.Fprintf(stdout, "  %s  %-12s %s  %s\n", r.EventID, r.Event, r.CollectorTstamp, r.PageURL)
	}
	return 0
}

// newLock prefers Redis, then a Postgres advisory lock on the target's own
// connection, and runs unlocked otherwise.
func newLock(cfg *config.Config, target loader.Target) (distlock.DistLock, func()) {
	var client *redis.Client
	if cfg.Lock.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
		})
	}
	var db *sql.DB
	if pg, ok := target.(*loader.PostgresTarget); ok {
		db = pg.DB()
	}

	lock := distlock.NewLock(client, db, cfg.Lock.Key, cfg.Lock.TTL())
	return lock, func() {
		if client != nil {
			client.Close()
		}
	}
}
