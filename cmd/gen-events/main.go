// Command gen-events writes two days of synthetic Snowplow atomic events as
// CSV: events_yesterday.csv, events_today.csv and events_combined.csv.
//
// Usage:
//
//	gen-events --gb 0.1
//	gen-events --rows 100000 --seed 7 --out-dir ./data
//	gen-events 100000 --seed 7
//	gen-events --scale-factor 1
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ignite/snowplow-loadgen/internal/config"
	"github.com/ignite/snowplow-loadgen/internal/events"
	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	gb         float64
	rows       int64
	seed       int64
	outDir     string
	configPath string
	seedSet    bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	var opts options
	fs := flag.NewFlagSet("gen-events", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Float64Var(&opts.gb, "gb", 0, "Target size per day in gigabytes (whole sessions, at least this size)")
	fs.Float64Var(&opts.gb, "scale-factor", 0, "Alias for --gb")
	fs.Int64Var(&opts.rows, "rows", 0, "Target rows per day (exact)")
	fs.Int64Var(&opts.seed, "seed", 0, "Random seed (overrides config and EVENTS_SEED)")
	fs.StringVar(&opts.outDir, "out-dir", "", "Directory to write the CSV files to")
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: gen-events (--gb SIZE | --scale-factor SIZE | --rows N | N) [--seed S] [--out-dir DIR] [--config FILE]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	var count string
	if fs.NArg() > 0 {
		count = fs.Arg(0)
		// Flags may follow the bare row count.
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return nil, err
		}
		if fs.NArg() > 0 {
			return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
		}
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.seedSet = true
		}
	})

	if count != "" {
		n, err := strconv.ParseInt(count, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid row count %q", count)
		}
		if opts.rows != 0 {
			return nil, fmt.Errorf("row count given twice")
		}
		opts.rows = n
	}

	if err := (events.Target{GB: opts.gb, Rows: opts.rows}).Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
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
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactSecrets(cfg.Logging.Redact())

	if err := cfg.Generator.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	rc, err := runConfig(cfg, opts)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	logger.Info("Generating events",
		"gb", opts.gb,
		"rows", opts.rows,
		"seed", rc.Seed,
		"out_dir", rc.OutDir,
		"policy", rc.Target.Policy().String(),
	)
	start := time.Now()
	res, err := events.Run(rc)
	if err != nil {
		logger.Error("Generation failed", "error", err)
		return 1
	}

	for _, f := range []events.FileStats{res.Yesterday, res.Today, res.Combined} {
		fmt.Fprintf(stdout, "%-40s %12d rows %14d bytes (%.3f GB)\n", f.Path, f.Rows, f.Bytes, float64(f.Bytes)/(1<<30))
	}
	logger.Info("Generation complete", "duration_ms", time.Since(start).Milliseconds())
	return 0
}

func runConfig(cfg *config.Config, opts *options) (events.RunConfig, error) {
	g := cfg.Generator
	yesterday, err := g.Yesterday()
	if err != nil {
		return events.RunConfig{}, fmt.Errorf("invalid yesterday_date: %w", err)
	}
	today, err := g.Today()
	if err != nil {
		return events.RunConfig{}, fmt.Errorf("invalid today_date: %w", err)
	}

	rc := events.RunConfig{
		OutDir:             g.OutDir,
		Seed:               g.Seed,
		Target:             events.Target{GB: opts.gb, Rows: opts.rows},
		Yesterday:          yesterday,
		Today:              today,
		YesterdayMobilePct: g.YesterdayMobilePct,
		TodayMobilePct:     g.TodayMobilePct,
		BotShare:           g.BotShare,
		Probabilities: events.Probabilities{
			WebVitals:  g.WebVitalsProb,
			CmpVisible: g.CmpVisibleProb,
			Consent:    g.ConsentProb,
		},
		SampleRows:    g.SampleRows,
		BatchSize:     g.BatchSize,
		ProgressEvery: g.ProgressEvery,
		Observer: events.ObserverFunc(func(p events.Progress) {
			if p.Done {
				logger.Info("File written", "file", p.File, "rows", p.Rows, "bytes", p.Bytes)
				return
			}
			logger.Info("Progress", "file", p.File, "rows", p.Rows, "bytes", p.Bytes)
		}),
	}
	if opts.outDir != "" {
		rc.OutDir = opts.outDir
	}
	if opts.seedSet {
		rc.Seed = opts.seed
	}
	return rc, nil
}
