// Command enrich-results adds actual_row_count to each model in a dbt
// run_results.json by counting the model's table in the warehouse.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/snowplow-loadgen/internal/config"
	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
	"github.com/ignite/snowplow-loadgen/internal/runresults"
	"github.com/ignite/snowplow-loadgen/internal/snowflake"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	manifest   string
	runResults string
	output     string
	provider   string
	configPath string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	var opts options
	fs := flag.NewFlagSet("enrich-results", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.manifest, "manifest", "", "Path to manifest.json (required)")
	fs.StringVar(&opts.runResults, "run-results", "", "Path to run_results.json (required)")
	fs.StringVar(&opts.output, "output", "", "Path to write the enriched run_results.json (required)")
	fs.StringVar(&opts.provider, "provider", "", "embucket or snowflake (auto-detected from env if not specified)")
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	for name, v := range map[string]string{"--manifest": opts.manifest, "--run-results": opts.runResults, "--output": opts.output} {
		if v == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
	}

	if opts.provider == "" {
		p, err := runresults.DetectProvider(os.LookupEnv)
		if err != nil {
			return nil, err
		}
		logger.Info("Auto-detected provider", "provider", p)
		opts.provider = p
	}
	if err := runresults.ValidateProvider(opts.provider); err != nil {
		return nil, err
	}
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
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactSecrets(cfg.Logging.Redact())

	wh := cfg.Snowflake
	if opts.provider == runresults.ProviderEmbucket {
		wh = cfg.Embucket.WithEmbucketDefaults()
	}
	if err := wh.Validate(); err != nil {
		logger.Error("Invalid warehouse configuration", "provider", opts.provider, "error", err)
		return 1
	}

	client, err := snowflake.NewClient(snowflake.Config{
		Account:   wh.Account,
		User:      wh.User,
		Password:  wh.Password,
		Role:      wh.Role,
		Database:  wh.Database,
		Schema:    wh.Schema,
		Warehouse: wh.Warehouse,
		Host:      wh.Host,
		Port:      wh.Port,
		Protocol:  wh.Protocol,
	})
	if err != nil {
		logger.Error("Failed to create client", "provider", opts.provider, "error", err)
		return 1
	}
	defer client.Close()

	logger.Info("Connecting to warehouse", "provider", opts.provider, "database", wh.Database)
	sum, err := runresults.EnrichFiles(ctx, client, wh.Database, opts.manifest, opts.runResults, opts.output)
	if err != nil {
		logger.Error("Enrichment failed", "error", err)
		return 1
	}

	fmt.Fprintf(stdout, "Enriched %d models with actual row counts (%d skipped)\n", sum.Enriched, sum.Skipped)
	fmt.Fprintf(stdout, "Wrote enriched results to: %s\n", opts.output)
	return 0
}
