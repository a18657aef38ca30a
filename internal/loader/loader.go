// Package loader pushes a generated events file into a warehouse table.
//
// A load runs under an optional distributed lock and follows the same steps
// for every target: prepare (schemas, DDL), load the file, verify with a row
// count and a small sample, then finish (e.g. suspend the warehouse).
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ignite/snowplow-loadgen/internal/events"
	"github.com/ignite/snowplow-loadgen/internal/pkg/distlock"
	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
)

// ErrInvalidMode is returned when neither or both load modes are selected.
var ErrInvalidMode = errors.New("loader: specify exactly one of --yesterday or --combined")

// Mode selects which file is loaded and whether derived state is reset.
type Mode int

const (
	// ModeYesterday is the first, full load of the yesterday file.
	ModeYesterday Mode = iota + 1
	// ModeCombined is the incremental load of yesterday plus today.
	ModeCombined
)

// ParseMode maps the two command-line switches to a Mode.
func ParseMode(yesterday, combined bool) (Mode, error) {
	switch {
	case yesterday && !combined:
		return ModeYesterday, nil
	case combined && !yesterday:
		return ModeCombined, nil
	default:
		return 0, ErrInvalidMode
	}
}

func (m Mode) String() string {
	switch m {
	case ModeYesterday:
		return "yesterday"
	case ModeCombined:
		return "combined"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// File is the generated file this mode loads.
func (m Mode) File() string {
	if m == ModeCombined {
		return events.CombinedFile
	}
	return events.YesterdayFile
}

// FullRefresh reports whether derived schemas are dropped before loading.
func (m Mode) FullRefresh() bool { return m == ModeYesterday }

// SampleRow holds identifying columns of one loaded event.
type SampleRow struct {
	EventID         string
	Event           string
	UserID          string
	CollectorTstamp string
	PageURL         string
}

// Target is a warehouse the loader can write to.
type Target interface {
	Name() string
	// Prepare creates schemas and (re)creates the events table. When
	// fullRefresh is set, derived model schemas are dropped first.
	Prepare(ctx context.Context, fullRefresh bool) error
	// Load copies the CSV file at path into the events table and returns
	// the number of rows the target accepted.
	Load(ctx context.Context, path string) (int64, error)
	Count(ctx context.Context) (int64, error)
	Sample(ctx context.Context, n int) ([]SampleRow, error)
	// Finish runs after the load whether or not it succeeded.
	Finish(ctx context.Context) error
	Close() error
}

// Options tune a Loader run.
type Options struct {
	DataDir    string
	SampleRows int
	Timeout    time.Duration
}

// Result summarizes a finished load.
type Result struct {
	Mode       Mode
	File       string
	RowsLoaded int64
	TotalRows  int64
	Sample     []SampleRow
	Duration   time.Duration
}

// Loader runs loads against one target.
type Loader struct {
	target Target
	lock   distlock.DistLock
	opts   Options
}

// New creates a Loader. A nil lock disables locking.
func New(target Target, lock distlock.DistLock, opts Options) *Loader {
	if lock == nil {
		lock = distlock.Nop{}
	}
	if opts.DataDir == "" {
		opts.DataDir = "."
	}
	return &Loader{target: target, lock: lock, opts: opts}
}

// Run loads the file selected by mode. The file must exist before any
// connection work starts.
func (l *Loader) Run(ctx context.Context, mode Mode) (*Result, error) {
	if mode != ModeYesterday && mode != ModeCombined {
		return nil, ErrInvalidMode
	}
	path := filepath.Join(l.opts.DataDir, mode.File())
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file: %w", err)
	}

	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	res := &Result{Mode: mode, File: path}
	start := time.Now()
	err := distlock.WithLock(ctx, l.lock, func(ctx context.Context) error {
		return l.run(ctx, mode, path, res)
	})
	res.Duration = time.Since(start)
	if err != nil {
		return nil, err
	}

	logger.Info("Load complete",
		"target", l.target.Name(),
		"mode", mode.String(),
		"rows_loaded", res.RowsLoaded,
		"total_rows", res.TotalRows,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (l *Loader) run(ctx context.Context, mode Mode, path string, res *Result) (err error) {
	defer func() {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if ferr := l.target.Finish(fctx); ferr != nil {
			logger.Warn("Failed to finish load", "target", l.target.Name(), "error", ferr)
			if err == nil {
				err = ferr
			}
		}
	}()

	logger.Info("Preparing target", "target", l.target.Name(), "mode", mode.String(), "full_refresh", mode.FullRefresh())
	if err := l.target.Prepare(ctx, mode.FullRefresh()); err != nil {
		return fmt.Errorf("prepare %s: %w", l.target.Name(), err)
	}

	logger.Info("Loading file", "target", l.target.Name(), "file", filepath.Base(path))
	rows, err := l.target.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	res.RowsLoaded = rows

	total, err := l.target.Count(ctx)
	if err != nil {
		return fmt.Errorf("verify count: %w", err)
	}
	res.TotalRows = total

	if l.opts.SampleRows > 0 {
		sample, err := l.target.Sample(ctx, l.opts.SampleRows)
		if err != nil {
			return fmt.Errorf("verify sample: %w", err)
		}
		res.Sample = sample
		for _, r := range sample {
			logger.Debug("Sample row",
				"event_id", r.EventID,
				"event", r.Event,
				"user_id", r.UserID,
				"collector_tstamp", r.CollectorTstamp,
				"page_url", r.PageURL,
			)
		}
	}
	return nil
}
