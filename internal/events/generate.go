package events

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
)

// Output file names, fixed per day so the loader can find them.
const (
	YesterdayFile = "events_yesterday.csv"
	TodayFile     = "events_today.csv"
	CombinedFile  = "events_combined.csv"
)

var (
	ErrConflictingTarget = errors.New("events: --gb and --rows are mutually exclusive")
	ErrNoTarget          = errors.New("events: a positive --gb or --rows target is required")
)

// Target is the per-day output size: gigabytes or rows, never both.
type Target struct {
	GB   float64
	Rows int64
}

func (t Target) Validate() error {
	switch {
	case t.GB != 0 && t.Rows != 0:
		return ErrConflictingTarget
	case t.GB < 0 || t.Rows < 0:
		return fmt.Errorf("%w: got gb=%v rows=%d", ErrNoTarget, t.GB, t.Rows)
	case t.GB == 0 && t.Rows == 0:
		return ErrNoTarget
	}
	return nil
}

// Policy is ExactRows for a row target and CompleteSessions for a size target.
func (t Target) Policy() Policy {
	if t.Rows > 0 {
		return ExactRows
	}
	return CompleteSessions
}

// DaySeed derives the seed of one random stream for one day, so each day and
// each purpose (sample or events) draws from an independent source.
func DaySeed(seed int64, stream string, day time.Time) int64 {
	h := murmur3.New64()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	h.Write(buf[:])
	h.Write([]byte(stream))
	h.Write([]byte(day.UTC().Format(time.DateOnly)))
	return int64(h.Sum64())
}

// RunConfig describes one generator invocation.
type RunConfig struct {
	OutDir             string
	Seed               int64
	Target             Target
	Yesterday          time.Time
	Today              time.Time
	YesterdayMobilePct int
	TodayMobilePct     int
	BotShare           float64
	Probabilities      Probabilities
	SampleRows         int
	BatchSize          int
	ProgressEvery      int64
	Observer           Observer
}

// FileStats is what was written to one output file.
type FileStats struct {
	Path  string
	Rows  int64
	Bytes int64
}

type RunResult struct {
	Yesterday FileStats
	Today     FileStats
	Combined  FileStats
}

type generator struct {
	cfg RunConfig
}

// Run writes the yesterday, today and combined files. The combined file is a
// byte copy of the yesterday file followed by the today rows.
func Run(cfg RunConfig) (RunResult, error) {
	if err := cfg.Target.Validate(); err != nil {
		return RunResult{}, err
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return RunResult{}, fmt.Errorf("failed to create output dir: %w", err)
	}
	g := &generator{cfg: cfg}

	var res RunResult
	yday := g.dayConfig(cfg.Yesterday, cfg.YesterdayMobilePct)
	stats, err := g.writeDay(filepath.Join(cfg.OutDir, YesterdayFile), yday, nil)
	if err != nil {
		return res, err
	}
	res.Yesterday = stats

	combinedPath := filepath.Join(cfg.OutDir, CombinedFile)
	combined, err := copyFile(stats.Path, combinedPath)
	if err != nil {
		return res, err
	}
	defer combined.Close()

	cw := g.writer(combined, CombinedFile)
	cw.SetBase(stats.Rows, stats.Bytes)

	today := g.dayConfig(cfg.Today, cfg.TodayMobilePct)
	stats, err = g.writeDay(filepath.Join(cfg.OutDir, TodayFile), today, cw)
	if err != nil {
		return res, err
	}
	res.Today = stats

	if err := cw.Close(); err != nil {
		return res, err
	}
	if err := combined.Sync(); err != nil {
		return res, fmt.Errorf("failed to sync %s: %w", combinedPath, err)
	}
	res.Combined = FileStats{Path: combinedPath, Rows: cw.Rows(), Bytes: cw.Bytes()}
	return res, nil
}

func (g *generator) dayConfig(day time.Time, mobilePct int) DayConfig {
	return DayConfig{
		Day:           day,
		MobilePercent: mobilePct,
		BotShare:      g.cfg.BotShare,
		Probabilities: g.cfg.Probabilities,
	}
}

func (g *generator) writer(w io.Writer, name string) *BatchWriter {
	return NewBatchWriter(w, WriterOptions{
		Name:          name,
		BatchSize:     g.cfg.BatchSize,
		ProgressEvery: g.cfg.ProgressEvery,
		Observer:      g.cfg.Observer,
	})
}

// rowTarget resolves the day's row target, estimating it for size targets.
func (g *generator) rowTarget(day DayConfig) (int64, error) {
	if g.cfg.Target.Rows > 0 {
		return g.cfg.Target.Rows, nil
	}
	rng := rand.New(rand.NewSource(DaySeed(g.cfg.Seed, "sample", day.Day)))
	est, err := EstimateRows(GBToBytes(g.cfg.Target.GB), g.cfg.SampleRows, NewSessionGenerator(day, rng))
	if err != nil {
		return 0, err
	}
	logger.Info("Estimated row target",
		"day", day.Day.Format(time.DateOnly),
		"sample_rows", est.SampleRows,
		"mean_row_bytes", fmt.Sprintf("%.1f", est.MeanRowBytes),
		"rows", est.Rows,
	)
	return est.Rows, nil
}

// writeDay generates one day into path. When tee is set every record is also
// queued on it.
func (g *generator) writeDay(path string, day DayConfig, tee *BatchWriter) (FileStats, error) {
	target, err := g.rowTarget(day)
	if err != nil {
		return FileStats{}, err
	}

	f, err := os.Create(path)
	if err != nil {
		return FileStats{}, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := g.writer(f, filepath.Base(path))
	if err := w.WriteHeader(); err != nil {
		return FileStats{}, err
	}

	rng := rand.New(rand.NewSource(DaySeed(g.cfg.Seed, "events", day.Day)))
	_, err = NewSessionGenerator(day, rng).Generate(target, g.cfg.Target.Policy(), func(ev Event) error {
		rec := ev.Record()
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
		if tee != nil {
			return tee.WriteRecord(rec)
		}
		return nil
	})
	if err != nil {
		return FileStats{}, err
	}
	if err := w.Close(); err != nil {
		return FileStats{}, err
	}
	if err := f.Sync(); err != nil {
		return FileStats{}, fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return FileStats{Path: path, Rows: w.Rows(), Bytes: w.Bytes()}, nil
}

// copyFile copies src to dst and returns dst open for appending.
func copyFile(src, dst string) (*os.File, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out, nil
}
