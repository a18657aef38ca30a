package events

import (
	"encoding/csv"
	"fmt"
	"io"
)

const (
	DefaultBatchSize     = 10000
	DefaultProgressEvery = 50000
)

// Progress is a running count for one output file.
type Progress struct {
	File  string
	Rows  int64
	Bytes int64
	Done  bool
}

// Observer receives progress notifications from a BatchWriter.
type Observer interface {
	Progress(p Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Progress)

func (f ObserverFunc) Progress(p Progress) { f(p) }

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriterOptions configures a BatchWriter. Zero values take the defaults.
type WriterOptions struct {
	Name          string
	BatchSize     int
	ProgressEvery int64
	Observer      Observer
}

// BatchWriter streams records as CSV, holding at most one batch in memory.
// The batch is flushed to the sink each time it fills.
type BatchWriter struct {
	opts  WriterOptions
	cw    *countingWriter
	csv   *csv.Writer
	batch [][]string

	rows         int64
	nextProgress int64
}

func NewBatchWriter(w io.Writer, opts WriterOptions) *BatchWriter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	cw := &countingWriter{w: w}
	return &BatchWriter{
		opts:         opts,
		cw:           cw,
		csv:          csv.NewWriter(cw),
		batch:        make([][]string, 0, opts.BatchSize),
		nextProgress: opts.ProgressEvery,
	}
}

// SetBase starts the counters at rows and bytes already present in the sink,
// as when appending to a copied file.
func (b *BatchWriter) SetBase(rows, bytes int64) {
	b.rows = rows
	b.cw.n = bytes
	b.nextProgress = (rows/b.opts.ProgressEvery + 1) * b.opts.ProgressEvery
}

// WriteHeader writes the column header row and flushes it.
func (b *BatchWriter) WriteHeader() error {
	if err := b.csv.Write(Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	b.csv.Flush()
	return b.csv.Error()
}

// Write queues the record of ev.
func (b *BatchWriter) Write(ev Event) error {
	return b.WriteRecord(ev.Record())
}

// WriteRecord queues rec, flushing when the batch is full. rec must not be
// modified until the next flush.
func (b *BatchWriter) WriteRecord(rec []string) error {
	b.batch = append(b.batch, rec)
	b.rows++
	if len(b.batch) >= b.opts.BatchSize {
		return b.Flush()
	}
	return nil
}

// Flush writes the pending batch to the sink.
func (b *BatchWriter) Flush() error {
	if len(b.batch) == 0 {
		return nil
	}
	if err := b.csv.WriteAll(b.batch); err != nil {
		return fmt.Errorf("failed to write batch to %s: %w", b.opts.Name, err)
	}
	clear(b.batch)
	b.batch = b.batch[:0]
	if b.rows >= b.nextProgress {
		for b.rows >= b.nextProgress {
			b.nextProgress += b.opts.ProgressEvery
		}
		b.notify(false)
	}
	return nil
}

// Close flushes what is left and reports the final counts. It does not close
// the underlying sink.
func (b *BatchWriter) Close() error {
	if err := b.Flush(); err != nil {
		return err
	}
	b.notify(true)
	return nil
}

func (b *BatchWriter) notify(done bool) {
	if b.opts.Observer == nil {
		return
	}
	b.opts.Observer.Progress(Progress{File: b.opts.Name, Rows: b.rows, Bytes: b.cw.n, Done: done})
}

// Rows is the number of data rows accepted so far.
func (b *BatchWriter) Rows() int64 { return b.rows }

// Bytes is the number of bytes written to the sink so far.
func (b *BatchWriter) Bytes() int64 { return b.cw.n }
