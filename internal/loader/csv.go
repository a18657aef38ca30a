package loader

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ignite/snowplow-loadgen/internal/events"
)

// ErrHeaderMismatch is returned when a file does not start with the events header.
var ErrHeaderMismatch = errors.New("loader: file header does not match events columns")

// readRecords streams the data rows of an events CSV file to fn. The record
// slice is reused between calls.
func readRecords(path string, fn func(rec []string) error) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReaderSize(f, 1<<20))
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	want := events.Header()
	if len(header) != len(want) {
		return 0, fmt.Errorf("%w: %d columns, want %d", ErrHeaderMismatch, len(header), len(want))
	}
	for i := range want {
		if header[i] != want[i] {
			return 0, fmt.Errorf("%w: column %d is %q, want %q", ErrHeaderMismatch, i+1, header[i], want[i])
		}
	}

	var n int64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to read row %d: %w", n+1, err)
		}
		if err := fn(rec); err != nil {
			return n, err
		}
		n++
	}
}
