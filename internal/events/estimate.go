package events

import (
	"errors"
	"io"
	"math"
)

// ErrEmptySample is returned when the estimation sample produced no rows or
// no bytes, so no row size can be derived from it.
var ErrEmptySample = errors.New("events: estimation sample is empty")

// DefaultSampleRows is the minimum sample size used to estimate row size.
const DefaultSampleRows = 1000

// GBToBytes converts gigabytes (2^30 bytes) to bytes.
func GBToBytes(gb float64) int64 {
	return int64(math.Round(gb * (1 << 30)))
}

// Source produces events until a row target is reached.
type Source interface {
	Generate(target int64, policy Policy, emit func(Event) error) (int64, error)
}

// Estimate is the outcome of a size estimation.
type Estimate struct {
	SampleRows   int64
	SampleBytes  int64
	HeaderBytes  int64
	MeanRowBytes float64
	Rows         int64
}

// EstimateRows serializes whole sessions from src until at least sampleRows
// rows exist, measures the mean row size, and returns the number of rows
// needed for targetBytes including the header.
func EstimateRows(targetBytes int64, sampleRows int, src Source) (Estimate, error) {
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}
	w := NewBatchWriter(io.Discard, WriterOptions{Name: "sample"})
	if err := w.WriteHeader(); err != nil {
		return Estimate{}, err
	}
	est := Estimate{HeaderBytes: w.Bytes()}

	n, err := src.Generate(int64(sampleRows), CompleteSessions, w.Write)
	if err != nil {
		return Estimate{}, err
	}
	if err := w.Flush(); err != nil {
		return Estimate{}, err
	}
	est.SampleRows = n
	est.SampleBytes = w.Bytes() - est.HeaderBytes
	if est.SampleRows == 0 || est.SampleBytes <= 0 {
		return est, ErrEmptySample
	}

	est.MeanRowBytes = float64(est.SampleBytes) / float64(est.SampleRows)
	body := targetBytes - est.HeaderBytes
	if body < 1 {
		body = 1
	}
	est.Rows = int64(math.Ceil(float64(body) / est.MeanRowBytes))
	return est, nil
}
