package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptySource struct{}

func (emptySource) Generate(int64, Policy, func(Event) error) (int64, error) { return 0, nil }

type brokenSource struct{}

func (brokenSource) Generate(int64, Policy, func(Event) error) (int64, error) {
	return 0, errors.New("boom")
}

func TestGBToBytes(t *testing.T) {
	assert.Equal(t, int64(1<<30), GBToBytes(1))
	assert.Equal(t, int64(107374182), GBToBytes(0.1))
	assert.Equal(t, int64(0), GBToBytes(0))
}

func TestEstimateRows_EmptySample(t *testing.T) {
	_, err := EstimateRows(GBToBytes(1), 100, emptySource{})
	assert.ErrorIs(t, err, ErrEmptySample)
}

func TestEstimateRows_SourceError(t *testing.T) {
	_, err := EstimateRows(GBToBytes(1), 100, brokenSource{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptySample)
}

func TestEstimateRows(t *testing.T) {
	est, err := EstimateRows(GBToBytes(0.01), 0, newTestGenerator(3, DefaultProbabilities))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, est.SampleRows, int64(DefaultSampleRows))
	assert.Greater(t, est.HeaderBytes, int64(1000))
	assert.Greater(t, est.MeanRowBytes, 500.0)

	body := float64(GBToBytes(0.01) - est.HeaderBytes)
	assert.InDelta(t, body, float64(est.Rows)*est.MeanRowBytes, est.MeanRowBytes)
}

func TestEstimateRows_TinyTarget(t *testing.T) {
	est, err := EstimateRows(10, 50, newTestGenerator(3, DefaultProbabilities))
	require.NoError(t, err)
	assert.Equal(t, int64(1), est.Rows)
}
