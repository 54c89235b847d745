package detector

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestComputeStats(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		wantMean  float64
		wantStdev float64
	}{
		{name: "single value", values: []float64{4}, wantMean: 4, wantStdev: 0},
		{name: "all zeros", values: make([]float64, 10), wantMean: 0, wantStdev: 0},
		{name: "population not sample", values: []float64{2, 4, 4, 4, 5, 5, 7, 9}, wantMean: 5, wantStdev: 2},
		{name: "one spike in ten", values: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 8}, wantMean: 0.8, wantStdev: 2.4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeStats(tc.values)
			require.NoError(t, err)
			assert.InDelta(t, tc.wantMean, got.Mean, 1e-12)
			assert.InDelta(t, tc.wantStdev, got.StdDev, 1e-12)
		})
	}
}

func TestComputeStats_Empty(t *testing.T) {
	_, err := ComputeStats(nil)
	assert.True(t, errors.Is(err, ErrEmptyWindow))
}

func TestComputeStats_Idempotent(t *testing.T) {
	values := []float64{0.25, 1.5, 3, 0, 0, 2.75, 0.5, 9.125, 0, 4}
	before := append([]float64(nil), values...)

	first, err := ComputeStats(values)
	require.NoError(t, err)
	second, err := ComputeStats(values)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, values, "input must not be modified")
}

func TestComputeStats_MatchesGonumPopulation(t *testing.T) {
	values := []float64{10, 0.5, 0, 3, 1, 0, 0, 2.5, 0.4, 7}

	got, err := ComputeStats(values)
	require.NoError(t, err)

	mean, std := stat.PopMeanStdDev(values, nil)
	assert.InDelta(t, mean, got.Mean, 1e-12)
	assert.InDelta(t, std, got.StdDev, 1e-12)
	assert.False(t, math.IsNaN(got.StdDev))
}
