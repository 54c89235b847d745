package detector

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrEmptyWindow is returned when statistics are requested over no values.
var ErrEmptyWindow = errors.New("detector: statistics over empty window")

// Stats holds the mean and population standard deviation of a window.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdev"`
}

// ComputeStats returns the mean and population standard deviation (divide by
// N) of values using the two-pass formula: sum, mean, then the sum of squared
// deviations from that mean. values is not modified.
func ComputeStats(values []float64) (Stats, error) {
	n := len(values)
	if n == 0 {
		return Stats{}, ErrEmptyWindow
	}

	mean := floats.Sum(values) / float64(n)

	diff := make([]float64, n)
	copy(diff, values)
	floats.AddConst(-mean, diff)
	sqSum := floats.Dot(diff, diff)

	return Stats{
		Mean:   mean,
		StdDev: math.Sqrt(sqSum / float64(n)),
	}, nil
}
