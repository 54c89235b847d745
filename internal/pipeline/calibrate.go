// Package pipeline runs the on-device sensing loop: bias calibration,
// classification, counting and notification for a serial gyro stream.
package pipeline

import "sync"

// DefaultCalibrationSamples is the number of resting readings averaged into
// the gyro bias.
const DefaultCalibrationSamples = 2000

// Calibrator removes the resting gyro bias. The first n readings are
// averaged; afterwards Apply subtracts that average.
type Calibrator struct {
	mu     sync.Mutex
	target int
	seen   int
	sum    float64
	bias   float64
}

// NewCalibrator returns a Calibrator averaging n readings. n <= 0 disables
// calibration.
func NewCalibrator(n int) *Calibrator {
	if n < 0 {
		n = 0
	}
	return &Calibrator{target: n}
}

// Apply consumes one raw reading. While calibrating it returns ok=false;
// once the bias is known it returns reading-bias.
func (c *Calibrator) Apply(reading float64) (corrected float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen < c.target {
		c.sum += reading
		c.seen++
		if c.seen == c.target {
			c.bias = c.sum / float64(c.target)
		}
		return 0, false
	}
	return reading - c.bias, true
}

// Done reports whether the bias has been established.
func (c *Calibrator) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen >= c.target
}

// Bias returns the current bias estimate, 0 until calibration completes.
func (c *Calibrator) Bias() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bias
}

// Progress returns the number of calibration readings seen and required.
func (c *Calibrator) Progress() (seen, target int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen, c.target
}
