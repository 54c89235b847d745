package detector

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("detector: invalid config")

// Profile names accepted by ProfileByName.
const (
	ProfileServer   = "server"
	ProfileEmbedded = "embedded"
)

// Config holds the tunable constants of the classifier. The same algorithm
// runs in every deployment; only these values differ.
type Config struct {
	// WindowCapacity is the size of both the raw and the filtered window.
	WindowCapacity int `json:"window_capacity"`
	// AnomalyMultiplier scales the filtered standard deviation into the
	// anomaly band: |reading-mean| > AnomalyMultiplier*stdev.
	AnomalyMultiplier float64 `json:"anomaly_multiplier"`
	// Influence weights an anomalous reading against the historical filtered
	// value when it is written back into the filtered window.
	Influence float64 `json:"influence"`
	// JumpThreshold and StepThreshold are compared with reading-mean once a
	// reading is outside the anomaly band.
	JumpThreshold float64 `json:"jump_threshold"`
	StepThreshold float64 `json:"step_threshold"`
	// SmoothingIndex is the fixed position, counted from the oldest value of
	// the filtered window after eviction, blended into smoothed values.
	SmoothingIndex int `json:"smoothing_index"`
	// PrefillRaw starts the raw window full of zeros, skipping warm-up.
	PrefillRaw bool `json:"prefill_raw"`
}

// ServerProfile returns the tuning used by the HTTP detect endpoint.
func ServerProfile() Config {
	return Config{
		WindowCapacity:    10,
		AnomalyMultiplier: 3,
		Influence:         0.8,
		JumpThreshold:     2.0,
		StepThreshold:     0.3,
		SmoothingIndex:    6,
		PrefillRaw:        false,
	}
}

// EmbeddedProfile returns the tuning used by the on-device sensing loop.
func EmbeddedProfile() Config {
	return Config{
		WindowCapacity:    10,
		AnomalyMultiplier: 90,
		Influence:         0.8,
		JumpThreshold:     5.0,
		StepThreshold:     0.9,
		SmoothingIndex:    6,
		PrefillRaw:        true,
	}
}

// ProfileByName returns the named profile.
func ProfileByName(name string) (Config, error) {
	switch name {
	case ProfileServer:
		return ServerProfile(), nil
	case ProfileEmbedded:
		return EmbeddedProfile(), nil
	default:
		return Config{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, name)
	}
}

// Validate rejects configurations the classifier cannot run with.
func (c Config) Validate() error {
	if c.WindowCapacity <= 0 {
		return fmt.Errorf("%w: window_capacity must be positive, got %d", ErrInvalidConfig, c.WindowCapacity)
	}
	if c.AnomalyMultiplier <= 0 {
		return fmt.Errorf("%w: anomaly_multiplier must be positive, got %g", ErrInvalidConfig, c.AnomalyMultiplier)
	}
	if c.JumpThreshold <= 0 {
		return fmt.Errorf("%w: jump_threshold must be positive, got %g", ErrInvalidConfig, c.JumpThreshold)
	}
	if c.StepThreshold <= 0 {
		return fmt.Errorf("%w: step_threshold must be positive, got %g", ErrInvalidConfig, c.StepThreshold)
	}
	if c.Influence < 0 || c.Influence > 1 {
		return fmt.Errorf("%w: influence must be between 0 and 1, got %g", ErrInvalidConfig, c.Influence)
	}
	// The smoothing lookup runs on the filtered window after one value has
	// been evicted, so only WindowCapacity-1 positions exist.
	if c.SmoothingIndex < 0 || c.SmoothingIndex >= c.WindowCapacity-1 {
		return fmt.Errorf("%w: smoothing_index must be in [0, %d), got %d",
			ErrInvalidConfig, c.WindowCapacity-1, c.SmoothingIndex)
	}
	return nil
}
