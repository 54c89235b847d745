package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/motion.report/internal/detector"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// DetectorTuning overrides individual detector parameters on top of a named
// profile. Nil fields keep the profile's value.
type DetectorTuning struct {
	Profile           *string  `json:"profile,omitempty"`
	WindowCapacity    *int     `json:"window_capacity,omitempty"`
	AnomalyMultiplier *float64 `json:"anomaly_multiplier,omitempty"`
	Influence         *float64 `json:"influence,omitempty"`
	JumpThreshold     *float64 `json:"jump_threshold,omitempty"`
	StepThreshold     *float64 `json:"step_threshold,omitempty"`
	SmoothingIndex    *int     `json:"smoothing_index,omitempty"`
	PrefillRaw        *bool    `json:"prefill_raw,omitempty"`
}

// TuningConfig is the on-disk tuning file. Every field is optional: nil
// fields fall back to the named profile (detector fields) or to the Get*
// defaults (pipeline fields), so partial files are safe.
//
// The top-level detector fields tune /api/detect. The "sensing" block tunes
// the serial sensing loop and defaults to the embedded profile.
type TuningConfig struct {
	DetectorTuning

	Sensing *DetectorTuning `json:"sensing,omitempty"`

	// Sensing loop params
	CalibrationSamples *int    `json:"calibration_samples,omitempty"`
	SampleInterval     *string `json:"sample_interval,omitempty"` // duration string like "20ms"

	// Outbound params
	RelayTimeout *string `json:"relay_timeout,omitempty"` // duration string like "30s"
	MQTTTopic    *string `json:"mqtt_topic,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches the current directory and common parent directories and panics
// if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if _, err := c.DetectorConfig(); err != nil {
		return err
	}
	if _, err := c.SensingDetectorConfig(); err != nil {
		return err
	}

	if c.CalibrationSamples != nil && *c.CalibrationSamples < 0 {
		return fmt.Errorf("calibration_samples must be non-negative, got %d", *c.CalibrationSamples)
	}

	for name, v := range map[string]*string{
		"sample_interval": c.SampleInterval,
		"relay_timeout":   c.RelayTimeout,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.MQTTTopic != nil && *c.MQTTTopic == "" {
		return fmt.Errorf("mqtt_topic must not be empty")
	}

	return nil
}

// GetProfile returns the profile name or "server".
func (c *TuningConfig) GetProfile() string {
	if c.Profile == nil || *c.Profile == "" {
		return detector.ProfileServer
	}
	return *c.Profile
}

// DetectorConfig is the /api/detect detector: the top-level fields layered
// over the named profile, server by default.
func (c *TuningConfig) DetectorConfig() (detector.Config, error) {
	return c.DetectorTuning.layer(detector.ProfileServer)
}

// SensingDetectorConfig is the serial sensing loop detector: the "sensing"
// block layered over its profile, embedded by default.
func (c *TuningConfig) SensingDetectorConfig() (detector.Config, error) {
	if c.Sensing == nil {
		return detector.EmbeddedProfile(), nil
	}
	cfg, err := c.Sensing.layer(detector.ProfileEmbedded)
	if err != nil {
		return detector.Config{}, fmt.Errorf("sensing: %w", err)
	}
	return cfg, nil
}

func (t DetectorTuning) layer(defaultProfile string) (detector.Config, error) {
	name := defaultProfile
	if t.Profile != nil && *t.Profile != "" {
		name = *t.Profile
	}
	cfg, err := detector.ProfileByName(name)
	if err != nil {
		return detector.Config{}, err
	}
	if t.WindowCapacity != nil {
		cfg.WindowCapacity = *t.WindowCapacity
	}
	if t.AnomalyMultiplier != nil {
		cfg.AnomalyMultiplier = *t.AnomalyMultiplier
	}
	if t.Influence != nil {
		cfg.Influence = *t.Influence
	}
	if t.JumpThreshold != nil {
		cfg.JumpThreshold = *t.JumpThreshold
	}
	if t.StepThreshold != nil {
		cfg.StepThreshold = *t.StepThreshold
	}
	if t.SmoothingIndex != nil {
		cfg.SmoothingIndex = *t.SmoothingIndex
	}
	if t.PrefillRaw != nil {
		cfg.PrefillRaw = *t.PrefillRaw
	}
	if err := cfg.Validate(); err != nil {
		return detector.Config{}, err
	}
	return cfg, nil
}

// GetCalibrationSamples returns the calibration_samples value or the default.
func (c *TuningConfig) GetCalibrationSamples() int {
	if c.CalibrationSamples == nil {
		return 2000
	}
	return *c.CalibrationSamples
}

// GetSampleInterval parses and returns the SampleInterval as a time.Duration.
func (c *TuningConfig) GetSampleInterval() time.Duration {
	return parseDurationOr(c.SampleInterval, 20*time.Millisecond)
}

// GetRelayTimeout parses and returns the RelayTimeout as a time.Duration.
func (c *TuningConfig) GetRelayTimeout() time.Duration {
	return parseDurationOr(c.RelayTimeout, 30*time.Second)
}

// GetMQTTTopic returns the mqtt_topic value or the default.
func (c *TuningConfig) GetMQTTTopic() string {
	if c.MQTTTopic == nil || *c.MQTTTopic == "" {
		return "motion/status"
	}
	return *c.MQTTTopic
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
