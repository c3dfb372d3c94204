package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/params endpoint so the same JSON can be
// used for both startup configuration and runtime updates. All fields
// are optional; the Get* accessors supply defaults for unset values.
type TuningConfig struct {
	// History params
	HistorySeconds *float64 `json:"history_seconds,omitempty"`
	FPSEstimate    *int     `json:"fps_estimate,omitempty"`

	// Classifier thresholds (normalized speed is in bbox-heights/second)
	SpeedStationary    *float64 `json:"speed_stationary,omitempty"`
	SpeedSlow          *float64 `json:"speed_slow,omitempty"`
	SpeedFast          *float64 `json:"speed_fast,omitempty"`
	HipRatioSitting    *float64 `json:"hip_ratio_sitting,omitempty"`
	ClassifyMinSamples *int     `json:"classify_min_samples,omitempty"`
	SmoothingSamples   *int     `json:"smoothing_samples,omitempty"`

	// Fall detection params
	FallDropRatio     *float64 `json:"fall_drop_ratio,omitempty"`
	FallTimeThreshold *float64 `json:"fall_time_threshold,omitempty"`
	FallMinConfidence *float64 `json:"fall_min_confidence,omitempty"`

	// Keypoint quality gate
	KeypointMinConfidence *float64 `json:"keypoint_min_confidence,omitempty"`

	// Identity confirmation params
	IdentityConfidenceThreshold *float64 `json:"identity_confidence_threshold,omitempty"`
	IdentityMinConfirmations    *int     `json:"identity_min_confirmations,omitempty"`
	IdentityTimeoutSeconds      *float64 `json:"identity_timeout_seconds,omitempty"`

	// Track lifecycle params
	TrackEvictionSeconds *float64 `json:"track_eviction_seconds,omitempty"`
	ResetOnGapSeconds    *float64 `json:"reset_on_gap_seconds,omitempty"`

	// Persistence params
	SnapshotInterval *string `json:"snapshot_interval,omitempty"` // duration string like "30s"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a config file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.HistorySeconds != nil && *c.HistorySeconds <= 0 {
		return fmt.Errorf("history_seconds must be positive, got %f", *c.HistorySeconds)
	}
	if c.FPSEstimate != nil && *c.FPSEstimate <= 0 {
		return fmt.Errorf("fps_estimate must be positive, got %d", *c.FPSEstimate)
	}
	if c.SpeedStationary != nil && *c.SpeedStationary < 0 {
		return fmt.Errorf("speed_stationary must be non-negative, got %f", *c.SpeedStationary)
	}

	// Speed bands must stay ordered when any of them is overridden.
	stationary := c.GetSpeedStationary()
	slow := c.GetSpeedSlow()
	fast := c.GetSpeedFast()
	if !(stationary <= slow && slow <= fast) {
		return fmt.Errorf("speed thresholds must be ordered stationary <= slow <= fast, got %f/%f/%f",
			stationary, slow, fast)
	}

	if c.FallDropRatio != nil && (*c.FallDropRatio <= 0 || *c.FallDropRatio >= 1) {
		return fmt.Errorf("fall_drop_ratio must be between 0 and 1, got %f", *c.FallDropRatio)
	}
	if c.FallTimeThreshold != nil && *c.FallTimeThreshold <= 0 {
		return fmt.Errorf("fall_time_threshold must be positive, got %f", *c.FallTimeThreshold)
	}
	if c.IdentityConfidenceThreshold != nil && (*c.IdentityConfidenceThreshold < 0 || *c.IdentityConfidenceThreshold > 1) {
		return fmt.Errorf("identity_confidence_threshold must be between 0 and 1, got %f", *c.IdentityConfidenceThreshold)
	}
	if c.IdentityMinConfirmations != nil && *c.IdentityMinConfirmations < 1 {
		return fmt.Errorf("identity_min_confirmations must be at least 1, got %d", *c.IdentityMinConfirmations)
	}
	if c.TrackEvictionSeconds != nil && *c.TrackEvictionSeconds <= 0 {
		return fmt.Errorf("track_eviction_seconds must be positive, got %f", *c.TrackEvictionSeconds)
	}
	if c.ResetOnGapSeconds != nil && *c.ResetOnGapSeconds < 0 {
		return fmt.Errorf("reset_on_gap_seconds must be non-negative, got %f", *c.ResetOnGapSeconds)
	}
	if c.SnapshotInterval != nil && *c.SnapshotInterval != "" {
		if _, err := time.ParseDuration(*c.SnapshotInterval); err != nil {
			return fmt.Errorf("invalid snapshot_interval '%s': %w", *c.SnapshotInterval, err)
		}
	}

	return nil
}

// Merge overlays the set (non-nil) fields of o onto c. Used by the
// /api/params endpoint to apply partial runtime updates.
func (c *TuningConfig) Merge(o *TuningConfig) {
	if o.HistorySeconds != nil {
		c.HistorySeconds = o.HistorySeconds
	}
	if o.FPSEstimate != nil {
		c.FPSEstimate = o.FPSEstimate
	}
	if o.SpeedStationary != nil {
		c.SpeedStationary = o.SpeedStationary
	}
	if o.SpeedSlow != nil {
		c.SpeedSlow = o.SpeedSlow
	}
	if o.SpeedFast != nil {
		c.SpeedFast = o.SpeedFast
	}
	if o.HipRatioSitting != nil {
		c.HipRatioSitting = o.HipRatioSitting
	}
	if o.ClassifyMinSamples != nil {
		c.ClassifyMinSamples = o.ClassifyMinSamples
	}
	if o.SmoothingSamples != nil {
		c.SmoothingSamples = o.SmoothingSamples
	}
	if o.FallDropRatio != nil {
		c.FallDropRatio = o.FallDropRatio
	}
	if o.FallTimeThreshold != nil {
		c.FallTimeThreshold = o.FallTimeThreshold
	}
	if o.FallMinConfidence != nil {
		c.FallMinConfidence = o.FallMinConfidence
	}
	if o.KeypointMinConfidence != nil {
		c.KeypointMinConfidence = o.KeypointMinConfidence
	}
	if o.IdentityConfidenceThreshold != nil {
		c.IdentityConfidenceThreshold = o.IdentityConfidenceThreshold
	}
	if o.IdentityMinConfirmations != nil {
		c.IdentityMinConfirmations = o.IdentityMinConfirmations
	}
	if o.IdentityTimeoutSeconds != nil {
		c.IdentityTimeoutSeconds = o.IdentityTimeoutSeconds
	}
	if o.TrackEvictionSeconds != nil {
		c.TrackEvictionSeconds = o.TrackEvictionSeconds
	}
	if o.ResetOnGapSeconds != nil {
		c.ResetOnGapSeconds = o.ResetOnGapSeconds
	}
	if o.SnapshotInterval != nil {
		c.SnapshotInterval = o.SnapshotInterval
	}
}

// GetHistorySeconds returns the history_seconds value or the default.
func (c *TuningConfig) GetHistorySeconds() float64 {
	if c.HistorySeconds == nil {
		return 3.0 // default
	}
	return *c.HistorySeconds
}

// GetFPSEstimate returns the fps_estimate value or the default.
func (c *TuningConfig) GetFPSEstimate() int {
	if c.FPSEstimate == nil {
		return 15 // default
	}
	return *c.FPSEstimate
}

// GetSpeedStationary returns the speed_stationary value or the default.
func (c *TuningConfig) GetSpeedStationary() float64 {
	if c.SpeedStationary == nil {
		return 0.1
	}
	return *c.SpeedStationary
}

// GetSpeedSlow returns the speed_slow value or the default.
func (c *TuningConfig) GetSpeedSlow() float64 {
	if c.SpeedSlow == nil {
		return 0.5
	}
	return *c.SpeedSlow
}

// GetSpeedFast returns the speed_fast value or the default.
func (c *TuningConfig) GetSpeedFast() float64 {
	if c.SpeedFast == nil {
		return 1.5
	}
	return *c.SpeedFast
}

// GetHipRatioSitting returns the hip_ratio_sitting value or the default.
// Hip-to-ankle distances below this fraction of the bbox height read as sitting.
func (c *TuningConfig) GetHipRatioSitting() float64 {
	if c.HipRatioSitting == nil {
		return 0.62
	}
	return *c.HipRatioSitting
}

// GetClassifyMinSamples returns the classify_min_samples value or the default.
func (c *TuningConfig) GetClassifyMinSamples() int {
	if c.ClassifyMinSamples == nil {
		return 10 // warm-up before the first classification
	}
	return *c.ClassifyMinSamples
}

// GetSmoothingSamples returns the smoothing_samples value or the default.
func (c *TuningConfig) GetSmoothingSamples() int {
	if c.SmoothingSamples == nil {
		return 5
	}
	return *c.SmoothingSamples
}

// GetFallDropRatio returns the fall_drop_ratio value or the default.
func (c *TuningConfig) GetFallDropRatio() float64 {
	if c.FallDropRatio == nil {
		return 0.30
	}
	return *c.FallDropRatio
}

// GetFallTimeThreshold returns the fall_time_threshold value or the default.
func (c *TuningConfig) GetFallTimeThreshold() float64 {
	if c.FallTimeThreshold == nil {
		return 0.5 // seconds
	}
	return *c.FallTimeThreshold
}

// GetFallMinConfidence returns the fall_min_confidence value or the default.
func (c *TuningConfig) GetFallMinConfidence() float64 {
	if c.FallMinConfidence == nil {
		return 0.3
	}
	return *c.FallMinConfidence
}

// GetKeypointMinConfidence returns the keypoint_min_confidence value or the default.
func (c *TuningConfig) GetKeypointMinConfidence() float64 {
	if c.KeypointMinConfidence == nil {
		return 0.2
	}
	return *c.KeypointMinConfidence
}

// GetIdentityConfidenceThreshold returns the identity_confidence_threshold value or the default.
func (c *TuningConfig) GetIdentityConfidenceThreshold() float64 {
	if c.IdentityConfidenceThreshold == nil {
		return 0.6
	}
	return *c.IdentityConfidenceThreshold
}

// GetIdentityMinConfirmations returns the identity_min_confirmations value or the default.
func (c *TuningConfig) GetIdentityMinConfirmations() int {
	if c.IdentityMinConfirmations == nil {
		return 3
	}
	return *c.IdentityMinConfirmations
}

// GetIdentityTimeoutSeconds returns the identity_timeout_seconds value or the default.
func (c *TuningConfig) GetIdentityTimeoutSeconds() float64 {
	if c.IdentityTimeoutSeconds == nil {
		return 5.0
	}
	return *c.IdentityTimeoutSeconds
}

// GetTrackEvictionSeconds returns the track_eviction_seconds value or the default.
func (c *TuningConfig) GetTrackEvictionSeconds() float64 {
	if c.TrackEvictionSeconds == nil {
		return 10.0
	}
	return *c.TrackEvictionSeconds
}

// GetResetOnGapSeconds returns the reset_on_gap_seconds value or the default.
// Zero disables gap-based track resets: a reused track id continues the
// existing history, which matches the behaviour of upstream trackers that
// guarantee id stability.
func (c *TuningConfig) GetResetOnGapSeconds() float64 {
	if c.ResetOnGapSeconds == nil {
		return 0
	}
	return *c.ResetOnGapSeconds
}

// GetSnapshotInterval parses and returns the SnapshotInterval as a time.Duration.
func (c *TuningConfig) GetSnapshotInterval() time.Duration {
	if c.SnapshotInterval == nil || *c.SnapshotInterval == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.SnapshotInterval)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}
