package har

import "github.com/oakline-data/activity.report/internal/config"

// Config holds the resolved engine parameters. Build one with
// ConfigFromTuning; the zero value is not usable.
type Config struct {
	HistorySeconds float64 // per-track sample retention horizon
	FPSEstimate    int     // approximate frame rate, sizes window capacity

	// Classifier thresholds. Speeds are normalized (bbox-heights/second)
	// and band boundaries are inclusive on the lower bound.
	SpeedStationary    float64
	SpeedSlow          float64
	SpeedFast          float64
	HipRatioSitting    float64 // hip ratio below this reads as sitting
	ClassifyMinSamples int     // window samples required before classifying
	SmoothingSamples   int     // trailing samples averaged for speed/hip ratio

	// Fall detection
	FallDropRatio     float64 // fractional pose-height drop that trips a fall
	FallTimeThreshold float64 // seconds; drop must happen within this window
	FallMinConfidence float64 // detection confidence floor on both endpoints

	KeypointMinConfidence float64 // joints below this are treated as absent

	// Identity confirmation
	IdentityConfidenceThreshold float64
	IdentityMinConfirmations    int
	IdentityTimeoutSeconds      float64

	// Track lifecycle
	TrackEvictionSeconds float64
	// ResetOnGapSeconds, when positive, resets a track's history,
	// identity and stats if the gap between consecutive observations
	// for the same id exceeds it. Guards against upstream trackers
	// that reuse numeric ids for different people after occlusion.
	// Zero preserves state across gaps.
	ResetOnGapSeconds float64
}

// ConfigFromTuning builds an engine Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		HistorySeconds:              cfg.GetHistorySeconds(),
		FPSEstimate:                 cfg.GetFPSEstimate(),
		SpeedStationary:             cfg.GetSpeedStationary(),
		SpeedSlow:                   cfg.GetSpeedSlow(),
		SpeedFast:                   cfg.GetSpeedFast(),
		HipRatioSitting:             cfg.GetHipRatioSitting(),
		ClassifyMinSamples:          cfg.GetClassifyMinSamples(),
		SmoothingSamples:            cfg.GetSmoothingSamples(),
		FallDropRatio:               cfg.GetFallDropRatio(),
		FallTimeThreshold:           cfg.GetFallTimeThreshold(),
		FallMinConfidence:           cfg.GetFallMinConfidence(),
		KeypointMinConfidence:       cfg.GetKeypointMinConfidence(),
		IdentityConfidenceThreshold: cfg.GetIdentityConfidenceThreshold(),
		IdentityMinConfirmations:    cfg.GetIdentityMinConfirmations(),
		IdentityTimeoutSeconds:      cfg.GetIdentityTimeoutSeconds(),
		TrackEvictionSeconds:        cfg.GetTrackEvictionSeconds(),
		ResetOnGapSeconds:           cfg.GetResetOnGapSeconds(),
	}
}

// DefaultConfig returns the engine configuration with every parameter
// at its documented default.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}
