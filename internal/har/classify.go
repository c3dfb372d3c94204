package har

// Features is the small feature vector the classifier operates on.
// Speed is the smoothed normalized speed; an undefined speed (first
// sample, zero dt) is fed in as 0. HipRatio is only meaningful when
// HipRatioValid is set.
type Features struct {
	Speed         float64
	HipRatio      float64
	HipRatioValid bool
}

// Thresholds is the classifier's tuning subset of Config.
type Thresholds struct {
	SpeedStationary float64
	SpeedSlow       float64
	SpeedFast       float64
	HipRatioSitting float64
}

func (c Config) thresholds() Thresholds {
	return Thresholds{
		SpeedStationary: c.SpeedStationary,
		SpeedSlow:       c.SpeedSlow,
		SpeedFast:       c.SpeedFast,
		HipRatioSitting: c.HipRatioSitting,
	}
}

// Classify maps a feature vector to an activity label. Pure function,
// no temporal state.
//
// Speed bands, inclusive on the lower bound:
//
//	[0, slow)    -> stationary (covers the stationary band and the
//	                stationary/slow boundary band)
//	[slow, inf)  -> moving (the fast band is still "moving"; the split
//	                only matters for threshold tuning)
//
// A valid hip ratio below HipRatioSitting overrides a stationary verdict
// to sitting: a seated person's hips sit close to ankle height, and
// posture is a stronger signal than velocity when the subject is still.
func Classify(f Features, th Thresholds) Activity {
	sitting := f.HipRatioValid && f.HipRatio < th.HipRatioSitting

	switch {
	case f.Speed < th.SpeedStationary:
		if sitting {
			return ActivitySitting
		}
		return ActivityStationary
	case f.Speed < th.SpeedSlow:
		// Slow drift at the stationary boundary: posture still decides.
		if sitting {
			return ActivitySitting
		}
		return ActivityStationary
	default:
		return ActivityMoving
	}
}
