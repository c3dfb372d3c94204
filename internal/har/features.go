package har

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// deriveSample converts a raw observation into a window sample with its
// scale-invariant features computed once. prev is the track's latest
// retained sample, or nil for a first observation.
//
// All ratios divide by the bbox height, which makes them independent of
// camera distance and resolution. Missing or low-confidence keypoints
// leave the corresponding feature unavailable rather than failing.
func deriveSample(obs Observation, prev *sample, cfg Config) sample {
	s := sample{
		t:    obs.Timestamp,
		bbox: obs.BBox,
		conf: obs.Confidence,
	}
	s.cx, s.cy = obs.BBox.Center()

	h := obs.BBox.Height()

	if prev != nil {
		dt := s.t - prev.t
		if dt > 0 && h > 0 {
			dist := math.Hypot(s.cx-prev.cx, s.cy-prev.cy)
			s.stepNorm = dist / h
			s.speed = s.stepNorm / dt
			s.speedOK = true
		}
	}

	if h > 0 {
		// Both ratios anchor on the ankle pair; nose and hips are
		// gated independently so a hidden face does not cost the
		// sitting signal.
		if ankleY, ok := pairY(obs.Keypoints, cfg.KeypointMinConfidence, KeypointLeftAnkle, KeypointRightAnkle); ok {
			if noseY, ok := jointY(obs.Keypoints, cfg.KeypointMinConfidence, KeypointNose); ok {
				s.poseH = math.Abs(ankleY-noseY) / h
				s.poseOK = true
			}
			if hipY, ok := pairY(obs.Keypoints, cfg.KeypointMinConfidence, KeypointLeftHip, KeypointRightHip); ok {
				s.hip = math.Abs(ankleY-hipY) / h
				s.hipOK = true
			}
		}
	}

	return s
}

// jointY returns the y coordinate of a single named joint, if present
// with acceptable confidence.
func jointY(kps map[string]Keypoint, minConf float64, name string) (float64, bool) {
	kp, ok := kps[name]
	if !ok || kp.Confidence < minConf {
		return 0, false
	}
	return kp.Y, true
}

// pairY returns the mean y of a left/right joint pair. Both joints must
// be present; a one-sided detection is too noisy to trust for ratios.
func pairY(kps map[string]Keypoint, minConf float64, left, right string) (float64, bool) {
	ly, ok := jointY(kps, minConf, left)
	if !ok {
		return 0, false
	}
	ry, ok := jointY(kps, minConf, right)
	if !ok {
		return 0, false
	}
	return (ly + ry) / 2, true
}

// recentFeatures assembles the smoothed feature vector for classification
// from the last n window samples. Smoothing over a handful of frames cuts
// label flicker without adding lag a viewer would notice.
func (tr *trackState) recentFeatures(n int) Features {
	if n < 1 {
		n = 1
	}
	start := len(tr.window) - n
	if start < 0 {
		start = 0
	}

	var speeds, hips []float64
	for i := start; i < len(tr.window); i++ {
		s := &tr.window[i]
		if s.speedOK {
			speeds = append(speeds, s.speed)
		}
		if s.hipOK {
			hips = append(hips, s.hip)
		}
	}

	var f Features
	if len(speeds) > 0 {
		f.Speed = stat.Mean(speeds, nil)
	}
	if len(hips) > 0 {
		f.HipRatio = stat.Mean(hips, nil)
		f.HipRatioValid = true
	}
	return f
}
