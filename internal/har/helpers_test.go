package har

// Test observation builders. All observations use a 100x200 bbox so the
// normalized features are easy to reason about: a horizontal move of
// 20px over 0.1s is a normalized speed of 1.0.

// obsAt returns an observation with a 100x200 bbox centred at (cx, cy)
// and no keypoints.
func obsAt(ts, cx, cy float64) Observation {
	return Observation{
		Timestamp: ts,
		BBox: BBox{
			XMin: cx - 50, YMin: cy - 100,
			XMax: cx + 50, YMax: cy + 100,
		},
		Keypoints:  map[string]Keypoint{},
		Confidence: 0.9,
	}
}

// withPose adds nose and ankle keypoints so the observation's
// pose-height ratio comes out to poseRatio.
func withPose(obs Observation, poseRatio float64) Observation {
	ankleY := obs.BBox.YMax
	noseY := ankleY - poseRatio*obs.BBox.Height()
	obs.Keypoints[KeypointNose] = Keypoint{X: 0, Y: noseY, Confidence: 0.9}
	obs.Keypoints[KeypointLeftAnkle] = Keypoint{X: -10, Y: ankleY, Confidence: 0.9}
	obs.Keypoints[KeypointRightAnkle] = Keypoint{X: 10, Y: ankleY, Confidence: 0.9}
	return obs
}

// withHips adds hip keypoints (and ankles if absent) so the
// observation's hip ratio comes out to hipRatio.
func withHips(obs Observation, hipRatio float64) Observation {
	ankleY := obs.BBox.YMax
	if _, ok := obs.Keypoints[KeypointLeftAnkle]; !ok {
		obs.Keypoints[KeypointLeftAnkle] = Keypoint{X: -10, Y: ankleY, Confidence: 0.9}
		obs.Keypoints[KeypointRightAnkle] = Keypoint{X: 10, Y: ankleY, Confidence: 0.9}
	}
	hipY := ankleY - hipRatio*obs.BBox.Height()
	obs.Keypoints[KeypointLeftHip] = Keypoint{X: -10, Y: hipY, Confidence: 0.9}
	obs.Keypoints[KeypointRightHip] = Keypoint{X: 10, Y: hipY, Confidence: 0.9}
	return obs
}

// testConfig returns defaults adjusted for short deterministic tests:
// no warm-up beyond the two samples a speed needs, no smoothing lag.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ClassifyMinSamples = 2
	cfg.SmoothingSamples = 1
	return cfg
}
