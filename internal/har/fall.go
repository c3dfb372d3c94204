package har

// detectFall scans the samples within FallTimeThreshold of the newest
// one and reports the fractional drop from the window's maximum
// pose-height ratio to the current one. A fall is a large drop inside a
// short window; the same drop spread over more time is someone sitting
// down or crouching.
//
// Both endpoints must carry a valid pose-height ratio and a detection
// confidence of at least FallMinConfidence, so a brief keypoint dropout
// cannot fake a drop.
func detectFall(tr *trackState, cfg Config) (dropRatio float64, detected bool) {
	n := len(tr.window)
	if n < 2 {
		return 0, false
	}

	cur := &tr.window[n-1]
	if !cur.poseOK || cur.conf < cfg.FallMinConfidence {
		return 0, false
	}

	horizon := cur.t - cfg.FallTimeThreshold

	maxRatio := 0.0
	found := false
	for i := n - 2; i >= 0; i-- {
		s := &tr.window[i]
		if s.t < horizon {
			break
		}
		if !s.poseOK || s.conf < cfg.FallMinConfidence {
			continue
		}
		if s.poseH > maxRatio {
			maxRatio = s.poseH
			found = true
		}
	}
	if !found || maxRatio <= 0 {
		return 0, false
	}

	dropRatio = (maxRatio - cur.poseH) / maxRatio
	return dropRatio, dropRatio > cfg.FallDropRatio
}
