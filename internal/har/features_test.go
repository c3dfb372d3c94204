package har

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSampleSpeed(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	t.Run("no previous sample leaves speed undefined", func(t *testing.T) {
		t.Parallel()
		s := deriveSample(obsAt(1.0, 0, 0), nil, cfg)
		assert.False(t, s.speedOK)
		assert.Zero(t, s.stepNorm)
	})

	t.Run("normalized by bbox height and dt", func(t *testing.T) {
		t.Parallel()
		prev := deriveSample(obsAt(1.0, 0, 0), nil, cfg)
		// 20px over 0.1s with a 200px-tall box: one box-height/second.
		s := deriveSample(obsAt(1.1, 20, 0), &prev, cfg)
		require.True(t, s.speedOK)
		assert.InDelta(t, 1.0, s.speed, 1e-9)
		assert.InDelta(t, 0.1, s.stepNorm, 1e-9)
	})

	t.Run("diagonal displacement uses euclidean distance", func(t *testing.T) {
		t.Parallel()
		prev := deriveSample(obsAt(1.0, 0, 0), nil, cfg)
		s := deriveSample(obsAt(2.0, 30, 40), &prev, cfg)
		require.True(t, s.speedOK)
		assert.InDelta(t, 0.25, s.speed, 1e-9) // 50px / 1s / 200px
	})
}

func TestDeriveSampleRatios(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	t.Run("pose height and hip ratios", func(t *testing.T) {
		t.Parallel()
		obs := withHips(withPose(obsAt(1.0, 0, 0), 0.9), 0.5)
		s := deriveSample(obs, nil, cfg)
		require.True(t, s.poseOK)
		require.True(t, s.hipOK)
		assert.InDelta(t, 0.9, s.poseH, 1e-9)
		assert.InDelta(t, 0.5, s.hip, 1e-9)
	})

	t.Run("missing ankles disable both ratios", func(t *testing.T) {
		t.Parallel()
		obs := withPose(obsAt(1.0, 0, 0), 0.9)
		delete(obs.Keypoints, KeypointLeftAnkle)
		s := deriveSample(obs, nil, cfg)
		assert.False(t, s.poseOK)
		assert.False(t, s.hipOK)
	})

	t.Run("hidden face keeps the hip ratio", func(t *testing.T) {
		t.Parallel()
		obs := withHips(obsAt(1.0, 0, 0), 0.5)
		s := deriveSample(obs, nil, cfg)
		assert.False(t, s.poseOK)
		require.True(t, s.hipOK)
		assert.InDelta(t, 0.5, s.hip, 1e-9)
	})

	t.Run("low-confidence keypoints are treated as absent", func(t *testing.T) {
		t.Parallel()
		obs := withPose(obsAt(1.0, 0, 0), 0.9)
		kp := obs.Keypoints[KeypointNose]
		kp.Confidence = 0.1 // below the 0.2 default gate
		obs.Keypoints[KeypointNose] = kp
		s := deriveSample(obs, nil, cfg)
		assert.False(t, s.poseOK)
	})
}

func TestRecentFeaturesSmoothing(t *testing.T) {
	t.Parallel()

	tr := &trackState{}
	tr.window = []sample{
		{t: 1.0, speed: 0.2, speedOK: true, hip: 0.5, hipOK: true},
		{t: 1.1, speed: 0.4, speedOK: true, hip: 0.7, hipOK: true},
		{t: 1.2, speed: 0.6, speedOK: true},
	}

	t.Run("means over the trailing window", func(t *testing.T) {
		t.Parallel()
		f := tr.recentFeatures(3)
		assert.InDelta(t, 0.4, f.Speed, 1e-9)
		require.True(t, f.HipRatioValid)
		assert.InDelta(t, 0.6, f.HipRatio, 1e-9)
	})

	t.Run("window shorter than requested", func(t *testing.T) {
		t.Parallel()
		f := tr.recentFeatures(10)
		assert.InDelta(t, 0.4, f.Speed, 1e-9)
	})

	t.Run("no valid hip samples invalidates the ratio", func(t *testing.T) {
		t.Parallel()
		f := tr.recentFeatures(1) // last sample has speed only
		assert.InDelta(t, 0.6, f.Speed, 1e-9)
		assert.False(t, f.HipRatioValid)
	})
}
