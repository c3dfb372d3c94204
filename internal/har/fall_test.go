package har

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallDetectedOnRapidDrop(t *testing.T) {
	t.Parallel()

	e := NewEngine(testConfig())

	// Pose height 0.9 collapses to 0.55 within 0.4s: a 38.9% drop,
	// well past the 30% threshold inside the 0.5s window.
	_, err := e.Update(1, withPose(obsAt(1.0, 0, 0), 0.9))
	require.NoError(t, err)
	_, err = e.Update(1, withPose(obsAt(1.2, 0, 0), 0.9))
	require.NoError(t, err)
	_, err = e.Update(1, withPose(obsAt(1.4, 0, 0), 0.55))
	require.NoError(t, err)

	sum, err := e.Summary(1)
	require.NoError(t, err)
	assert.True(t, sum.FallDetected)
	require.NotNil(t, sum.FallTimestamp)
	assert.InDelta(t, 1.4, *sum.FallTimestamp, 1e-9)

	t.Run("event queued exactly once", func(t *testing.T) {
		events := e.ConsumeFallEvents()
		require.Len(t, events, 1)
		assert.Equal(t, int64(1), events[0].TrackID)
		assert.InDelta(t, 1.4, events[0].At, 1e-9)
		assert.InDelta(t, 0.3889, events[0].DropRatio, 1e-3)

		assert.Nil(t, e.ConsumeFallEvents())
	})

	t.Run("flag is sticky across recovery", func(t *testing.T) {
		// Standing back up and dropping again must not raise a second
		// alert for the same track.
		_, err := e.Update(1, withPose(obsAt(2.0, 0, 0), 0.9))
		require.NoError(t, err)
		_, err = e.Update(1, withPose(obsAt(2.2, 0, 0), 0.55))
		require.NoError(t, err)

		assert.Nil(t, e.ConsumeFallEvents())
		assert.Equal(t, 1, e.GlobalStats().TotalFallsDetected)
	})
}

func TestFallNotDetectedOnGradualDrop(t *testing.T) {
	t.Parallel()

	e := NewEngine(testConfig())

	// The same total drop ramped over 0.8s. At every step the maximum
	// ratio still inside the 0.5s window is too recent, and too low,
	// for the drop to cross the threshold.
	ramp := []struct{ ts, ratio float64 }{
		{1.0, 0.9},
		{1.2, 0.8125},
		{1.4, 0.725},
		{1.6, 0.6375},
		{1.8, 0.55},
	}
	for _, p := range ramp {
		_, err := e.Update(1, withPose(obsAt(p.ts, 0, 0), p.ratio))
		require.NoError(t, err)
	}

	sum, err := e.Summary(1)
	require.NoError(t, err)
	assert.False(t, sum.FallDetected)
	assert.Nil(t, sum.FallTimestamp)
	assert.Nil(t, e.ConsumeFallEvents())
}

func TestFallRequiresConfidentPose(t *testing.T) {
	t.Parallel()

	t.Run("low-confidence current detection", func(t *testing.T) {
		t.Parallel()
		e := NewEngine(testConfig())
		_, err := e.Update(1, withPose(obsAt(1.0, 0, 0), 0.9))
		require.NoError(t, err)

		obs := withPose(obsAt(1.2, 0, 0), 0.55)
		obs.Confidence = 0.2 // below the fall confidence floor
		_, err = e.Update(1, obs)
		require.NoError(t, err)

		assert.Nil(t, e.ConsumeFallEvents())
	})

	t.Run("no confident baseline in the window", func(t *testing.T) {
		t.Parallel()
		e := NewEngine(testConfig())
		obs := withPose(obsAt(1.0, 0, 0), 0.9)
		obs.Confidence = 0.2
		_, err := e.Update(1, obs)
		require.NoError(t, err)
		_, err = e.Update(1, withPose(obsAt(1.2, 0, 0), 0.55))
		require.NoError(t, err)

		assert.Nil(t, e.ConsumeFallEvents())
	})

	t.Run("keypoint dropout cannot fake a drop", func(t *testing.T) {
		t.Parallel()
		e := NewEngine(testConfig())
		_, err := e.Update(1, withPose(obsAt(1.0, 0, 0), 0.9))
		require.NoError(t, err)
		// Ankles lost for a frame: no pose ratio, no evaluation.
		_, err = e.Update(1, obsAt(1.2, 0, 0))
		require.NoError(t, err)

		assert.Nil(t, e.ConsumeFallEvents())
	})
}

func TestDetectFallWindowBoundary(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	tr := &trackState{}

	t.Run("baseline exactly at the horizon counts", func(t *testing.T) {
		tr.window = []sample{
			{t: 1.0, poseH: 0.9, poseOK: true, conf: 0.9},
			{t: 1.5, poseH: 0.55, poseOK: true, conf: 0.9},
		}
		drop, detected := detectFall(tr, cfg)
		require.True(t, detected)
		assert.InDelta(t, 0.3889, drop, 1e-3)
	})

	t.Run("baseline just past the horizon is ignored", func(t *testing.T) {
		tr.window = []sample{
			{t: 0.9, poseH: 0.9, poseOK: true, conf: 0.9},
			{t: 1.5, poseH: 0.55, poseOK: true, conf: 0.9},
		}
		_, detected := detectFall(tr, cfg)
		assert.False(t, detected)
	})
}
