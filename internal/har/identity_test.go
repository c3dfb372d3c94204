package har

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityVotingConfirms(t *testing.T) {
	t.Parallel()

	e := NewEngine(testConfig())
	_, err := e.Update(1, obsAt(1.0, 0, 0))
	require.NoError(t, err)

	name, ok := e.UpdateIdentity(1, "Ahmed", 0.85, 1.1)
	assert.False(t, ok, "one guess is not a confirmation")
	assert.Empty(t, name)

	_, ok = e.UpdateIdentity(1, "Ahmed", 0.85, 1.2)
	assert.False(t, ok)

	name, ok = e.UpdateIdentity(1, "Ahmed", 0.85, 1.3)
	require.True(t, ok)
	assert.Equal(t, "Ahmed", name)

	sum, err := e.Summary(1)
	require.NoError(t, err)
	assert.Equal(t, "Ahmed", sum.Identity)
	assert.InDelta(t, 0.85, sum.IdentityConfidence, 1e-9)
}

func TestIdentityNotFlippedBySingleDisagreement(t *testing.T) {
	t.Parallel()

	e := NewEngine(testConfig())
	_, err := e.Update(1, obsAt(1.0, 0, 0))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		e.UpdateIdentity(1, "Ahmed", 0.85, 1.1+float64(i)*0.1)
	}

	name, ok := e.UpdateIdentity(1, "Sara", 0.90, 1.5)
	require.True(t, ok, "the confirmed name survives one disagreement")
	assert.Equal(t, "Ahmed", name)

	t.Run("alternate takes over after its own streak", func(t *testing.T) {
		e.UpdateIdentity(1, "Sara", 0.90, 1.6)
		name, ok := e.UpdateIdentity(1, "Sara", 0.90, 1.7)
		require.True(t, ok)
		assert.Equal(t, "Sara", name)
	})
}

func TestIdentityIgnoresNoise(t *testing.T) {
	t.Parallel()

	e := NewEngine(testConfig())
	_, err := e.Update(1, obsAt(1.0, 0, 0))
	require.NoError(t, err)

	t.Run("sub-threshold confidence", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, ok := e.UpdateIdentity(1, "Ahmed", 0.5, 1.1+float64(i)*0.1)
			assert.False(t, ok)
		}
	})

	t.Run("unknown sentinel from the recognizer", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, ok := e.UpdateIdentity(1, UnknownName, 0.99, 2.0+float64(i)*0.1)
			assert.False(t, ok)
		}
	})

	sum, err := e.Summary(1)
	require.NoError(t, err)
	assert.Equal(t, UnknownName, sum.Identity)
}

func TestIdentityExpiry(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.IdentityTimeoutSeconds = 5.0
	e := NewEngine(cfg)

	_, err := e.Update(1, obsAt(1.0, 0, 0))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		e.UpdateIdentity(1, "Ahmed", 0.85, 1.0+float64(i)*0.1)
	}

	// Pose frames keep arriving but recognition goes quiet for 6s.
	for ts := 2.0; ts < 8.0; ts += 1.0 {
		_, err := e.Update(1, obsAt(ts, 0, 0))
		require.NoError(t, err)
	}

	sum, err := e.Summary(1)
	require.NoError(t, err)
	assert.Equal(t, UnknownName, sum.Identity, "a confirmed name lapses without reconfirmation")
	assert.Zero(t, sum.IdentityConfidence)
}

func TestIdentityReconfirmationKeepsAlive(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.IdentityTimeoutSeconds = 5.0
	e := NewEngine(cfg)

	_, err := e.Update(1, obsAt(1.0, 0, 0))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		e.UpdateIdentity(1, "Ahmed", 0.85, 1.0+float64(i)*0.1)
	}

	// Reconfirm every 3s across 12s of footage.
	for ts := 2.0; ts < 13.0; ts += 1.0 {
		_, err := e.Update(1, obsAt(ts, 0, 0))
		require.NoError(t, err)
		if int(ts)%3 == 0 {
			e.UpdateIdentity(1, "Ahmed", 0.85, ts)
		}
	}

	sum, err := e.Summary(1)
	require.NoError(t, err)
	assert.Equal(t, "Ahmed", sum.Identity)
}

func TestNeedsRecognition(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.IdentityTimeoutSeconds = 5.0
	e := NewEngine(cfg)

	assert.False(t, e.NeedsRecognition(1), "nothing to recognize on an unseen track")

	_, err := e.Update(1, obsAt(1.0, 0, 0))
	require.NoError(t, err)
	assert.True(t, e.NeedsRecognition(1), "unconfirmed track wants a pass")

	for i := 0; i < 3; i++ {
		e.UpdateIdentity(1, "Ahmed", 0.85, 1.0+float64(i)*0.1)
	}
	assert.False(t, e.NeedsRecognition(1), "freshly confirmed")

	// Past half the timeout the confirmation is worth refreshing.
	_, err = e.Update(1, obsAt(4.5, 0, 0))
	require.NoError(t, err)
	assert.True(t, e.NeedsRecognition(1))
}

func TestUpdateIdentityUnknownTrack(t *testing.T) {
	t.Parallel()

	e := NewEngine(testConfig())
	name, ok := e.UpdateIdentity(99, "Ahmed", 0.95, 1.0)
	assert.False(t, ok)
	assert.Empty(t, name)
	assert.Empty(t, e.ActiveTracks(), "identity guesses never create tracks")
}
