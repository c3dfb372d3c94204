package db

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline-data/activity.report/internal/har"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateUp())
	return db
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, db.MigrateUp())
	})
}

func testSnapshot(trackID int64) har.Snapshot {
	var snap har.Snapshot
	snap.TrackID = trackID
	snap.SessionID = "session-1"
	snap.Metadata.FirstSeen = 1.0
	snap.Metadata.LastSeen = 11.0
	snap.Metadata.TotalFrames = 150
	snap.Metadata.DurationSeconds = 10.0
	snap.CurrentState.Activity = har.ActivityMoving
	snap.CurrentState.Identity = "Ahmed"
	snap.Statistics.PercentMoving = 60.0
	snap.Statistics.PercentStationary = 30.0
	snap.Statistics.PercentSitting = 10.0
	snap.Statistics.TotalDistanceNormalized = 4.2
	return snap
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	require.NoError(t, db.InsertSnapshot(testSnapshot(7)))
	require.NoError(t, db.InsertSnapshot(testSnapshot(8)))

	rows, err := db.ListSnapshots(7, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1, "listing is scoped to the track")

	r := rows[0]
	assert.NotEmpty(t, r.SnapshotID)
	assert.Equal(t, "session-1", r.SessionID)
	assert.Equal(t, int64(7), r.TrackID)
	assert.Equal(t, "Ahmed", r.Identity)
	assert.Equal(t, string(har.ActivityMoving), r.Activity)
	assert.Equal(t, int64(150), r.TotalFrames)
	assert.InDelta(t, 10.0, r.DurationSeconds, 1e-9)
	assert.InDelta(t, 4.2, r.TotalDistanceNormalized, 1e-9)
	assert.False(t, r.FallDetected)

	t.Run("payload carries the full record", func(t *testing.T) {
		var snap har.Snapshot
		require.NoError(t, json.Unmarshal(r.Payload, &snap))
		assert.Equal(t, int64(7), snap.TrackID)
		assert.InDelta(t, 60.0, snap.Statistics.PercentMoving, 1e-9)
	})

	t.Run("unknown track lists empty", func(t *testing.T) {
		rows, err := db.ListSnapshots(99, 10)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestFallEventRoundTrip(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	require.NoError(t, db.InsertFallEvent("session-1", har.FallEvent{TrackID: 3, At: 12.4, DropRatio: 0.42}))
	require.NoError(t, db.InsertFallEvent("session-1", har.FallEvent{TrackID: 5, At: 20.1, DropRatio: 0.35}))

	events, err := db.ListFallEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, int64(5), events[0].TrackID)
	assert.InDelta(t, 20.1, events[0].DetectedAt, 1e-9)
	assert.Equal(t, int64(3), events[1].TrackID)
	assert.InDelta(t, 0.42, events[1].DropRatio, 1e-9)
	assert.Equal(t, "session-1", events[0].SessionID)
	assert.NotEmpty(t, events[0].EventID)

	t.Run("limit applies", func(t *testing.T) {
		events, err := db.ListFallEvents(1)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}
