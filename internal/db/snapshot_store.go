package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/oakline-data/activity.report/internal/har"
)

// SnapshotRow is one persisted track snapshot. The headline columns are
// queryable; the full export record rides along as JSON payload.
type SnapshotRow struct {
	SnapshotID              string          `json:"snapshot_id"`
	SessionID               string          `json:"session_id"`
	TrackID                 int64           `json:"track_id"`
	Identity                string          `json:"identity"`
	Activity                string          `json:"activity"`
	FirstSeen               float64         `json:"first_seen"`
	LastSeen                float64         `json:"last_seen"`
	DurationSeconds         float64         `json:"duration_seconds"`
	TotalFrames             int64           `json:"total_frames"`
	PercentMoving           float64         `json:"percent_moving"`
	PercentStationary       float64         `json:"percent_stationary"`
	PercentSitting          float64         `json:"percent_sitting"`
	TotalDistanceNormalized float64         `json:"total_distance_normalized"`
	FallDetected            bool            `json:"fall_detected"`
	Payload                 json.RawMessage `json:"payload,omitempty"`
}

// InsertSnapshot persists one engine snapshot.
func (db *DB) InsertSnapshot(snap har.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot payload: %w", err)
	}

	return retryOnBusy(func() error {
		_, err := db.Exec(`
			INSERT INTO track_snapshots (
				snapshot_id, session_id, track_id, identity, activity,
				first_seen, last_seen, duration_seconds, total_frames,
				percent_moving, percent_stationary, percent_sitting,
				total_distance_normalized, fall_detected, payload
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), snap.SessionID, snap.TrackID,
			snap.CurrentState.Identity, string(snap.CurrentState.Activity),
			snap.Metadata.FirstSeen, snap.Metadata.LastSeen,
			snap.Metadata.DurationSeconds, snap.Metadata.TotalFrames,
			snap.Statistics.PercentMoving, snap.Statistics.PercentStationary,
			snap.Statistics.PercentSitting, snap.Statistics.TotalDistanceNormalized,
			snap.Statistics.FallDetected, string(payload),
		)
		return err
	})
}

// ListSnapshots returns the most recent snapshots for a track, newest
// first.
func (db *DB) ListSnapshots(trackID int64, limit int) ([]*SnapshotRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT snapshot_id, session_id, track_id, identity, activity,
		       first_seen, last_seen, duration_seconds, total_frames,
		       percent_moving, percent_stationary, percent_sitting,
		       total_distance_normalized, fall_detected, payload
		FROM track_snapshots
		WHERE track_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, trackID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*SnapshotRow
	for rows.Next() {
		r, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (*SnapshotRow, error) {
	var r SnapshotRow
	var identity, activity, payload sql.NullString
	err := rows.Scan(
		&r.SnapshotID, &r.SessionID, &r.TrackID, &identity, &activity,
		&r.FirstSeen, &r.LastSeen, &r.DurationSeconds, &r.TotalFrames,
		&r.PercentMoving, &r.PercentStationary, &r.PercentSitting,
		&r.TotalDistanceNormalized, &r.FallDetected, &payload,
	)
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	r.Identity = identity.String
	r.Activity = activity.String
	if payload.Valid {
		r.Payload = json.RawMessage(payload.String)
	}
	return &r, nil
}

// FallEventRow is one persisted fall alert.
type FallEventRow struct {
	EventID    string  `json:"event_id"`
	SessionID  string  `json:"session_id"`
	TrackID    int64   `json:"track_id"`
	DetectedAt float64 `json:"detected_at"`
	DropRatio  float64 `json:"drop_ratio"`
}

// InsertFallEvent persists one edge-triggered fall event.
func (db *DB) InsertFallEvent(sessionID string, ev har.FallEvent) error {
	return retryOnBusy(func() error {
		_, err := db.Exec(`
			INSERT INTO fall_events (event_id, session_id, track_id, detected_at, drop_ratio)
			VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), sessionID, ev.TrackID, ev.At, ev.DropRatio,
		)
		return err
	})
}

// ListFallEvents returns the most recent fall events, newest first.
func (db *DB) ListFallEvents(limit int) ([]*FallEventRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT event_id, session_id, track_id, detected_at, drop_ratio
		FROM fall_events
		ORDER BY detected_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query fall events: %w", err)
	}
	defer rows.Close()

	var out []*FallEventRow
	for rows.Next() {
		var r FallEventRow
		if err := rows.Scan(&r.EventID, &r.SessionID, &r.TrackID, &r.DetectedAt, &r.DropRatio); err != nil {
			return nil, fmt.Errorf("scan fall event: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
