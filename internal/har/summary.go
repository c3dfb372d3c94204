package har

import "fmt"

// Summary is the per-track statistics snapshot handed to callers.
// Reads are side-effect free with respect to statistics: two summaries
// without an intervening update are identical.
type Summary struct {
	TrackID            int64    `json:"track_id"`
	Identity           string   `json:"identity"`
	IdentityConfidence float64  `json:"identity_confidence"`
	CurrentActivity    Activity `json:"current_activity"`
	DurationSeconds    float64  `json:"duration_seconds"`
	TotalFrames        int      `json:"total_frames"`

	PercentMoving     float64 `json:"percent_moving"`
	PercentStationary float64 `json:"percent_stationary"`
	PercentSitting    float64 `json:"percent_sitting"`

	TotalDistanceNormalized float64  `json:"total_distance_normalized"`
	FallDetected            bool     `json:"fall_detected"`
	FallTimestamp           *float64 `json:"fall_timestamp,omitempty"`

	TotalActivityChanges int              `json:"total_activity_changes"`
	ActivityHistory      []ActivityChange `json:"activity_history"`

	FirstSeen float64 `json:"first_seen"`
	LastSeen  float64 `json:"last_seen"`
}

// recentChangeCount is how many trailing transitions a summary carries.
const recentChangeCount = 5

// Summary assembles the statistics snapshot for one track. Returns
// ErrNotFound once the track has been evicted.
func (e *Engine) Summary(trackID int64) (Summary, error) {
	tr, ok := e.lookup(trackID)
	if !ok {
		return Summary{}, fmt.Errorf("%w: %d", ErrNotFound, trackID)
	}

	// Identity expiry is evaluated lazily on read.
	tr.identity.expire(e.lastFrameTime, e.cfg)

	sum := Summary{
		TrackID:                 trackID,
		Identity:                tr.identity.currentName(),
		IdentityConfidence:      tr.identity.confidence,
		CurrentActivity:         tr.currentActivity,
		DurationSeconds:         tr.lastSeen - tr.firstSeen,
		TotalFrames:             tr.totalFrames,
		TotalDistanceNormalized: tr.distanceNorm,
		FallDetected:            tr.fallDetected,
		TotalActivityChanges:    len(tr.changes),
		FirstSeen:               tr.firstSeen,
		LastSeen:                tr.lastSeen,
	}
	if tr.fallDetected {
		at := tr.fallAt
		sum.FallTimestamp = &at
	}
	if tr.totalFrames > 0 {
		total := float64(tr.totalFrames)
		sum.PercentMoving = float64(tr.framesMoving) / total * 100
		sum.PercentStationary = float64(tr.framesStationary) / total * 100
		sum.PercentSitting = float64(tr.framesSitting) / total * 100
	}
	if n := len(tr.changes); n > 0 {
		start := n - recentChangeCount
		if start < 0 {
			start = 0
		}
		sum.ActivityHistory = append(sum.ActivityHistory, tr.changes[start:]...)
	}

	return sum, nil
}

// HistoryPoint is one retained window sample's derived series entry.
// Unavailable features are nil, not zero.
type HistoryPoint struct {
	Timestamp       float64  `json:"timestamp"`
	Speed           *float64 `json:"speed,omitempty"`
	PoseHeightRatio *float64 `json:"pose_height_ratio,omitempty"`
	HipRatio        *float64 `json:"hip_ratio,omitempty"`
}

// History returns the derived feature series for the track's retained
// window, oldest first.
func (e *Engine) History(trackID int64) ([]HistoryPoint, error) {
	tr, ok := e.lookup(trackID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, trackID)
	}

	points := make([]HistoryPoint, 0, len(tr.window))
	for i := range tr.window {
		s := &tr.window[i]
		p := HistoryPoint{Timestamp: s.t}
		if s.speedOK {
			v := s.speed
			p.Speed = &v
		}
		if s.poseOK {
			v := s.poseH
			p.PoseHeightRatio = &v
		}
		if s.hipOK {
			v := s.hip
			p.HipRatio = &v
		}
		points = append(points, p)
	}
	return points, nil
}

// Snapshot is the full export record for one track, shaped for an
// external writer: metadata, current state, statistics, and the
// retained history series.
type Snapshot struct {
	TrackID   int64  `json:"track_id"`
	SessionID string `json:"session_id"`

	Metadata struct {
		FirstSeen       float64 `json:"first_seen"`
		LastSeen        float64 `json:"last_seen"`
		TotalFrames     int     `json:"total_frames"`
		DurationSeconds float64 `json:"duration_seconds"`
	} `json:"metadata"`

	CurrentState struct {
		Activity     Activity    `json:"activity"`
		Identity     string      `json:"identity"`
		LastPosition *[2]float64 `json:"last_position,omitempty"`
		LastBBox     *BBox       `json:"last_bbox,omitempty"`
		FallDetected bool        `json:"fall_detected"`
	} `json:"current_state"`

	Statistics struct {
		TotalDistanceNormalized float64  `json:"total_distance_normalized"`
		PercentMoving           float64  `json:"percent_moving"`
		PercentStationary       float64  `json:"percent_stationary"`
		PercentSitting          float64  `json:"percent_sitting"`
		FallDetected            bool     `json:"fall_detected"`
		FallTimestamp           *float64 `json:"fall_timestamp,omitempty"`
		TotalActivityChanges    int      `json:"total_activity_changes"`
	} `json:"statistics"`

	History []HistoryPoint `json:"history"`
}

// Snapshot builds the export record for one track. The engine only
// shapes the record; writing it anywhere is the caller's job, outside
// the per-frame hot path.
func (e *Engine) Snapshot(trackID int64) (Snapshot, error) {
	sum, err := e.Summary(trackID)
	if err != nil {
		return Snapshot{}, err
	}
	// lookup succeeded in Summary, the track is live.
	tr := e.tracks[trackID]

	var snap Snapshot
	snap.TrackID = trackID
	snap.SessionID = e.sessionID

	snap.Metadata.FirstSeen = sum.FirstSeen
	snap.Metadata.LastSeen = sum.LastSeen
	snap.Metadata.TotalFrames = sum.TotalFrames
	snap.Metadata.DurationSeconds = sum.DurationSeconds

	snap.CurrentState.Activity = sum.CurrentActivity
	snap.CurrentState.Identity = sum.Identity
	snap.CurrentState.FallDetected = sum.FallDetected
	if n := len(tr.window); n > 0 {
		last := &tr.window[n-1]
		pos := [2]float64{last.cx, last.cy}
		bbox := last.bbox
		snap.CurrentState.LastPosition = &pos
		snap.CurrentState.LastBBox = &bbox
	}

	snap.Statistics.TotalDistanceNormalized = sum.TotalDistanceNormalized
	snap.Statistics.PercentMoving = sum.PercentMoving
	snap.Statistics.PercentStationary = sum.PercentStationary
	snap.Statistics.PercentSitting = sum.PercentSitting
	snap.Statistics.FallDetected = sum.FallDetected
	snap.Statistics.FallTimestamp = sum.FallTimestamp
	snap.Statistics.TotalActivityChanges = sum.TotalActivityChanges

	snap.History, _ = e.History(trackID)

	return snap, nil
}
