// Package har implements the temporal human-activity engine: it turns
// noisy per-frame pose observations of tracked persons into stable
// activity labels, fall alerts, and confirmed identities.
//
// The engine is deliberately unsynchronized. It is owned by a single
// frame-processing loop; a concurrent host must serialize all calls
// (the HTTP layer in internal/api does this with one mutex).
package har

import (
	"errors"
	"math"
)

// Activity is a classified activity label for a track.
type Activity string

const (
	ActivityUnknown    Activity = "unknown"
	ActivityStationary Activity = "stationary"
	ActivityMoving     Activity = "moving"
	ActivitySitting    Activity = "sitting"
)

// COCO-17 keypoint names used by the feature extractor. The pose model
// emits all seventeen; only these five drive classification.
const (
	KeypointNose       = "nose"
	KeypointLeftHip    = "left_hip"
	KeypointRightHip   = "right_hip"
	KeypointLeftAnkle  = "left_ankle"
	KeypointRightAnkle = "right_ankle"
)

// UnknownName is the sentinel identity for a track with no confirmed name.
const UnknownName = "Unknown"

// Sentinel errors surfaced by engine operations.
var (
	// ErrNotFound is returned when a track id is unknown or has been
	// evicted. Callers must treat this as "no longer tracked".
	ErrNotFound = errors.New("track not found")
	// ErrInvalidObservation is returned for malformed observations
	// (missing bbox, non-finite values, non-monotonic timestamp).
	// The call leaves no state behind.
	ErrInvalidObservation = errors.New("invalid observation")
)

// BBox is an axis-aligned bounding box in image coordinates
// (y increases downward). Normalized detector coordinates work too;
// every derived feature divides by the box height.
type BBox struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// Width returns the bbox width.
func (b BBox) Width() float64 { return b.XMax - b.XMin }

// Height returns the bbox height.
func (b BBox) Height() float64 { return b.YMax - b.YMin }

// Center returns the bbox center point.
func (b BBox) Center() (x, y float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

func (b BBox) valid() bool {
	for _, v := range []float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.XMax > b.XMin && b.YMax > b.YMin
}

// Keypoint is a single named pose joint with its detection confidence.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Observation is one frame's detection for a single track, as supplied
// by the external pose pipeline.
type Observation struct {
	// Timestamp in monotonic seconds (media time, not wall clock).
	Timestamp float64 `json:"timestamp"`
	BBox      BBox    `json:"bbox"`
	// Keypoints maps joint name to position. Entries may be absent;
	// missing joints degrade features, they never fail the call.
	Keypoints map[string]Keypoint `json:"keypoints"`
	// Confidence is the overall detection confidence in [0,1].
	Confidence float64 `json:"confidence"`
}

func (o Observation) validate() error {
	if math.IsNaN(o.Timestamp) || math.IsInf(o.Timestamp, 0) {
		return errors.New("non-finite timestamp")
	}
	if !o.BBox.valid() {
		return errors.New("missing or degenerate bbox")
	}
	if math.IsNaN(o.Confidence) || o.Confidence < 0 {
		return errors.New("bad detection confidence")
	}
	return nil
}

// sample is one retained window entry. Raw keypoints are not kept:
// every downstream consumer works off the derived ratios, and dropping
// the 17-joint map keeps per-track memory flat over long runs.
type sample struct {
	t    float64
	bbox BBox
	cx   float64
	cy   float64
	conf float64

	// Derived once at ingest.
	speed    float64 // bbox-heights per second; valid only if speedOK
	speedOK  bool
	stepNorm float64 // displacement / bbox height for this step
	poseH    float64 // (nose to ankle) / bbox height; valid only if poseOK
	poseOK   bool
	hip      float64 // (hip to ankle) / bbox height; valid only if hipOK
	hipOK    bool
}

// ActivityChange is one recorded transition in a track's activity log.
type ActivityChange struct {
	From Activity `json:"from"`
	To   Activity `json:"to"`
	At   float64  `json:"timestamp"`
}

// FallEvent is the edge-triggered record emitted once when a track's
// fall state first trips.
type FallEvent struct {
	TrackID   int64   `json:"track_id"`
	At        float64 `json:"timestamp"`
	DropRatio float64 `json:"drop_ratio"`
}

// trackState is the engine's per-track record. Created implicitly on
// the first Update for an unseen id, discarded on eviction.
type trackState struct {
	id     int64
	window []sample // ordered by time, pruned to the history horizon

	firstSeen   float64
	lastSeen    float64
	totalFrames int

	currentActivity Activity
	changes         []ActivityChange
	changeCursor    int // index of the first unreported change

	fallDetected  bool
	fallAt        float64
	fallDropRatio float64

	identity identityState

	framesStationary int
	framesMoving     int
	framesSitting    int
	distanceNorm     float64
}
