package har

import (
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
)

// GlobalStats are engine-wide running counters.
type GlobalStats struct {
	TotalTracksSeen      int `json:"total_tracks_seen"`
	ActiveTracks         int `json:"active_tracks"`
	TotalFallsDetected   int `json:"total_falls_detected"`
	TotalActivityChanges int `json:"total_activity_changes"`
}

// Engine owns all per-track temporal state. One instance per video
// stream; all methods must be called from a single goroutine (or under
// an external lock).
type Engine struct {
	cfg    Config
	tracks map[int64]*trackState

	// lastFrameTime is the latest timestamp seen across all updates.
	// Eviction and identity expiry measure against it rather than the
	// wall clock, so replayed footage behaves the same as live.
	lastFrameTime float64

	sessionID string
	global    GlobalStats

	fallEvents []FallEvent
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:       cfg,
		tracks:    make(map[int64]*trackState),
		sessionID: uuid.New().String(),
	}
}

// SessionID identifies this engine run in persisted snapshots.
func (e *Engine) SessionID() string { return e.sessionID }

// LastFrameTime returns the latest timestamp processed across all
// tracks, or 0 before the first update.
func (e *Engine) LastFrameTime() float64 { return e.lastFrameTime }

// Config returns the engine's current configuration.
func (e *Engine) Config() Config { return e.cfg }

// Reconfigure swaps the tuning parameters. Takes effect from the next
// update; retained windows are re-pruned lazily as samples arrive.
func (e *Engine) Reconfigure(cfg Config) { e.cfg = cfg }

// Update ingests one frame's observation for a track, creating the
// track if unseen, and returns the track's current activity label.
//
// Observations must arrive in non-decreasing time order per track;
// a stale or duplicate timestamp is rejected as invalid and mutates
// nothing.
func (e *Engine) Update(trackID int64, obs Observation) (Activity, error) {
	if err := obs.validate(); err != nil {
		return ActivityUnknown, fmt.Errorf("%w: %v", ErrInvalidObservation, err)
	}

	tr, ok := e.tracks[trackID]
	if !ok {
		tr = e.newTrack(trackID, obs.Timestamp)
	} else if e.cfg.ResetOnGapSeconds > 0 && obs.Timestamp-tr.lastSeen > e.cfg.ResetOnGapSeconds {
		// The upstream tracker likely reused this id for a different
		// person after an occlusion gap. Start over.
		log.Printf("[RESET] track %d gap of %.2fs exceeds reset threshold, clearing state",
			trackID, obs.Timestamp-tr.lastSeen)
		tr = e.newTrack(trackID, obs.Timestamp)
	}

	var prev *sample
	if n := len(tr.window); n > 0 {
		prev = &tr.window[n-1]
		if obs.Timestamp <= prev.t {
			return tr.currentActivity, fmt.Errorf("%w: timestamp %.3f not after latest sample %.3f",
				ErrInvalidObservation, obs.Timestamp, prev.t)
		}
	}

	s := deriveSample(obs, prev, e.cfg)
	tr.window = append(tr.window, s)
	tr.prune(e.cfg.HistorySeconds)

	tr.lastSeen = obs.Timestamp
	tr.totalFrames++
	if obs.Timestamp > e.lastFrameTime {
		e.lastFrameTime = obs.Timestamp
	}

	if s.speedOK {
		tr.distanceNorm += s.stepNorm
	}

	e.classifyTrack(tr, obs.Timestamp)
	e.checkFall(tr, obs.Timestamp)
	tr.identity.expire(obs.Timestamp, e.cfg)

	return tr.currentActivity, nil
}

func (e *Engine) newTrack(trackID int64, firstSeen float64) *trackState {
	tr := &trackState{
		id:              trackID,
		window:          make([]sample, 0, int(e.cfg.HistorySeconds*float64(e.cfg.FPSEstimate))+1),
		firstSeen:       firstSeen,
		currentActivity: ActivityUnknown,
	}
	e.tracks[trackID] = tr
	e.global.TotalTracksSeen++
	log.Printf("[NEW] person entered scene: track %d", trackID)
	return tr
}

// classifyTrack runs the pure classifier over the smoothed features and
// maintains the activity log and per-activity counters.
func (e *Engine) classifyTrack(tr *trackState, now float64) {
	if len(tr.window) >= e.cfg.ClassifyMinSamples {
		next := Classify(tr.recentFeatures(e.cfg.SmoothingSamples), e.cfg.thresholds())
		if next != tr.currentActivity && tr.currentActivity != ActivityUnknown {
			tr.changes = append(tr.changes, ActivityChange{
				From: tr.currentActivity,
				To:   next,
				At:   now,
			})
			e.global.TotalActivityChanges++
		}
		tr.currentActivity = next
	}

	switch tr.currentActivity {
	case ActivityStationary:
		tr.framesStationary++
	case ActivityMoving:
		tr.framesMoving++
	case ActivitySitting:
		tr.framesSitting++
	}
}

// checkFall evaluates the fall detector. The fall flag is sticky for
// the track's lifetime; the event is queued exactly once.
func (e *Engine) checkFall(tr *trackState, now float64) {
	if tr.fallDetected {
		return
	}
	drop, detected := detectFall(tr, e.cfg)
	if !detected {
		return
	}
	tr.fallDetected = true
	tr.fallAt = now
	tr.fallDropRatio = drop
	e.global.TotalFallsDetected++
	e.fallEvents = append(e.fallEvents, FallEvent{TrackID: tr.id, At: now, DropRatio: drop})
	log.Printf("[FALL] potential fall detected: track %d at %.2f (drop %.2f)", tr.id, now, drop)
}

// prune drops samples older than the history horizon relative to the
// track's own latest sample.
func (tr *trackState) prune(historySeconds float64) {
	n := len(tr.window)
	if n == 0 {
		return
	}
	horizon := tr.window[n-1].t - historySeconds
	cut := 0
	for cut < n && tr.window[cut].t < horizon {
		cut++
	}
	if cut > 0 {
		tr.window = append(tr.window[:0], tr.window[cut:]...)
	}
}

// UpdateIdentity merges one identity guess from the face-recognition
// collaborator into the track's identity state. Guesses for unknown or
// evicted tracks are dropped: the person is no longer on screen.
//
// Returns the confirmed name and true once the track holds one.
func (e *Engine) UpdateIdentity(trackID int64, name string, confidence, at float64) (string, bool) {
	tr, ok := e.lookup(trackID)
	if !ok {
		return "", false
	}
	if at > e.lastFrameTime {
		e.lastFrameTime = at
	}
	confirmed := tr.identity.observe(trackID, name, confidence, at, e.cfg)
	if !confirmed {
		return "", false
	}
	return tr.identity.name, true
}

// NeedsRecognition reports whether the face collaborator should spend a
// recognition pass on this track. False for unknown tracks: there is
// nobody to recognize.
func (e *Engine) NeedsRecognition(trackID int64) bool {
	tr, ok := e.lookup(trackID)
	if !ok {
		return false
	}
	return tr.identity.stale(e.lastFrameTime, e.cfg)
}

// ConsumeActivityChange returns the most recent unreported activity
// transition for a track, or nil if the label has not changed since the
// last call. Consume-once: a reported transition is never re-reported.
func (e *Engine) ConsumeActivityChange(trackID int64) (*ActivityChange, error) {
	tr, ok := e.lookup(trackID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, trackID)
	}
	if tr.changeCursor >= len(tr.changes) {
		return nil, nil
	}
	ch := tr.changes[len(tr.changes)-1]
	tr.changeCursor = len(tr.changes)
	return &ch, nil
}

// ConsumeFallEvents drains the queue of edge-triggered fall events.
// The caller is expected to persist or alert on them.
func (e *Engine) ConsumeFallEvents() []FallEvent {
	if len(e.fallEvents) == 0 {
		return nil
	}
	out := e.fallEvents
	e.fallEvents = nil
	return out
}

// ActiveTracks returns the sorted ids of tracks seen within the
// eviction window of the latest processed frame.
func (e *Engine) ActiveTracks() []int64 {
	ids := make([]int64, 0, len(e.tracks))
	for id, tr := range e.tracks {
		if e.lastFrameTime-tr.lastSeen <= e.cfg.TrackEvictionSeconds {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EvictStale discards tracks with no updates for longer than the
// eviction timeout, measured against now (normally the latest frame
// time). Returns the number of tracks evicted. Mandatory for
// unattended long-running deployments; the HTTP layer calls this on a
// maintenance ticker.
func (e *Engine) EvictStale(now float64) int {
	evicted := 0
	for id, tr := range e.tracks {
		if now-tr.lastSeen > e.cfg.TrackEvictionSeconds {
			delete(e.tracks, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("[EVICT] dropped %d stale track(s), %d remain", evicted, len(e.tracks))
	}
	return evicted
}

// GlobalStats returns engine-wide counters. ActiveTracks is computed
// against the latest processed frame.
func (e *Engine) GlobalStats() GlobalStats {
	g := e.global
	g.ActiveTracks = len(e.ActiveTracks())
	return g
}

// lookup finds a live track. Tracks past the eviction timeout are
// discarded on access, so queries never resurrect stale state even if
// no sweep has run.
func (e *Engine) lookup(trackID int64) (*trackState, bool) {
	tr, ok := e.tracks[trackID]
	if !ok {
		return nil, false
	}
	if e.lastFrameTime-tr.lastSeen > e.cfg.TrackEvictionSeconds {
		delete(e.tracks, trackID)
		return nil, false
	}
	return tr, true
}
