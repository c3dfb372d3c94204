package har

import "log"

// identityState is the per-track identity voting state machine:
// unconfirmed -> pending(name, count) -> confirmed(name).
//
// A confirmed name is never demoted by a single disagreeing
// observation; the alternate name has to earn its own confirmation
// streak first. A confirmed name that is not re-observed within the
// identity timeout lapses back to unconfirmed, checked lazily on the
// next update or summary read.
type identityState struct {
	name          string  // confirmed name, "" while unconfirmed
	confidence    float64 // last accepted confidence
	pendingName   string
	pendingCount  int
	lastConfirmed float64
}

// observe feeds one identity guess from the face-recognition
// collaborator into the state machine. Returns true when the track
// holds a confirmed name after this observation.
func (st *identityState) observe(trackID int64, name string, confidence, at float64, cfg Config) bool {
	st.expire(at, cfg)

	// Sub-threshold guesses and the recognizer's own "Unknown" are
	// noise, not evidence. No state change either way.
	if name == UnknownName || confidence < cfg.IdentityConfidenceThreshold {
		return st.name != ""
	}

	if st.name == name {
		// Reconfirmation keeps the identity alive. Any pending
		// alternate keeps its streak.
		st.confidence = confidence
		st.lastConfirmed = at
		return true
	}

	if st.pendingName != name {
		st.pendingName = name
		st.pendingCount = 1
	} else {
		st.pendingCount++
	}

	if st.pendingCount >= cfg.IdentityMinConfirmations {
		if st.name != "" {
			log.Printf("[IDENTITY] track %d identity changed: %s -> %s", trackID, st.name, name)
		} else {
			log.Printf("[IDENTITY] track %d identified as %s (confidence %.2f)", trackID, name, confidence)
		}
		st.name = name
		st.confidence = confidence
		st.lastConfirmed = at
		st.pendingName = ""
		st.pendingCount = 0
	}

	return st.name != ""
}

// expire lapses a confirmed identity that has not been reconfirmed
// within the timeout. Pending candidates are dropped too: their
// observations are at least as stale as the confirmation.
func (st *identityState) expire(now float64, cfg Config) {
	if st.name == "" {
		return
	}
	if now-st.lastConfirmed > cfg.IdentityTimeoutSeconds {
		st.name = ""
		st.confidence = 0
		st.pendingName = ""
		st.pendingCount = 0
	}
}

// currentName returns the confirmed name or the Unknown sentinel.
func (st *identityState) currentName() string {
	if st.name == "" {
		return UnknownName
	}
	return st.name
}

// stale reports whether the face collaborator should be asked for a
// fresh guess: no confirmed name, or the confirmation is past half the
// timeout and worth refreshing before it lapses.
func (st *identityState) stale(now float64, cfg Config) bool {
	if st.name == "" {
		return true
	}
	return now-st.lastConfirmed > cfg.IdentityTimeoutSeconds/2
}
