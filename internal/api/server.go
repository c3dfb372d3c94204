// Package api exposes the activity engine over HTTP: ingest endpoints
// for the pose and face collaborators, query endpoints for summaries
// and snapshots, and an HTML activity report.
//
// The engine itself carries no synchronization. The server owns it
// exclusively and serializes every engine call behind one mutex, so
// concurrent HTTP clients cannot interleave updates.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/oakline-data/activity.report/internal/config"
	"github.com/oakline-data/activity.report/internal/db"
	"github.com/oakline-data/activity.report/internal/har"
	"github.com/oakline-data/activity.report/internal/version"
)

// Server serializes access to the engine and persists its output.
type Server struct {
	mu     sync.Mutex
	engine *har.Engine
	db     *db.DB // may be nil when running without persistence
	tuning *config.TuningConfig
}

// NewServer creates a server owning the given engine. db may be nil to
// disable persistence (useful in tests and dry runs).
func NewServer(engine *har.Engine, database *db.DB, tuning *config.TuningConfig) *Server {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	return &Server{engine: engine, db: database, tuning: tuning}
}

// RegisterRoutes attaches all handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/track/observe", s.handleObserve)
	mux.HandleFunc("/api/track/identity", s.handleIdentity)
	mux.HandleFunc("/api/track/summary", s.handleSummary)
	mux.HandleFunc("/api/track/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/track/change", s.handleChange)
	mux.HandleFunc("/api/track/history", s.handleHistory)
	mux.HandleFunc("/api/tracks", s.handleTracks)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/falls", s.handleFalls)
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/report", s.handleReport)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeEngineError maps engine sentinel errors to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, har.ErrNotFound):
		s.writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, har.ErrInvalidObservation):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// trackIDParam parses the mandatory track_id query parameter.
func trackIDParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("track_id")
	if raw == "" {
		return 0, errors.New("missing 'track_id' parameter")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad 'track_id' parameter: %v", err)
	}
	return id, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// observeRequest is one frame's detection from the pose collaborator.
type observeRequest struct {
	TrackID int64 `json:"track_id"`
	har.Observation
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req observeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("bad request body: %v", err))
		return
	}

	s.mu.Lock()
	activity, err := s.engine.Update(req.TrackID, req.Observation)
	var falls []har.FallEvent
	if err == nil {
		falls = s.engine.ConsumeFallEvents()
	}
	sessionID := s.engine.SessionID()
	s.mu.Unlock()

	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	// Persist drained fall alerts outside the engine lock. The observe
	// path stays non-blocking for other tracks even if sqlite stalls.
	for _, ev := range falls {
		if s.db == nil {
			continue
		}
		if err := s.db.InsertFallEvent(sessionID, ev); err != nil {
			log.Printf("failed to persist fall event for track %d: %v", ev.TrackID, err)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"track_id":      req.TrackID,
		"activity":      activity,
		"fall_detected": len(falls) > 0,
	})
}

// identityRequest is one identity guess from the face collaborator.
type identityRequest struct {
	TrackID    int64   `json:"track_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Timestamp  float64 `json:"timestamp"`
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("bad request body: %v", err))
		return
	}

	s.mu.Lock()
	name, confirmed := s.engine.UpdateIdentity(req.TrackID, req.Name, req.Confidence, req.Timestamp)
	s.mu.Unlock()

	resp := map[string]any{"track_id": req.TrackID, "confirmed": confirmed}
	if confirmed {
		resp["name"] = name
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, err := trackIDParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	sum, err := s.engine.Summary(id)
	s.mu.Unlock()

	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := trackIDParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	snap, err := s.engine.Snapshot(id)
	s.mu.Unlock()

	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleChange(w http.ResponseWriter, r *http.Request) {
	id, err := trackIDParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	change, err := s.engine.ConsumeActivityChange(id)
	s.mu.Unlock()

	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"track_id": id, "change": change})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := trackIDParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	points, err := s.engine.History(id)
	s.mu.Unlock()

	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"track_id": id, "history": points})
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ids := s.engine.ActiveTracks()
	needs := make(map[int64]bool, len(ids))
	for _, id := range ids {
		needs[id] = s.engine.NeedsRecognition(id)
	}
	s.mu.Unlock()

	type trackInfo struct {
		TrackID          int64 `json:"track_id"`
		NeedsRecognition bool  `json:"needs_recognition"`
	}
	infos := make([]trackInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, trackInfo{TrackID: id, NeedsRecognition: needs[id]})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"active_tracks": infos})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	stats := s.engine.GlobalStats()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleFalls(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotImplemented, "no database configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	events, err := s.db.ListFallEvents(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list fall events: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"fall_events": events})
}

// handleParams reads (GET) or partially updates (POST) the engine
// tuning. Updates take effect from the next observation.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		tuning := *s.tuning
		s.mu.Unlock()
		s.writeJSON(w, http.StatusOK, tuning)

	case http.MethodPost:
		var patch config.TuningConfig
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("bad request body: %v", err))
			return
		}

		s.mu.Lock()
		merged := *s.tuning
		merged.Merge(&patch)
		if err := merged.Validate(); err != nil {
			s.mu.Unlock()
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid params: %v", err))
			return
		}
		*s.tuning = merged
		s.engine.Reconfigure(har.ConfigFromTuning(s.tuning))
		s.mu.Unlock()

		log.Printf("tuning params updated via API")
		s.writeJSON(w, http.StatusOK, merged)

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
