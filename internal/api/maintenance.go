package api

import (
	"context"
	"log"

	"github.com/oakline-data/activity.report/internal/har"
	"github.com/oakline-data/activity.report/internal/timeutil"
)

// RunMaintenance periodically snapshots active tracks to the database
// and evicts stale ones. This is the explicit hand-off the hot path
// needs: the per-frame observe handler never touches durable storage
// for snapshots, the ticker does.
//
// Blocks until ctx is cancelled. The interval comes from the tuning
// config's snapshot_interval.
func (s *Server) RunMaintenance(ctx context.Context, clock timeutil.Clock) {
	interval := s.tuning.GetSnapshotInterval()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("maintenance loop running every %s", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.MaintainOnce()
		}
	}
}

// MaintainOnce performs one maintenance pass: persist a snapshot per
// active track, then evict tracks past the inactivity timeout.
func (s *Server) MaintainOnce() {
	s.mu.Lock()
	ids := s.engine.ActiveTracks()
	snaps := make([]har.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.engine.Snapshot(id)
		if err != nil {
			continue // evicted between listing and snapshotting
		}
		snaps = append(snaps, snap)
	}
	s.engine.EvictStale(s.engine.LastFrameTime())
	s.mu.Unlock()

	if s.db == nil {
		return
	}
	// Writes happen outside the engine lock so a slow disk cannot
	// stall the observe path.
	for _, snap := range snaps {
		if err := s.db.InsertSnapshot(snap); err != nil {
			log.Printf("failed to persist snapshot for track %d: %v", snap.TrackID, err)
		}
	}
}
