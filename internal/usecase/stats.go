package usecase

import (
	"log/slog"
	"sync/atomic"
)

// Stats aggregates pipeline counters. One instance is owned by the
// supervisor and shared with the workers; all fields are atomic so there is
// no ambient global state.
type Stats struct {
	Discovered   atomic.Int64
	CloneOK      atomic.Int64
	CloneFail    atomic.Int64
	ScanOK       atomic.Int64
	ScanFail     atomic.Int64
	ActiveClones atomic.Int64
	ActiveScans  atomic.Int64
}

// NewStats returns a zeroed counter set.
func NewStats() *Stats {
	return &Stats{}
}

// Log emits the counters plus current queue depths in one structured line.
func (s *Stats) Log(logger *slog.Logger, msg string, acquireDepth, processDepth int) {
	if logger == nil {
		return
	}
	logger.Info(msg,
		"stars_found", s.Discovered.Load(),
		"cloned_ok", s.CloneOK.Load(),
		"cloned_failed", s.CloneFail.Load(),
		"scanned_ok", s.ScanOK.Load(),
		"scanned_failed", s.ScanFail.Load(),
		"active_clones", s.ActiveClones.Load(),
		"active_scans", s.ActiveScans.Load(),
		"clone_queue", acquireDepth,
		"scan_queue", processDepth,
	)
}
