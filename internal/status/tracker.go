package status

import (
	"sync"
	"time"
)

// Tracker holds the current or most recent RunReport for status polling.
// The orchestrator is the only writer; readers always get a deep copy, so
// polling never blocks a run and never observes a half-written report.
type Tracker struct {
	mu       sync.RWMutex
	current  *RunReport
	running  bool
	lastSync *time.Time
}

// NewTracker creates an empty tracker with no run history
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin installs the report for a newly started run, replacing whatever
// the previous run left behind.
func (t *Tracker) Begin(r *RunReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = r
	t.running = true
}

// Publish updates the progress entry for one entity on the active report
func (t *Tracker) Publish(p SyncProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.SetProgress(p)
	}
}

// Finish marks the active run as ended. If the run succeeded the last-sync
// timestamp is advanced to the run's end time.
func (t *Tracker) Finish(r *RunReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = r
	t.running = false
	if r != nil && r.Success {
		end := r.EndTime
		t.lastSync = &end
	}
}

// Snapshot returns a copy of the current or most recent report and whether
// a run is in flight. The report is nil if no run has ever executed.
func (t *Tracker) Snapshot() (*RunReport, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current.Clone(), t.running
}

// LastSync returns the end time of the most recent successful run, or nil
func (t *Tracker) LastSync() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastSync == nil {
		return nil
	}
	ts := *t.lastSync
	return &ts
}
