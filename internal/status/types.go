// Package status contains the progress and report types the sync engine
// publishes while reconciling the offline store with the online store.
package status

import (
	"math"
	"time"
)

// RunMode represents the direction(s) a sync run can operate in, derived
// from store connectivity at run start.
type RunMode string

const (
	// ModeFull means both stores are reachable and all entities sync
	ModeFull RunMode = "full"

	// ModeOfflineOnly means only the offline store is reachable; nothing
	// can be pushed, so every entity is skipped
	ModeOfflineOnly RunMode = "offline-only"

	// ModeOnlineOnly means only the online store is reachable; there is
	// nothing to read from, so every entity is skipped
	ModeOnlineOnly RunMode = "online-only"
)

// ProgressState represents the per-entity state within a run
type ProgressState string

const (
	// StatePending means the entity has not been processed yet
	StatePending ProgressState = "pending"

	// StateSyncing means the entity's records are being pushed
	StateSyncing ProgressState = "syncing"

	// StateCompleted means the entity batch ran to completion; individual
	// record failures are reported in the run's error list, not here
	StateCompleted ProgressState = "completed"

	// StateError means the entity could not be processed at all
	StateError ProgressState = "error"

	// StateSkipped means the entity was not attempted because a required
	// store was unreachable
	StateSkipped ProgressState = "skipped"
)

// Connectivity is a snapshot of store reachability taken at run start
type Connectivity struct {
	Online  bool `json:"online"`
	Offline bool `json:"offline"`
}

// SyncProgress tracks the progress of a single entity within a run.
// Completed counts records attempted, not records that succeeded.
type SyncProgress struct {
	Entity    string        `json:"entity"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Status    ProgressState `json:"status"`
	Message   string        `json:"message,omitempty"`
}

// RunReport is the aggregate result of one orchestrator invocation. It is
// mutated in place while the run is active and frozen once it finishes.
type RunReport struct {
	ID                string         `json:"id"`
	Success           bool           `json:"success"`
	TotalEntities     int            `json:"totalEntities"`
	CompletedEntities int            `json:"completedEntities"`
	SkippedEntities   int            `json:"skippedEntities"`
	Progress          []SyncProgress `json:"progress"`
	Errors            []string       `json:"errors,omitempty"`
	Warnings          []string       `json:"warnings,omitempty"`
	StartTime         time.Time      `json:"startTime"`
	EndTime           time.Time      `json:"endTime"`
	Duration          time.Duration  `json:"duration"`
	Mode              RunMode        `json:"mode,omitempty"`
	Connectivity      Connectivity   `json:"connectivity"`
}

// NewRunReport creates a report with one pending progress entry per entity,
// in the order the entities will be processed.
func NewRunReport(id string, entities []string) *RunReport {
	progress := make([]SyncProgress, len(entities))
	for i, name := range entities {
		progress[i] = SyncProgress{
			Entity: name,
			Status: StatePending,
		}
	}

	return &RunReport{
		ID:            id,
		TotalEntities: len(entities),
		Progress:      progress,
		StartTime:     time.Now().UTC(),
	}
}

// SetProgress replaces the progress entry for the named entity
func (r *RunReport) SetProgress(p SyncProgress) {
	for i := range r.Progress {
		if r.Progress[i].Entity == p.Entity {
			r.Progress[i] = p
			return
		}
	}
}

// Finalize stamps the end time, recomputes the entity counters and derives
// the success flag. A finalized report means "the run finished"; success is
// the absence of hard errors, not the absence of skips.
func (r *RunReport) Finalize() {
	r.CompletedEntities = 0
	r.SkippedEntities = 0
	for _, p := range r.Progress {
		switch p.Status {
		case StateCompleted:
			r.CompletedEntities++
		case StateSkipped:
			r.SkippedEntities++
		case StatePending, StateSyncing, StateError:
		}
	}

	r.EndTime = time.Now().UTC()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = len(r.Errors) == 0
}

// OverallPercentage derives the share of entities that have reached a
// terminal state, rounded to the nearest integer.
func (r *RunReport) OverallPercentage() int {
	if r == nil || r.TotalEntities == 0 {
		return 0
	}

	done := 0
	for _, p := range r.Progress {
		if p.Status == StateCompleted || p.Status == StateSkipped {
			done++
		}
	}

	return int(math.Round(100 * float64(done) / float64(r.TotalEntities)))
}

// Clone returns a deep copy of the report so status readers never observe
// a report mid-mutation.
func (r *RunReport) Clone() *RunReport {
	if r == nil {
		return nil
	}

	out := *r
	out.Progress = append([]SyncProgress(nil), r.Progress...)
	out.Errors = append([]string(nil), r.Errors...)
	out.Warnings = append([]string(nil), r.Warnings...)
	return &out
}
