package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/yadaklinus/neuPham-sub000/internal/status"
	"github.com/yadaklinus/neuPham-sub000/internal/store"
	"github.com/yadaklinus/neuPham-sub000/internal/telemetry"
)

// defaultProbeTries is how many connectivity attempts a run makes before
// giving up entirely.
const defaultProbeTries = 3

// ErrSyncInProgress is returned when a trigger arrives while a run is
// already active. The caller should poll the in-flight report instead of
// retrying the trigger.
var ErrSyncInProgress = errors.New("sync already in progress")

// Orchestrator owns the single-flight lock and drives one sync run: probe
// connectivity, derive the run mode, walk the descriptor table in
// dependency order and aggregate the results into a RunReport.
type Orchestrator struct {
	source  store.Source
	target  store.Target
	table   []Descriptor
	prober  *Prober
	syncer  *Syncer
	tracker *status.Tracker
	metrics *telemetry.SyncMetrics

	probeTries uint
	running    atomic.Bool
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithDescriptors overrides the descriptor table
func WithDescriptors(table []Descriptor) OrchestratorOption {
	return func(o *Orchestrator) {
		o.table = table
	}
}

// WithSyncer overrides the entity syncer
func WithSyncer(s *Syncer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.syncer = s
	}
}

// WithProber overrides the connectivity prober
func WithProber(p *Prober) OrchestratorOption {
	return func(o *Orchestrator) {
		o.prober = p
	}
}

// WithProbeTries overrides the pre-run connectivity attempt count
func WithProbeTries(n uint) OrchestratorOption {
	return func(o *Orchestrator) {
		o.probeTries = n
	}
}

// WithSyncMetrics sets the sync metrics for the orchestrator
func WithSyncMetrics(m *telemetry.SyncMetrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator creates an orchestrator over the two stores. The
// descriptor table defaults to Table(); the tracker is the status surface
// trigger callers poll.
func NewOrchestrator(
	source store.Source,
	target store.Target,
	tracker *status.Tracker,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		source:     source,
		target:     target,
		tracker:    tracker,
		table:      Table(),
		syncer:     NewSyncer(),
		probeTries: defaultProbeTries,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.prober == nil {
		o.prober = NewProber(source, target)
	}
	sortByRank(o.table)
	return o
}

// Running reports whether a run is currently in flight
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run executes one sync run and blocks until it finishes. If a run is
// already active it returns the in-flight report and ErrSyncInProgress
// without starting anything. The returned report is always populated,
// even on the critical-failure path.
//
// The results are named so the deferred recovery below can rewrite them
// when a panic escapes the run.
func (o *Orchestrator) Run(ctx context.Context) (report *status.RunReport, runErr error) {
	if !o.running.CompareAndSwap(false, true) {
		// A trigger racing the winner between its lock acquisition and
		// tracker.Begin can still observe the previous run's report here;
		// there is no await point in between, so the window is a few
		// instructions wide and status polls converge right after.
		inflight, _ := o.tracker.Snapshot()
		return inflight, ErrSyncInProgress
	}

	report = status.NewRunReport(uuid.NewString(), entityNames(o.table))
	o.tracker.Begin(report.Clone())
	slog.Info("Sync run started", "run_id", report.ID, "entities", report.TotalEntities)

	defer func() {
		// The lock must be released and the report finalized on every exit
		// path, including a programming error escaping the run.
		if rec := recover(); rec != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("unexpected failure: %v", rec))
			runErr = fmt.Errorf("unexpected failure during sync run: %v", rec)
			slog.Error("Sync run panicked", "run_id", report.ID, "panic", rec)
		}
		report.Finalize()
		o.tracker.Finish(report.Clone())
		o.metrics.RecordRunDuration(ctx, string(report.Mode), report.Duration, report.Success)
		o.running.Store(false)
		slog.Info("Sync run finished",
			"run_id", report.ID,
			"mode", report.Mode,
			"success", report.Success,
			"errors", len(report.Errors),
			"duration", report.Duration)
	}()

	conn, err := o.prober.EnsureAvailability(ctx, o.probeTries)
	report.Connectivity = conn
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("critical: %v", err))
		runErr = err
		return report, runErr
	}

	report.Mode = deriveMode(conn)

	if report.Mode != status.ModeFull {
		o.skipAll(report, conn)
		return report, nil
	}

	// Strict sequencing across entities: a referenced entity is fully
	// committed before anything that foreign-keys into it starts.
	sink := &reportSink{tracker: o.tracker, report: report}
	for _, d := range o.table {
		outcome := o.syncer.SyncEntity(ctx, d, o.source, o.target, sink)
		report.Errors = append(report.Errors, outcome.Errors...)
		o.metrics.RecordRecordsSynced(ctx, d.Entity, int64(len(outcome.Synced)))
	}

	return report, runErr
}

// skipAll marks every entity skipped with a warning naming the store that
// is missing. The offline→online direction needs both stores, so any
// degraded mode skips everything.
func (o *Orchestrator) skipAll(report *status.RunReport, conn status.Connectivity) {
	missing := "online"
	if !conn.Offline {
		missing = "offline"
	}

	for _, d := range o.table {
		warning := fmt.Sprintf("%s sync skipped: %s store not available", d.Entity, missing)
		report.Warnings = append(report.Warnings, warning)
		p := status.SyncProgress{
			Entity:  d.Entity,
			Status:  status.StateSkipped,
			Message: fmt.Sprintf("%s store not available", missing),
		}
		report.SetProgress(p)
		o.tracker.Publish(p)
	}

	slog.Warn("All entities skipped", "mode", report.Mode, "missing_store", missing)
}

func deriveMode(conn status.Connectivity) status.RunMode {
	switch {
	case conn.Online && conn.Offline:
		return status.ModeFull
	case conn.Offline:
		return status.ModeOfflineOnly
	default:
		return status.ModeOnlineOnly
	}
}

func entityNames(table []Descriptor) []string {
	names := make([]string, len(table))
	for i, d := range table {
		names[i] = d.Entity
	}
	return names
}

// reportSink fans progress updates out to the tracker's live copy and to
// the run's own report. The syncer serializes Publish calls, so the
// report mutation here is single-writer.
type reportSink struct {
	tracker *status.Tracker
	report  *status.RunReport
}

func (s *reportSink) Publish(p status.SyncProgress) {
	s.report.SetProgress(p)
	s.tracker.Publish(p)
}
