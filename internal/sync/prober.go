package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/yadaklinus/neuPham-sub000/internal/status"
	"github.com/yadaklinus/neuPham-sub000/internal/store"
)

// defaultProbeInterval is the first retry delay of EnsureAvailability;
// each subsequent attempt doubles it.
const defaultProbeInterval = 2 * time.Second

// ErrStoresUnavailable means neither store answered its probe after all
// retries. A run cannot do anything useful in that state.
var ErrStoresUnavailable = errors.New("neither the offline nor the online store is reachable")

// Prober answers "is store X reachable right now" without side effects.
// Single-store unavailability is not an error; it downgrades the run mode.
type Prober struct {
	source store.Source
	target store.Target

	probeInterval time.Duration
}

// ProberOption configures a Prober
type ProberOption func(*Prober)

// WithProbeInterval overrides the initial retry delay, primarily for tests
func WithProbeInterval(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.probeInterval = d
	}
}

// NewProber creates a prober over the two stores
func NewProber(source store.Source, target store.Target, opts ...ProberOption) *Prober {
	p := &Prober{
		source:        source,
		target:        target,
		probeInterval: defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe checks both stores independently. A failure on one side never
// prevents probing the other, and Probe itself never fails.
func (p *Prober) Probe(ctx context.Context) status.Connectivity {
	var conn status.Connectivity

	if err := p.source.Probe(ctx); err != nil {
		slog.Debug("Offline store probe failed", "error", err)
	} else {
		conn.Offline = true
	}

	if err := p.target.Probe(ctx); err != nil {
		slog.Debug("Online store probe failed", "error", err)
	} else {
		conn.Online = true
	}

	return conn
}

// EnsureAvailability probes with up to maxTries attempts under exponential
// backoff. It returns ErrStoresUnavailable only when both stores stayed
// unreachable through every attempt; otherwise the last connectivity
// snapshot is returned.
func (p *Prober) EnsureAvailability(ctx context.Context, maxTries uint) (status.Connectivity, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.probeInterval
	expo.RandomizationFactor = 0
	expo.Multiplier = 2

	conn, err := backoff.Retry(ctx, func() (status.Connectivity, error) {
		conn := p.Probe(ctx)
		if !conn.Online && !conn.Offline {
			return conn, ErrStoresUnavailable
		}
		return conn, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(maxTries))
	if err != nil {
		return status.Connectivity{}, ErrStoresUnavailable
	}

	return conn, nil
}
