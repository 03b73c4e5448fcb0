// Package healthcheck implements the 5-minute dependency probe sweep of
// spec.md §4.J, grounded on the same ticker+ctx.Done() loop shape as
// internal/reminder (itself grounded on the teacher's TTL worker).
package healthcheck

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultInterval = 5 * time.Minute

// Status is one probe's outcome.
type Status struct {
	Service string
	Online  bool
	Latency time.Duration
}

// Prober is one dependency's lightweight probe; implementations wrap the
// worker RPC stats call, the translation endpoint, the content proxy, the
// store's Ping, and any HTTP echo endpoints.
type Prober interface {
	Name() string
	Probe(ctx context.Context) error
}

// FatalNotifier is the narrow slice of the logger façade (spec.md §4.M)
// the aggregator needs: a fatal-category log line when any probe fails.
type FatalNotifier interface {
	Fatal(ctx context.Context, format string, args ...any)
}

// Func adapts a name and a probe function into a Prober, the same
// HandlerFunc-style shape net/http uses, so callers wiring several
// dependency checks don't need one named type per dependency.
type Func struct {
	ServiceName string
	ProbeFunc   func(ctx context.Context) error
}

func (f Func) Name() string                    { return f.ServiceName }
func (f Func) Probe(ctx context.Context) error { return f.ProbeFunc(ctx) }

// Aggregator runs every registered Prober on a timer and retains the most
// recent scan for display by a user command.
type Aggregator struct {
	Probers  []Prober
	Notifier FatalNotifier
	Logger   *slog.Logger
	Interval time.Duration

	mu        sync.RWMutex
	results   []Status
	scannedAt time.Time
}

func (a *Aggregator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Aggregator) interval() time.Duration {
	if a.Interval > 0 {
		return a.Interval
	}
	return defaultInterval
}

// Run blocks, scanning every Interval until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval())
	defer ticker.Stop()
	a.logger().Info("healthcheck aggregator started", "interval", a.interval())

	a.Scan(ctx)
	for {
		select {
		case <-ticker.C:
			a.Scan(ctx)
		case <-ctx.Done():
			a.logger().Info("healthcheck aggregator shutting down", "reason", ctx.Err())
			return
		}
	}
}

// Scan probes every dependency once and records the result set.
func (a *Aggregator) Scan(ctx context.Context) {
	now := time.Now()
	results := make([]Status, 0, len(a.Probers))
	anyOffline := false

	for _, p := range a.Probers {
		start := time.Now()
		err := p.Probe(ctx)
		elapsed := time.Since(start)

		online := err == nil
		if !online {
			anyOffline = true
			a.logger().Warn("healthcheck probe failed", "service", p.Name(), "error", err)
		}
		results = append(results, Status{Service: p.Name(), Online: online, Latency: elapsed})
	}

	a.mu.Lock()
	a.results = results
	a.scannedAt = now
	a.mu.Unlock()

	if anyOffline && a.Notifier != nil {
		a.Notifier.Fatal(ctx, "healthcheck: one or more dependencies are offline")
	}
}

// Results returns the most recent scan for display by a user command.
func (a *Aggregator) Results() ([]Status, time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Status, len(a.results))
	copy(out, a.results)
	return out, a.scannedAt
}
