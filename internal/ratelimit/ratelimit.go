// Package ratelimit implements the per-(guild,command) cooldown gate
// (spec.md §4.A) on top of golang.org/x/time/rate: each key gets its own
// single-token bucket refilling once per cooldown, so "admit, then block
// until cooldown elapses" falls out of the library's reservation API
// instead of a hand-rolled expiry map.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type key struct {
	guildID string
	command string
}

// Table is the per-(guild,command) cooldown bookkeeping structure.
type Table struct {
	mu       sync.Mutex
	limiters map[key]*rate.Limiter
}

// NewTable constructs an empty rate-limit table.
func NewTable() *Table {
	return &Table{limiters: make(map[key]*rate.Limiter)}
}

// Result is the outcome of CheckAndSet.
type Result struct {
	Admitted bool
	// Remaining is populated iff !Admitted: time left on the cooldown.
	Remaining time.Duration
}

// CheckAndSet implements spec.md §4.A: admit the first call for a
// (guild,command) pair and reject every call within cooldown of it. A
// rejected call cancels its reservation so repeated probing during the
// cooldown window never pushes the next admission further out.
func (t *Table) CheckAndSet(guildID, cmdName string, now time.Time, cooldown time.Duration) Result {
	k := key{guildID: guildID, command: cmdName}
	limit := rate.Every(cooldown)

	t.mu.Lock()
	defer t.mu.Unlock()

	lim, ok := t.limiters[k]
	if !ok || lim.Limit() != limit {
		lim = rate.NewLimiter(limit, 1)
		t.limiters[k] = lim
	}

	reservation := lim.ReserveN(now, 1)
	if !reservation.OK() {
		return Result{Admitted: false, Remaining: cooldown}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Result{Admitted: false, Remaining: delay}
	}
	return Result{Admitted: true}
}
