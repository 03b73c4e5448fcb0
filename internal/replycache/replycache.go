// Package replycache implements the per-invocation reply slot and
// edit-tracking described in spec.md §4.B: a handle that lets a user edit
// their command message and have the bot patch its earlier answer, while
// preventing two concurrent runs of the same invocation.
package replycache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jacherr/assystbot/internal/domain"
)

const editWindow = 60 * time.Second

// Slot is one per invocation-message-id. The map lock (held only to look up
// or insert a slot) and the slot's own lock (held to mutate its fields) are
// never held simultaneously — spec.md §5 forbids that nesting.
type Slot struct {
	mu                sync.Mutex
	Invocation        *domain.Message
	Reply             *domain.Message
	expiresAt         time.Time
	inUse             bool
	invocationDeleted bool
}

// Expired reports whether the slot is past its edit window.
func (s *Slot) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}

// Acquire implements spec.md §4.B acquire(slot): admits iff not expired and
// not already in_use, preventing concurrent re-execution of one invocation.
func (s *Slot) Acquire(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.expiresAt) || s.inUse {
		return false
	}
	s.inUse = true
	return true
}

// Finish clears in_use and, if a reply was produced, records it so a later
// edit of the invocation can patch the same reply.
func (s *Slot) Finish(reply *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inUse = false
	if reply != nil {
		s.Reply = reply
	}
}

// MarkInvocationDeleted sets the flag handlers must observe before posting:
// once set, a running handler must not post a new reply, and an existing
// reply should be deleted instead.
func (s *Slot) MarkInvocationDeleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocationDeleted = true
}

// InvocationDeleted reports the flag set by MarkInvocationDeleted.
func (s *Slot) InvocationDeleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invocationDeleted
}

// ExistingReply returns the reply recorded by a prior Finish, or nil.
func (s *Slot) ExistingReply() *domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Reply
}

// Cache is the map of invocation-message-id to Slot.
type Cache struct {
	mu     sync.RWMutex
	slots  map[string]*Slot
	logger *slog.Logger
}

// New constructs an empty reply cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{slots: make(map[string]*Slot), logger: logger}
}

// GetOrCreate implements spec.md §4.B get_or_create: returns the existing
// slot for invocation.ID, or constructs and stores a fresh one.
func (c *Cache) GetOrCreate(invocation *domain.Message, now time.Time) *Slot {
	c.mu.RLock()
	if s, ok := c.slots[invocation.ID]; ok {
		c.mu.RUnlock()
		return s
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[invocation.ID]; ok {
		return s
	}
	s := &Slot{Invocation: invocation, expiresAt: now.Add(editWindow)}
	c.slots[invocation.ID] = s
	return s
}

// Get returns the existing slot for a message id, if any, without creating
// one. Used by edit/delete handling in the gateway bridge.
func (c *Cache) Get(messageID string) (*Slot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.slots[messageID]
	return s, ok
}

// GC removes slots whose expiry is past, run every 30s by the caller
// (spec.md §4.B periodic GC). expiresAt is set once at slot construction
// (under c.mu, via GetOrCreate) and never mutated afterward, so reading it
// here while already holding c.mu is race-free without also taking each
// slot's own lock — doing that would nest the map lock across a slot-lock
// acquisition, which spec.md §5 forbids.
func (c *Cache) GC(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, s := range c.slots {
		if now.After(s.expiresAt) {
			delete(c.slots, id)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("reply cache GC", "removed", removed, "remaining", len(c.slots))
	}
	return removed
}

// Len reports the current slot count, mostly useful for tests/metrics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}
