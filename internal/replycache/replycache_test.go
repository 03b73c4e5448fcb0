package replycache

import (
	"testing"
	"time"

	"github.com/jacherr/assystbot/internal/domain"
)

func TestCache_GetOrCreate_ReturnsSameSlot(t *testing.T) {
	c := New(nil)
	msg := &domain.Message{ID: "m1"}
	now := time.Unix(1_700_000_000, 0)

	s1 := c.GetOrCreate(msg, now)
	s2 := c.GetOrCreate(msg, now)
	if s1 != s2 {
		t.Error("GetOrCreate returned different slots for the same invocation id")
	}
}

func TestSlot_MutualExclusion(t *testing.T) {
	c := New(nil)
	msg := &domain.Message{ID: "m1"}
	now := time.Unix(1_700_000_000, 0)
	slot := c.GetOrCreate(msg, now)

	if !slot.Acquire(now) {
		t.Fatal("first Acquire was rejected")
	}
	if slot.Acquire(now) {
		t.Error("second Acquire was admitted while in_use")
	}

	slot.Finish(nil)

	if !slot.Acquire(now) {
		t.Error("Acquire after Finish was rejected")
	}
}

func TestSlot_ExpiredRejectsAcquire(t *testing.T) {
	c := New(nil)
	msg := &domain.Message{ID: "m1"}
	now := time.Unix(1_700_000_000, 0)
	slot := c.GetOrCreate(msg, now)

	if slot.Acquire(now.Add(61 * time.Second)) {
		t.Error("Acquire admitted an expired slot")
	}
}

func TestSlot_FinishRecordsReply(t *testing.T) {
	c := New(nil)
	msg := &domain.Message{ID: "m1"}
	now := time.Unix(1_700_000_000, 0)
	slot := c.GetOrCreate(msg, now)
	slot.Acquire(now)

	reply := &domain.Message{ID: "r1"}
	slot.Finish(reply)

	if got := slot.ExistingReply(); got != reply {
		t.Errorf("ExistingReply() = %v, want %v", got, reply)
	}
}

func TestSlot_MarkInvocationDeleted(t *testing.T) {
	c := New(nil)
	msg := &domain.Message{ID: "m1"}
	now := time.Unix(1_700_000_000, 0)
	slot := c.GetOrCreate(msg, now)

	if slot.InvocationDeleted() {
		t.Fatal("InvocationDeleted true before MarkInvocationDeleted")
	}
	slot.MarkInvocationDeleted()
	if !slot.InvocationDeleted() {
		t.Error("InvocationDeleted false after MarkInvocationDeleted")
	}
}

func TestCache_GC_RemovesExpiredOnly(t *testing.T) {
	c := New(nil)
	now := time.Unix(1_700_000_000, 0)

	c.GetOrCreate(&domain.Message{ID: "old"}, now)
	c.GetOrCreate(&domain.Message{ID: "new"}, now.Add(50*time.Second))

	removed := c.GC(now.Add(61 * time.Second))
	if removed != 1 {
		t.Fatalf("GC removed %d, want 1", removed)
	}
	if _, ok := c.Get("old"); ok {
		t.Error("expired slot still present after GC")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("unexpired slot was removed by GC")
	}
}
