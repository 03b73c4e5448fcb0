// Package reminder implements the 30-second reminder scan of spec.md §4.I,
// grounded on the teacher's TTL worker loop shape in
// internal/container/ttl.go: a ticker goroutine selecting between the
// ticker channel and ctx.Done().
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacherr/assystbot/internal/domain"
	"github.com/jacherr/assystbot/internal/platform"
	"github.com/jacherr/assystbot/internal/store"
)

const lookahead = 30 * time.Second

// Scheduler scans the store for due reminders and posts them.
type Scheduler struct {
	Store    store.Store
	Platform platform.Client
	Logger   *slog.Logger
	Interval time.Duration
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return 30 * time.Second
}

// Run blocks, scanning every Interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	s.logger().Info("reminder scheduler started", "interval", s.interval())

	for {
		select {
		case <-ticker.C:
			s.scan(ctx)
		case <-ctx.Done():
			s.logger().Info("reminder scheduler shutting down", "reason", ctx.Err())
			return
		}
	}
}

// scan implements spec.md §4.I's three steps for one tick.
func (s *Scheduler) scan(ctx context.Context) {
	due, err := s.Store.FetchDueReminders(ctx, time.Now().Add(lookahead))
	if err != nil {
		s.logger().Error("reminder scan failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	fired := make([]int64, 0, len(due))
	for _, r := range due {
		if err := s.post(ctx, r); err != nil {
			s.logger().Warn("reminder post failed", "reminder_id", r.ID, "error", err)
			continue
		}
		fired = append(fired, r.ID)
	}

	if len(fired) == 0 {
		return
	}
	if err := s.Store.DeleteReminders(ctx, fired); err != nil {
		s.logger().Error("reminder delete failed", "count", len(fired), "error", err)
	}
}

func (s *Scheduler) post(ctx context.Context, r *domain.Reminder) error {
	content := fmt.Sprintf("<@%s> Reminder: %s\n%s", r.UserID, r.Body, r.MessageLink())
	if _, err := s.Platform.CreateMessage(ctx, r.ChannelID, content); err != nil {
		return fmt.Errorf("reminder: post to channel %s: %w", r.ChannelID, err)
	}
	return nil
}
