package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jacherr/assystbot/internal/domain"
	"github.com/jacherr/assystbot/internal/platform"
	"github.com/jacherr/assystbot/internal/store"
)

type fakeStore struct {
	store.Store
	due       []*domain.Reminder
	deletedID []int64
	fetchErr  error
}

func (s *fakeStore) FetchDueReminders(ctx context.Context, before time.Time) ([]*domain.Reminder, error) {
	return s.due, s.fetchErr
}
func (s *fakeStore) DeleteReminders(ctx context.Context, ids []int64) error {
	s.deletedID = append(s.deletedID, ids...)
	return nil
}

type fakePlatform struct {
	platform.Client
	posted []string
	failID string
}

func (p *fakePlatform) CreateMessage(ctx context.Context, channelID, content string) (*domain.Message, error) {
	if channelID == p.failID {
		return nil, errors.New("platform: post failed")
	}
	p.posted = append(p.posted, content)
	return &domain.Message{ID: "r1", ChannelID: channelID, Content: content}, nil
}

func TestScan_PostsAndDeletesDueReminders(t *testing.T) {
	fs := &fakeStore{due: []*domain.Reminder{
		{ID: 1, UserID: "u1", ChannelID: "c1", GuildID: "g1", MessageID: "m1", Body: "stretch"},
	}}
	fp := &fakePlatform{}
	s := &Scheduler{Store: fs, Platform: fp}

	s.scan(context.Background())

	if len(fp.posted) != 1 {
		t.Fatalf("posted = %v, want one reminder", fp.posted)
	}
	if len(fs.deletedID) != 1 || fs.deletedID[0] != 1 {
		t.Fatalf("deletedID = %v, want [1]", fs.deletedID)
	}
}

func TestScan_SkipsDeleteOnPostFailure(t *testing.T) {
	fs := &fakeStore{due: []*domain.Reminder{
		{ID: 1, UserID: "u1", ChannelID: "bad", GuildID: "g1", MessageID: "m1", Body: "stretch"},
	}}
	fp := &fakePlatform{failID: "bad"}
	s := &Scheduler{Store: fs, Platform: fp}

	s.scan(context.Background())

	if len(fs.deletedID) != 0 {
		t.Errorf("deletedID = %v, want none (at-least-once: failed post must not be deleted)", fs.deletedID)
	}
}

func TestScan_NoDueReminders_NoDeleteCall(t *testing.T) {
	fs := &fakeStore{}
	s := &Scheduler{Store: fs, Platform: &fakePlatform{}}

	s.scan(context.Background())

	if fs.deletedID != nil {
		t.Error("DeleteReminders should not be called when nothing is due")
	}
}
