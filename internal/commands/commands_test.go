package commands

import (
	"context"
	"testing"
	"time"

	"github.com/jacherr/assystbot/internal/command"
	"github.com/jacherr/assystbot/internal/domain"
	"github.com/jacherr/assystbot/internal/healthcheck"
	"github.com/jacherr/assystbot/internal/platform"
	"github.com/jacherr/assystbot/internal/store"
	"github.com/jacherr/assystbot/internal/workerrpc"
)

type fakeStore struct {
	store.Store
	tags map[string]*domain.Tag
}

func (s *fakeStore) GetTag(ctx context.Context, guildID, name string) (*domain.Tag, error) {
	return s.tags[guildID+"/"+name], nil
}

type fakePlatform struct {
	platform.Client
	replies []string
}

func (p *fakePlatform) CreateMessage(ctx context.Context, channelID, content string) (*domain.Message, error) {
	p.replies = append(p.replies, content)
	return &domain.Message{ID: "reply", ChannelID: channelID}, nil
}

type fakeWorker struct {
	stats workerrpc.StatsResult
	err   error
}

func (w *fakeWorker) Call(ctx context.Context, tier uint8, job workerrpc.Job) ([]byte, error) {
	return []byte("result-bytes"), w.err
}

func (w *fakeWorker) Stats(ctx context.Context) (workerrpc.StatsResult, error) {
	return w.stats, w.err
}

type fakeHealth struct {
	results   []healthcheck.Status
	scannedAt time.Time
}

func (h *fakeHealth) Results() ([]healthcheck.Status, time.Time) { return h.results, h.scannedAt }

func newInvocation(descriptors []*command.Descriptor, name string, msg *domain.Message, positional []command.Value) *command.Invocation {
	var desc *command.Descriptor
	for _, d := range descriptors {
		if d.Name == name {
			desc = d
		}
	}
	return &command.Invocation{
		Message:    msg,
		Descriptor: desc,
		Parsed:     &command.Parsed{Name: name, Positional: positional, Flags: map[string]command.Value{}},
	}
}

func TestPingDescriptor_RepliesWithUptime(t *testing.T) {
	platform := &fakePlatform{}
	d := &Deps{Platform: platform, StartedAt: time.Now().Add(-time.Minute)}
	descs := Build(d)
	inv := newInvocation(descs, "ping", &domain.Message{ChannelID: "c1"}, nil)

	if err := inv.Descriptor.Handler(context.Background(), inv); err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if len(platform.replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(platform.replies))
	}
}

func TestStatsDescriptor_ReportsWorkerStats(t *testing.T) {
	platform := &fakePlatform{}
	worker := &fakeWorker{stats: workerrpc.StatsResult{CurrentRequests: 2, TotalWorkers: 4, UptimeMS: 1000}}
	registry, _ := command.Build(nil)
	d := &Deps{Platform: platform, Worker: worker, Registry: registry}
	descs := Build(d)
	inv := newInvocation(descs, "stats", &domain.Message{ChannelID: "c1"}, nil)

	if err := inv.Descriptor.Handler(context.Background(), inv); err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if len(platform.replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(platform.replies))
	}
}

func TestHealthDescriptor_NoScanYet(t *testing.T) {
	platform := &fakePlatform{}
	d := &Deps{Platform: platform, Healthcheck: &fakeHealth{}}
	descs := Build(d)
	inv := newInvocation(descs, "health", &domain.Message{ChannelID: "c1"}, nil)

	if err := inv.Descriptor.Handler(context.Background(), inv); err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if platform.replies[0] != "no health scan has run yet" {
		t.Fatalf("got %q", platform.replies[0])
	}
}

func TestFlipDescriptor_InvokesWorkerAndReplies(t *testing.T) {
	platform := &fakePlatform{}
	worker := &fakeWorker{}
	d := &Deps{Platform: platform, Worker: worker}
	descs := Build(d)
	inv := newInvocation(descs, "flip", &domain.Message{ChannelID: "c1"}, []command.Value{
		{Kind: command.ValueStringList, Strs: []string{"imgbytes"}, Present: true},
	})

	if err := inv.Descriptor.Handler(context.Background(), inv); err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if len(platform.replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(platform.replies))
	}
}

func TestTagGetDescriptor_RepliesWithContentOrMissingNotice(t *testing.T) {
	platform := &fakePlatform{}
	st := &fakeStore{tags: map[string]*domain.Tag{"g1/greeting": {Content: "hello!"}}}
	d := &Deps{Platform: platform, Store: st}
	descs := Build(d)

	inv := newInvocation(descs, "tag", &domain.Message{ChannelID: "c1", GuildID: "g1"}, []command.Value{
		{Kind: command.ValueString, Str: "greeting", Present: true},
	})
	if err := inv.Descriptor.Handler(context.Background(), inv); err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if platform.replies[0] != "hello!" {
		t.Fatalf("got %q", platform.replies[0])
	}

	inv2 := newInvocation(descs, "tag", &domain.Message{ChannelID: "c1", GuildID: "g1"}, []command.Value{
		{Kind: command.ValueString, Str: "missing", Present: true},
	})
	if err := inv2.Descriptor.Handler(context.Background(), inv2); err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if platform.replies[1] != `no tag named "missing"` {
		t.Fatalf("got %q", platform.replies[1])
	}
}
