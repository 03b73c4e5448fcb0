package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/jacherr/assystbot/internal/command"
	"github.com/jacherr/assystbot/internal/config"
	"github.com/jacherr/assystbot/internal/domain"
	"github.com/jacherr/assystbot/internal/parser"
	"github.com/jacherr/assystbot/internal/platform"
	"github.com/jacherr/assystbot/internal/ratelimit"
	"github.com/jacherr/assystbot/internal/replycache"
	"github.com/jacherr/assystbot/internal/store"
)

// fakeStore implements store.Store with in-memory maps, enough for the
// dispatcher's own control flow; it does not exercise sqlite at all.
type fakeStore struct {
	store.Store
	disabled    map[string]bool
	blacklisted map[string]bool
	uses        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{disabled: map[string]bool{}, blacklisted: map[string]bool{}}
}

func (s *fakeStore) GetOrSetPrefix(ctx context.Context, guildID, def string) (string, error) {
	return def, nil
}
func (s *fakeStore) IsBlacklisted(ctx context.Context, userID string) (bool, error) {
	return s.blacklisted[userID], nil
}
func (s *fakeStore) GetCommandDisabled(ctx context.Context, guildID, commandName string) (bool, error) {
	return s.disabled[guildID+"/"+commandName], nil
}
func (s *fakeStore) IncrementCommandUses(ctx context.Context, guildID, commandName string) error {
	s.uses++
	return nil
}

// fakePlatform records every reply posted so tests can assert on it.
type fakePlatform struct {
	platform.Client
	replies []string
}

func (p *fakePlatform) CreateMessage(ctx context.Context, channelID, content string) (*domain.Message, error) {
	p.replies = append(p.replies, content)
	return &domain.Message{ID: "reply1", ChannelID: channelID, Content: content}, nil
}

func newDispatcher(t *testing.T, descriptors []*command.Descriptor) (*Dispatcher, *fakeStore, *fakePlatform) {
	t.Helper()
	reg, err := command.Build(descriptors)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fs := newFakeStore()
	fp := &fakePlatform{}
	d := &Dispatcher{
		Registry:   reg,
		Replies:    replycache.New(nil),
		RateLimits: ratelimit.NewTable(),
		Parser:     &parser.Parser{},
		Store:      fs,
		Platform:   fp,
		Config:     &config.Config{Prefix: config.Prefix{Default: "-"}},
	}
	return d, fs, fp
}

func TestDispatch_UnknownCommandIsSilentlyIgnored(t *testing.T) {
	d, _, fp := newDispatcher(t, nil)
	msg := &domain.Message{ID: "m1", ChannelID: "c1", Content: "-nope"}

	d.Dispatch(context.Background(), msg, nil, false)

	if len(fp.replies) != 0 {
		t.Errorf("replies = %v, want none for an unknown command", fp.replies)
	}
}

func TestDispatch_InvokesHandlerAndIncrementsUses(t *testing.T) {
	var invoked bool
	desc := &command.Descriptor{
		Name:       "ping",
		Positional: []command.PositionalArg{},
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			invoked = true
			return nil
		},
	}
	d, fs, _ := newDispatcher(t, []*command.Descriptor{desc})
	msg := &domain.Message{ID: "m1", ChannelID: "c1", Content: "-ping"}

	d.Dispatch(context.Background(), msg, nil, false)

	if !invoked {
		t.Fatal("handler was not invoked")
	}
	if fs.uses != 1 {
		t.Errorf("uses = %d, want 1", fs.uses)
	}
}

func TestDispatch_SecondConcurrentInvocationIsRefusedBySlot(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	desc := &command.Descriptor{
		Name: "slow",
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			close(started)
			<-block
			return nil
		},
	}
	d, _, _ := newDispatcher(t, []*command.Descriptor{desc})
	msg := &domain.Message{ID: "m1", ChannelID: "c1", Content: "-slow"}

	go d.Dispatch(context.Background(), msg, nil, false)
	<-started

	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), msg, nil, false)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second dispatch for the same invocation did not return promptly")
	}
	close(block)
}

func TestDispatch_GuildDisabledCommandIsRefused(t *testing.T) {
	var invoked bool
	desc := &command.Descriptor{
		Name: "blur",
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			invoked = true
			return nil
		},
	}
	d, fs, _ := newDispatcher(t, []*command.Descriptor{desc})
	fs.disabled["g1/blur"] = true
	msg := &domain.Message{ID: "m1", GuildID: "g1", ChannelID: "c1", Content: "-blur"}

	d.Dispatch(context.Background(), msg, &domain.Member{}, false)

	if invoked {
		t.Fatal("handler ran for a guild-disabled command")
	}
}

func TestDispatch_RateLimitedSecondCallReplies(t *testing.T) {
	desc := &command.Descriptor{
		Name:     "ping",
		Cooldown: 30,
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			return nil
		},
	}
	d, _, fp := newDispatcher(t, []*command.Descriptor{desc})

	d.Dispatch(context.Background(), &domain.Message{ID: "m1", ChannelID: "c1", Content: "-ping"}, nil, false)
	d.Dispatch(context.Background(), &domain.Message{ID: "m2", ChannelID: "c1", Content: "-ping"}, nil, false)

	found := false
	for _, r := range fp.replies {
		if r != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a cooldown reply on the second invocation")
	}
}

func TestDispatch_NSFWGateBlocksInNonNSFWChannel(t *testing.T) {
	var invoked bool
	desc := &command.Descriptor{
		Name: "lewd",
		NSFW: true,
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			invoked = true
			return nil
		},
	}
	d, _, fp := newDispatcher(t, []*command.Descriptor{desc})

	d.Dispatch(context.Background(), &domain.Message{ID: "m1", ChannelID: "c1", Content: "-lewd"}, nil, false)

	if invoked {
		t.Fatal("handler ran in a non-nsfw channel")
	}
	if len(fp.replies) != 1 {
		t.Fatalf("replies = %v, want exactly one nsfw-gate notice", fp.replies)
	}
}

func TestDispatch_BlacklistedUserIsIgnored(t *testing.T) {
	var invoked bool
	desc := &command.Descriptor{
		Name: "ping",
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			invoked = true
			return nil
		},
	}
	d, fs, _ := newDispatcher(t, []*command.Descriptor{desc})
	fs.blacklisted["u1"] = true

	d.Dispatch(context.Background(), &domain.Message{ID: "m1", ChannelID: "c1", Author: domain.User{ID: "u1"}, Content: "-ping"}, nil, false)

	if invoked {
		t.Fatal("handler ran for a blacklisted user")
	}
}
