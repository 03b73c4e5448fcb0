// Package gateway implements the ingress bridge of spec.md §4.K: routing
// gateway dispatches to BadTranslator, the command dispatcher, reply-slot
// edit/delete tracking, and the cache RPC service.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacherr/assystbot/internal/domain"
	"github.com/jacherr/assystbot/internal/platform"
	"github.com/jacherr/assystbot/internal/replycache"
)

// Dispatcher is the narrow slice of internal/dispatch.Dispatcher the bridge
// needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *domain.Message, member *domain.Member, nsfw bool)
}

// BadTranslator is the narrow slice of internal/badtranslator.Pipeline the
// bridge needs.
type BadTranslator interface {
	IsSubscribed(channelID string) bool
	Handle(ctx context.Context, msg *domain.Message)
}

// CacheClient is the narrow slice of internal/cacherpc.Client the bridge
// needs to forward guild-lifecycle events (spec.md §4.K).
type CacheClient interface {
	SendReady(ctx context.Context, guildIDs []string) error
	SendGuildCreate(ctx context.Context, guildID string) (bool, error)
	SendGuildDelete(ctx context.Context, guildID string) (bool, error)
}

// GuildEventNotifier is the narrow slice of the logger façade (spec.md
// §4.M) used for the guild_add category.
type GuildEventNotifier interface {
	GuildAdd(ctx context.Context, format string, args ...any)
}

// Bridge wires one gateway connection's dispatches to the core.
type Bridge struct {
	Dispatcher    Dispatcher
	BadTranslator BadTranslator
	Cache         CacheClient
	Replies       *replycache.Cache
	Platform      platform.Client
	Notifier      GuildEventNotifier
	Logger        *slog.Logger
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// OnMessageCreate routes a new message to BadTranslator if its channel is
// subscribed, otherwise to the command dispatcher.
func (b *Bridge) OnMessageCreate(ctx context.Context, msg *domain.Message, member *domain.Member, nsfw bool) {
	if b.BadTranslator != nil && b.BadTranslator.IsSubscribed(msg.ChannelID) {
		b.BadTranslator.Handle(ctx, msg)
		return
	}
	b.Dispatcher.Dispatch(ctx, msg, member, nsfw)
}

// OnMessageUpdate re-dispatches an edited message iff it was previously
// command-eligible (it already holds a reply slot) and the platform
// reports an edited timestamp, per spec.md §4.K.
func (b *Bridge) OnMessageUpdate(ctx context.Context, msg *domain.Message, member *domain.Member, nsfw bool) {
	if msg.EditedAt == nil {
		return
	}
	if _, ok := b.Replies.Get(msg.ID); !ok {
		return
	}
	b.Dispatcher.Dispatch(ctx, msg, member, nsfw)
}

// OnMessageDelete marks the invocation's reply slot deleted and, if no
// handler is currently running against it, deletes the bot's prior reply.
func (b *Bridge) OnMessageDelete(ctx context.Context, channelID, messageID string) {
	slot, ok := b.Replies.Get(messageID)
	if !ok {
		return
	}
	slot.MarkInvocationDeleted()

	// Acquire tests whether a handler is currently running against this
	// slot; if it is, that handler will observe InvocationDeleted itself
	// and must not post a fresh reply (spec.md §4.K).
	if !slot.Acquire(time.Now()) {
		return
	}
	reply := slot.ExistingReply()
	slot.Finish(reply)
	if reply == nil {
		return
	}
	if err := b.Platform.DeleteMessage(ctx, channelID, reply.ID); err != nil {
		b.logger().Warn("gateway: delete prior reply failed", "channel_id", channelID, "message_id", reply.ID, "error", err)
	}
}

// OnReady forwards the bootstrap guild set to the cache service.
func (b *Bridge) OnReady(ctx context.Context, guildIDs []string) error {
	if err := b.Cache.SendReady(ctx, guildIDs); err != nil {
		return fmt.Errorf("gateway: ready bootstrap: %w", err)
	}
	return nil
}

// OnGuildCreate forwards a guild-add to the cache service and logs it via
// the guild_add category iff the cache reports it should be logged.
func (b *Bridge) OnGuildCreate(ctx context.Context, guildID string) {
	shouldLog, err := b.Cache.SendGuildCreate(ctx, guildID)
	if err != nil {
		b.logger().Warn("gateway: guild create forward failed", "guild_id", guildID, "error", err)
		return
	}
	if shouldLog && b.Notifier != nil {
		b.Notifier.GuildAdd(ctx, "joined guild %s", guildID)
	}
}

// OnGuildDelete forwards a guild-remove to the cache service.
func (b *Bridge) OnGuildDelete(ctx context.Context, guildID string) {
	if _, err := b.Cache.SendGuildDelete(ctx, guildID); err != nil {
		b.logger().Warn("gateway: guild delete forward failed", "guild_id", guildID, "error", err)
	}
}
