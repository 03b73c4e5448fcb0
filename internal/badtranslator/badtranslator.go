// Package badtranslator implements the BadTranslator pipeline of spec.md
// §4.H: channels subscribed to round-trip translation, delivered through an
// impersonation webhook.
package badtranslator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jacherr/assystbot/internal/domain"
	"github.com/jacherr/assystbot/internal/platform"
	"github.com/jacherr/assystbot/internal/store"
	"github.com/jacherr/assystbot/internal/translate"
)

const (
	perUserWindow    = 3 * time.Second
	warningLifetime  = 5 * time.Second
	maxWebhookLength = 2000
)

var (
	customEmojiRe = regexp.MustCompile(`<a?:(\w+):\d+>`)
	mentionRe     = regexp.MustCompile(`<@!?(\d+)>`)
)

// channelState is the in-memory half of spec.md §4.H's per-channel map. The
// map is filled only through Subscribe; the pipeline never loads bt_channels
// rows from the store itself.
type channelState struct {
	targetLang   string
	webhookID    string
	webhookToken string
}

// Pipeline is stateful: the channel map and per-user ratelimit windows are
// guarded by one mutex each, mirroring internal/replycache's split between
// a coarse membership lock and per-entry state (spec.md §5 forbids nesting
// them).
type Pipeline struct {
	Store      store.Store
	Platform   platform.Client
	Translator translate.Service
	Logger     *slog.Logger

	// WarningLifetime overrides the 5s ratelimit-notice lifetime; zero
	// means the spec.md §4.H default. Exposed for tests.
	WarningLifetime time.Duration

	mu       sync.RWMutex
	channels map[string]*channelState

	rlMu        sync.Mutex
	lastMessage map[string]time.Time

	noticeMu sync.Mutex
	notices  map[string]bool
}

// New constructs an empty pipeline; channel state is populated only via
// Subscribe, and messages in channels not subscribed that way are ignored.
func New(st store.Store, pf platform.Client, translator translate.Service, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Store:       st,
		Platform:    pf,
		Translator:  translator,
		Logger:      logger,
		channels:    make(map[string]*channelState),
		lastMessage: make(map[string]time.Time),
		notices:     make(map[string]bool),
	}
}

// Subscribe registers a channel for translation in the in-memory map.
func (p *Pipeline) Subscribe(channelID, targetLang, webhookID, webhookToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[channelID] = &channelState{targetLang: targetLang, webhookID: webhookID, webhookToken: webhookToken}
}

// Unsubscribe removes a channel from the in-memory map.
func (p *Pipeline) Unsubscribe(channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.channels, channelID)
}

// IsSubscribed reports whether channelID has an active BadTranslator entry,
// used by the gateway bridge to decide BT-vs-dispatcher routing (spec.md
// §4.K).
func (p *Pipeline) IsSubscribed(channelID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.channels[channelID]
	return ok
}

func (p *Pipeline) get(channelID string) (*channelState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.channels[channelID]
	return s, ok
}

func (p *Pipeline) markNotice(id string) {
	p.noticeMu.Lock()
	p.notices[id] = true
	p.noticeMu.Unlock()
}

func (p *Pipeline) isOwnNotice(id string) bool {
	p.noticeMu.Lock()
	defer p.noticeMu.Unlock()
	return p.notices[id]
}

func (p *Pipeline) clearNotice(id string) {
	p.noticeMu.Lock()
	delete(p.notices, id)
	p.noticeMu.Unlock()
}

// Handle runs steps 1-9 of spec.md §4.H for one inbound message in a
// subscribed channel. The gateway bridge is responsible for only calling
// Handle on messages in a subscribed channel (IsSubscribed).
func (p *Pipeline) Handle(ctx context.Context, msg *domain.Message) {
	if msg.Author.Bot || msg.IsWebhook || p.isOwnNotice(msg.ID) {
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		p.deleteSilently(ctx, msg.ChannelID, msg.ID)
		return
	}

	if p.rateLimited(msg.Author.ID) {
		p.handleRateLimit(ctx, msg)
		return
	}

	state, ok := p.get(msg.ChannelID)
	if !ok {
		return
	}

	normalized := normalize(msg)

	webhookID, webhookToken, ok := p.resolveWebhook(ctx, msg.ChannelID, state)
	if !ok {
		p.Unsubscribe(msg.ChannelID)
		if err := p.Store.DeleteBTChannel(ctx, msg.ChannelID); err != nil {
			p.Logger.Warn("badtranslator: drop stale channel failed", "channel_id", msg.ChannelID, "error", err)
		}
		return
	}

	translated, err := p.Translator.Translate(ctx, translate.Request{
		Text:       normalized,
		UserID:     msg.Author.ID,
		GuildID:    msg.GuildID,
		TargetLang: state.targetLang,
	})
	if err != nil {
		p.Logger.Warn("badtranslator: translate failed", "channel_id", msg.ChannelID, "error", err)
		return
	}

	if err := p.Platform.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		if isNotFound(err) {
			return
		}
		p.Logger.Warn("badtranslator: delete source failed", "channel_id", msg.ChannelID, "error", err)
	}

	content := escapeMentions(truncate(translated, maxWebhookLength))
	if err := p.Platform.ExecuteWebhook(ctx, webhookID, webhookToken, msg.Author.Username, msg.Author.AvatarURL(), content); err != nil {
		p.Logger.Warn("badtranslator: execute webhook failed", "channel_id", msg.ChannelID, "error", err)
		return
	}

	if err := p.Store.IncrementBTTranslated(ctx, msg.GuildID); err != nil {
		p.Logger.Warn("badtranslator: increment counter failed", "guild_id", msg.GuildID, "error", err)
	}
}

func (p *Pipeline) rateLimited(userID string) bool {
	now := time.Now()
	p.rlMu.Lock()
	defer p.rlMu.Unlock()
	if last, ok := p.lastMessage[userID]; ok && now.Sub(last) < perUserWindow {
		return true
	}
	p.lastMessage[userID] = now
	return false
}

// handleRateLimit implements spec.md §4.H step 3's exceeded-ratelimit path.
func (p *Pipeline) handleRateLimit(ctx context.Context, msg *domain.Message) {
	p.deleteSilently(ctx, msg.ChannelID, msg.ID)

	warning, err := p.Platform.CreateMessage(ctx, msg.ChannelID, fmt.Sprintf("<@%s> you're sending messages too fast, slow down", msg.Author.ID))
	if err != nil {
		p.Logger.Warn("badtranslator: ratelimit notice failed", "channel_id", msg.ChannelID, "error", err)
		return
	}
	p.markNotice(warning.ID)
	lifetime := p.WarningLifetime
	if lifetime == 0 {
		lifetime = warningLifetime
	}
	time.Sleep(lifetime)
	p.deleteSilently(ctx, msg.ChannelID, warning.ID)
	p.clearNotice(warning.ID)
}

func (p *Pipeline) deleteSilently(ctx context.Context, channelID, messageID string) {
	if err := p.Platform.DeleteMessage(ctx, channelID, messageID); err != nil && !isNotFound(err) {
		p.Logger.Warn("badtranslator: delete message failed", "channel_id", channelID, "message_id", messageID, "error", err)
	}
}

// resolveWebhook implements spec.md §4.H step 5.
func (p *Pipeline) resolveWebhook(ctx context.Context, channelID string, state *channelState) (id, token string, ok bool) {
	if state.webhookID != "" && state.webhookToken != "" {
		return state.webhookID, state.webhookToken, true
	}

	hooks, err := p.Platform.GetWebhooks(ctx, channelID)
	if err != nil {
		p.Logger.Warn("badtranslator: list webhooks failed", "channel_id", channelID, "error", err)
		return "", "", false
	}
	for _, h := range hooks {
		if h.Token == "" {
			continue
		}
		p.mu.Lock()
		state.webhookID, state.webhookToken = h.ID, h.Token
		p.mu.Unlock()
		if err := p.Store.UpsertBTChannel(ctx, &domain.BTChannel{
			ChannelID: channelID, TargetLang: state.targetLang, WebhookID: h.ID, WebhookToken: h.Token,
		}); err != nil {
			p.Logger.Warn("badtranslator: cache webhook failed", "channel_id", channelID, "error", err)
		}
		return h.ID, h.Token, true
	}
	return "", "", false
}

// normalize implements spec.md §4.H step 4: replace custom emoji with their
// name and mentions with the mentioned user's display name.
func normalize(msg *domain.Message) string {
	content := customEmojiRe.ReplaceAllString(msg.Content, ":$1:")

	byID := make(map[string]string, len(msg.Mentions))
	for _, u := range msg.Mentions {
		byID[u.ID] = u.Username
	}
	content = mentionRe.ReplaceAllStringFunc(content, func(tok string) string {
		id := mentionRe.FindStringSubmatch(tok)[1]
		if name, ok := byID[id]; ok {
			return "@" + name
		}
		return tok
	})
	return content
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// escapeMentions defangs an '@' so the webhook post cannot re-trigger a
// platform mention (spec.md §4.H step 8).
func escapeMentions(s string) string {
	return strings.ReplaceAll(s, "@", "@​")
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "404")
}
