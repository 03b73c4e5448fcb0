// Package platform defines the chat-platform REST contract the core
// depends on (spec.md §6), as a narrow interface — mirroring the teacher's
// store.Repository/container.Manager dependency-inversion style — so the
// dispatcher, BadTranslator and reminder scheduler never depend on a
// concrete HTTP client.
package platform

import (
	"context"

	"github.com/jacherr/assystbot/internal/domain"
)

// Webhook is a channel webhook the BadTranslator pipeline discovers and
// caches for impersonation (spec.md §4.H step 5).
type Webhook struct {
	ID    string
	Token string
}

// Role is a guild role, used by the self-assignable color-role commands.
type Role struct {
	ID    string
	Name  string
	Color int
}

// Client is the exact REST surface spec.md §6 names.
type Client interface {
	CreateMessage(ctx context.Context, channelID, content string) (*domain.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	GetChannel(ctx context.Context, channelID string) (*domain.ChannelNSFW, error)
	GetGuild(ctx context.Context, guildID string) (*domain.Member, error)
	ListChannelMessages(ctx context.Context, channelID string, limit int) ([]*domain.Message, error)

	GetWebhooks(ctx context.Context, channelID string) ([]Webhook, error)
	ExecuteWebhook(ctx context.Context, webhookID, webhookToken string, username, avatarURL, content string) error

	CreateRole(ctx context.Context, guildID, name string, color int) (*Role, error)
	ListRoles(ctx context.Context, guildID string) ([]Role, error)

	GetGuildMember(ctx context.Context, guildID, userID string) (*domain.Member, error)
	UpdateGuildMember(ctx context.Context, guildID, userID string, addRoleIDs, removeRoleIDs []string) error
}
