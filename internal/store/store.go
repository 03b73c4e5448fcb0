// Package store exposes the relational store exclusively through the named
// operations spec.md §6 allows ("queried only through named operations"),
// grounded on the teacher's internal/store.Repository: a narrow interface
// the rest of the core depends on, with a single modernc.org/sqlite-backed
// implementation.
package store

import (
	"context"
	"time"

	"github.com/jacherr/assystbot/internal/domain"
)

// Store is the relational store's contract. Every command handler, the
// dispatcher, BadTranslator and the reminder scheduler depend on this
// interface only, never on *SQLiteStore.
type Store interface {
	// GetOrSetPrefix returns the guild's configured prefix, inserting def if
	// the guild has none recorded yet (spec.md §4.D prefix resolution step 3).
	GetOrSetPrefix(ctx context.Context, guildID, def string) (string, error)

	// FetchDueReminders returns reminders with due <= before (spec.md §4.I).
	FetchDueReminders(ctx context.Context, before time.Time) ([]*domain.Reminder, error)
	// DeleteReminders removes the given reminder ids in a single transaction.
	DeleteReminders(ctx context.Context, ids []int64) error

	// IncrementCommandUses bumps the per-guild usage counter for a command
	// name (spec.md §4.G step 11).
	IncrementCommandUses(ctx context.Context, guildID, commandName string) error

	// GetCommandDisabled reports whether a command is disabled in a guild.
	GetCommandDisabled(ctx context.Context, guildID, commandName string) (bool, error)
	// SetCommandDisabled sets or clears a guild's disabled flag for a command.
	SetCommandDisabled(ctx context.Context, guildID, commandName string, disabled bool) error

	// AddBlacklist and RemoveBlacklist manage the global user blacklist.
	AddBlacklist(ctx context.Context, userID string) error
	RemoveBlacklist(ctx context.Context, userID string) error
	IsBlacklisted(ctx context.Context, userID string) (bool, error)

	// BadTranslator channel CRUD (spec.md §4.H).
	GetBTChannel(ctx context.Context, channelID string) (*domain.BTChannel, error)
	UpsertBTChannel(ctx context.Context, ch *domain.BTChannel) error
	DeleteBTChannel(ctx context.Context, channelID string) error
	IncrementBTTranslated(ctx context.Context, guildID string) error

	// Tag CRUD.
	GetTag(ctx context.Context, guildID, name string) (*domain.Tag, error)
	UpsertTag(ctx context.Context, tag *domain.Tag) error
	DeleteTag(ctx context.Context, guildID, name string) error
	ListTags(ctx context.Context, guildID string) ([]*domain.Tag, error)

	// Color-role CRUD.
	GetColorRole(ctx context.Context, guildID, hex string) (*domain.ColorRole, error)
	UpsertColorRole(ctx context.Context, role *domain.ColorRole) error
	DeleteColorRole(ctx context.Context, guildID, hex string) error
	ListColorRoles(ctx context.Context, guildID string) ([]*domain.ColorRole, error)

	// Free-request accounting: non-patrons get a small daily allowance of an
	// otherwise patron-gated operation; this tracks remaining count plus the
	// day it was last reset.
	GetFreeRequests(ctx context.Context, userID string, dailyAllowance int) (remaining int, err error)
	ConsumeFreeRequest(ctx context.Context, userID string) error

	// GetPatron looks up a user's subscription tier; nil, nil if not a patron.
	GetPatron(ctx context.Context, userID string) (*domain.Patron, error)

	Ping(ctx context.Context) error
	Close() error
}
