// Package domain holds the plain data types shared across the dispatch
// engine: the platform message shape, reminders and patron tiers. These are
// passive structs with small derived-value methods, not active components.
package domain

import "time"

// Attachment is a file attached directly to a message.
type Attachment struct {
	ID       string
	URL      string
	Filename string
	Width    int
	Height   int
}

// EmbedImage is the image/thumbnail/video portion of a rich embed.
type EmbedImage struct {
	ImageURL     string
	ThumbnailURL string
	VideoURL     string
}

// Sticker is a platform sticker reference.
type Sticker struct {
	ID     string
	Format StickerFormat
}

// StickerFormat enumerates the wire formats a sticker may arrive in.
type StickerFormat int

const (
	StickerFormatPNG StickerFormat = iota
	StickerFormatAPNG
	StickerFormatLottie
	StickerFormatGIF
)

// User is the minimal author/mentionee shape the parser and dispatcher need.
type User struct {
	ID            string
	Username      string
	Discriminator string
	AvatarHash    string
	Bot           bool
}

// AvatarURL constructs the CDN avatar URL, using the animated extension iff
// the hash indicates an animated avatar (spec.md §4.D media source 1).
func (u User) AvatarURL() string {
	ext := "png"
	if IsAnimatedHash(u.AvatarHash) {
		ext = "gif"
	}
	return "https://cdn.chatplatform.example/avatars/" + u.ID + "/" + u.AvatarHash + "." + ext
}

// IsAnimatedHash reports whether a CDN asset hash indicates an animated
// asset, per the platform convention of prefixing animated hashes with "a_".
func IsAnimatedHash(hash string) bool {
	return len(hash) > 2 && hash[:2] == "a_"
}

// Member augments a User with guild-scoped permission bits the permission
// gate in 4.D needs (ServerManager access level).
type Member struct {
	User            User
	IsGuildOwner    bool
	HasAdmin        bool
	HasManageGuild  bool
}

// Message is the subset of a chat-platform message the core cares about.
type Message struct {
	ID          string
	ChannelID   string
	GuildID     string // empty for DMs
	Author      User
	Content     string
	Attachments []Attachment
	Stickers    []Sticker
	Embeds      []EmbedImage
	Mentions    []User
	IsWebhook   bool
	EditedAt    *time.Time
	CreatedAt   time.Time

	// ReferencedMessage is the message this one replies to, if any (the
	// platform inlines it on the create/update event; it is never fetched
	// lazily here since that crosses the persistent-caching non-goal).
	ReferencedMessage *Message
}

// ChannelNSFW augments channel lookups the permission gate needs; channel
// metadata itself is out of scope (spec.md §1), so the dispatcher carries
// only this single bit alongside a message when it is already known.
type ChannelNSFW bool

// Reminder is a scheduled one-shot notification.
type Reminder struct {
	ID        int64
	UserID    string
	GuildID   string
	ChannelID string
	MessageID string
	DueAt     time.Time
	Body      string
}

// IsDue reports whether the reminder should fire by the given scan time,
// using the scheduler's look-ahead window (spec.md §4.I: due <= now + 30s).
func (r Reminder) IsDue(scanTime time.Time, lookahead time.Duration) bool {
	return !r.DueAt.After(scanTime.Add(lookahead))
}

// MessageLink builds the jump-link appended to a reminder notification.
func (r Reminder) MessageLink() string {
	return "https://chat.example/channels/" + r.GuildID + "/" + r.ChannelID + "/" + r.MessageID
}

// PatronTier is a non-negative subscription tier; 0 means no subscription.
type PatronTier int

// Patron records a user's subscription tier and administrative status.
type Patron struct {
	UserID string
	Tier   PatronTier
	Admin  bool
}
