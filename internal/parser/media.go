package parser

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/jacherr/assystbot/internal/domain"
	"github.com/jacherr/assystbot/internal/shared"
)

// customEmojiRe matches a custom emoji token like <a:name:123456789012345678>
// or <:name:123456789012345678>; the leading "a" marks it animated.
var customEmojiRe = regexp.MustCompile(`^<(a)?:\w+:(\d+)>$`)

// mentionRe matches a user mention token like <@123456789012345678> or
// <@!123456789012345678>.
var mentionRe = regexp.MustCompile(`^<@!?(\d+)>$`)

// resolveMedia walks the seven-source fallback chain of spec.md §4.D media
// resolution, stopping at the first hit. It reports whether a positional
// token was consumed, since sources 3, 4, 6 and 7 do not advance the index.
func (p *Parser) resolveMedia(ctx context.Context, tokens []string, idx *int, msg *domain.Message) (string, bool, error) {
	// Source 1: mention -> avatar URL.
	if *idx < len(tokens) {
		if m := mentionRe.FindStringSubmatch(tokens[*idx]); m != nil {
			for _, mention := range msg.Mentions {
				if mention.ID == m[1] {
					*idx++
					return mention.AvatarURL(), true, nil
				}
			}
		}
	}

	// Source 2: plain URL.
	if *idx < len(tokens) {
		if looksLikeURL(tokens[*idx]) {
			tok := tokens[*idx]
			*idx++
			return tok, true, nil
		}
	}

	// Source 3: current message's first attachment.
	if len(msg.Attachments) > 0 {
		return msg.Attachments[0].URL, false, nil
	}

	// Source 4: reply target's attachment, sticker, then embed.
	if msg.ReferencedMessage != nil {
		ref := msg.ReferencedMessage
		if len(ref.Attachments) > 0 {
			return ref.Attachments[0].URL, false, nil
		}
		if len(ref.Stickers) > 0 {
			if u, err := p.stickerURL(ctx, ref.Stickers[0]); err == nil && u != "" {
				return u, false, nil
			}
		}
		if len(ref.Embeds) > 0 {
			if u := embedImageURL(ref.Embeds[0]); u != "" {
				return u, false, nil
			}
		}
	}

	// Source 5: unicode or custom emoji.
	if *idx < len(tokens) {
		tok := tokens[*idx]
		if m := customEmojiRe.FindStringSubmatch(tok); m != nil {
			ext := "png"
			if m[1] == "a" {
				ext = "gif"
			}
			*idx++
			return "https://cdn.chatplatform.example/emojis/" + m[2] + "." + ext, true, nil
		}
		if emojiURL, ok := unicodeEmojiURL(tok); ok {
			*idx++
			return emojiURL, true, nil
		}
	}

	// Source 6: current message's first sticker.
	if len(msg.Stickers) > 0 {
		if u, err := p.stickerURL(ctx, msg.Stickers[0]); err == nil && u != "" {
			return u, false, nil
		}
	}

	// Source 7: most recent scrollback message bearing media.
	if p.Scrollback != nil {
		if u, ok := p.Scrollback.LastMediaURL(msg.ChannelID); ok {
			return u, false, nil
		}
	}

	return "", false, shared.New(shared.ErrKindMediaDownload, "no image source found")
}

// stickerURL returns a sticker's direct CDN URL, converting vector (Lottie)
// stickers to a GIF via the worker and uploading the result to the CDN first
// (spec.md §4.D media resolution source 6).
func (p *Parser) stickerURL(ctx context.Context, sticker domain.Sticker) (string, error) {
	if sticker.Format != domain.StickerFormatLottie {
		ext := "png"
		if sticker.Format == domain.StickerFormatGIF || sticker.Format == domain.StickerFormatAPNG {
			ext = "gif"
		}
		return "https://cdn.chatplatform.example/stickers/" + sticker.ID + "." + ext, nil
	}

	if p.Stickers == nil || p.CDN == nil {
		return "", shared.New(shared.ErrKindMediaDownload, "lottie sticker conversion unavailable")
	}
	gif, err := p.Stickers.ConvertLottieToGIF(ctx, sticker.ID)
	if err != nil {
		return "", shared.Wrap(shared.ErrKindMediaDownload, err, "convert lottie sticker")
	}
	uploaded, err := p.CDN.Upload(ctx, gif, sticker.ID+".gif")
	if err != nil {
		return "", shared.Wrap(shared.ErrKindMediaDownload, err, "upload converted sticker")
	}
	return uploaded, nil
}

func embedImageURL(e domain.EmbedImage) string {
	if e.ImageURL != "" {
		return e.ImageURL
	}
	if e.ThumbnailURL != "" {
		return e.ThumbnailURL
	}
	return e.VideoURL
}

func looksLikeURL(tok string) bool {
	u, err := url.Parse(tok)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// unicodeEmojiURL maps a unicode emoji token of one or two codepoints, each
// at or above U+1F000 or one of U+2764/U+2753, to a hosted PNG named by its
// lower-case hex codepoints joined with '-'.
func unicodeEmojiURL(tok string) (string, bool) {
	runes := []rune(tok)
	if len(runes) == 0 || len(runes) > 2 {
		return "", false
	}
	for _, r := range runes {
		if r < 0x1F000 && r != 0x2764 && r != 0x2753 {
			return "", false
		}
	}
	codepoints := make([]string, 0, len(runes))
	for _, r := range runes {
		codepoints = append(codepoints, toHex(r))
	}
	return "https://cdn.chatplatform.example/emoji/" + strings.Join(codepoints, "-") + ".png", true
}

func toHex(r rune) string {
	const digits = "0123456789abcdef"
	if r == 0 {
		return "0"
	}
	var b []byte
	for r > 0 {
		b = append([]byte{digits[r%16]}, b...)
		r /= 16
	}
	return string(b)
}
