// Package parser implements spec.md §4.D: turning the flag-stripped,
// tokenized text of an inbound message into typed argument values, with a
// multi-source fallback chain for image/media arguments.
//
// The parser depends only on small interfaces for its external
// collaborators (content download, tenor resolution, sticker-to-GIF
// conversion, CDN upload, scrollback lookup) — mirroring the teacher's
// store.Repository/container.Manager dependency-inversion style — so it can
// be unit tested without a live network or worker process.
package parser

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/jacherr/assystbot/internal/command"
	"github.com/jacherr/assystbot/internal/domain"
	"github.com/jacherr/assystbot/internal/shared"
)

const maxImageBytes = 50 * 1024 * 1024

// ContentFetcher downloads raw bytes for a URL, observing the 50 MB cap and
// routing through a content-proxy for untrusted hosts (spec.md §4.D media
// resolution step on ImageBuffer).
type ContentFetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64, useProxy bool) ([]byte, error)
}

// TenorResolver extracts the real GIF URL out of a tenor.com/view/ page.
type TenorResolver interface {
	ResolveTenorURL(ctx context.Context, pageURL string) (string, error)
}

// StickerConverter renders a Lottie-format sticker to a GIF via the worker.
type StickerConverter interface {
	ConvertLottieToGIF(ctx context.Context, stickerID string) ([]byte, error)
}

// CDNUploader stores converted media and returns its public URL.
type CDNUploader interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}

// ScrollbackLookup returns the most recent channel message known to carry
// media (spec.md §4.D media resolution source 7).
type ScrollbackLookup interface {
	LastMediaURL(channelID string) (string, bool)
}

// Whitelist is the set of hosts fetched directly instead of through the
// content proxy.
type Whitelist map[string]bool

// Parser turns message text into a Parsed command against a Descriptor.
type Parser struct {
	Content    ContentFetcher
	Tenor      TenorResolver
	Stickers   StickerConverter
	CDN        CDNUploader
	Scrollback ScrollbackLookup
	Whitelist  Whitelist
}

var flagTokenRe = regexp.MustCompile(`-(\w+)(?:\s+"([^"]*)"|\s+(\S+))?`)

// tokenSplit normalizes newlines by padding and splits on single spaces, per
// spec.md §4.D tokenization rule.
func tokenSplit(text string) []string {
	text = strings.ReplaceAll(text, "\n", " \n ")
	var tokens []string
	for _, tok := range strings.Split(text, " ") {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Tokenize strips the resolved prefix, lower-cases the command name, and
// returns it alongside the remaining raw text (before flag extraction).
func Tokenize(content, prefix string) (name string, rest string, ok bool) {
	if !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	stripped := content[len(prefix):]
	stripped = strings.ReplaceAll(stripped, "\n", " \n ")
	fields := strings.SplitN(strings.TrimLeft(stripped, " "), " ", 2)
	if len(fields) == 0 || fields[0] == "" {
		return "", "", false
	}
	name = strings.ToLower(fields[0])
	if len(fields) == 2 {
		rest = fields[1]
	}
	return name, rest, true
}

// extractFlags scans text for `-name [value]` tokens. Declared flags are
// consumed into the returned map, typed by their descriptor kind; tokens for
// undeclared flag names are reconstructed and left in the returned residual
// text (spec.md §4.D flag extraction).
func extractFlags(text string, declared []command.FlagArg) (map[string]command.Value, string, error) {
	byName := make(map[string]command.FlagArg, len(declared))
	for _, f := range declared {
		byName[f.Name] = f
	}

	out := make(map[string]command.Value)
	residual := flagTokenRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := flagTokenRe.FindStringSubmatch(match)
		name := groups[1]
		raw := groups[2]
		if raw == "" {
			raw = groups[3]
		}

		flag, declared := byName[name]
		if !declared {
			return match
		}

		val, err := parseFlagValue(flag.Kind, raw)
		if err != nil {
			// Leave a malformed but declared flag token in the stream; the
			// positional parser downstream will usually fail on it with a
			// clearer ParseInvalid for the affected positional slot.
			return match
		}
		out[name] = val
		return ""
	})
	return out, strings.Join(strings.Fields(residual), " "), nil
}

func parseFlagValue(kind command.FlagKind, raw string) (command.Value, error) {
	switch kind.Tag() {
	case command.FlagTagUnit:
		return command.Value{Kind: command.ValueBool, Bool: true, Present: true}, nil
	case command.FlagTagText:
		return command.Value{Kind: command.ValueString, Str: raw, Present: true}, nil
	case command.FlagTagInteger:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return command.Value{}, err
		}
		return command.Value{Kind: command.ValueInt64, Int: int64(f), Str: strconv.FormatInt(int64(f), 10), Present: true}, nil
	case command.FlagTagDecimal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return command.Value{}, err
		}
		return command.Value{Kind: command.ValueFloat64, Float: f, Str: raw, Present: true}, nil
	case command.FlagTagBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return command.Value{}, err
		}
		return command.Value{Kind: command.ValueBool, Bool: b, Present: true}, nil
	case command.FlagTagChoice:
		for _, c := range kind.Choices() {
			if c == raw {
				return command.Value{Kind: command.ValueString, Str: raw, Present: true}, nil
			}
		}
		return command.Value{}, shared.New(shared.ErrKindParseInvalid, "flag value %q is not a valid choice", raw)
	case command.FlagTagList:
		return command.Value{Kind: command.ValueStringList, Strs: strings.Split(raw, ","), Present: true}, nil
	default:
		return command.Value{}, shared.New(shared.ErrKindParseInvalid, "unknown flag kind")
	}
}

// Parse builds a Parsed command for msg against descriptor, resolving flags
// and positional arguments including the media fallback chain.
func (p *Parser) Parse(ctx context.Context, msg *domain.Message, prefix string, descriptor *command.Descriptor) (*command.Parsed, error) {
	name, rest, ok := Tokenize(msg.Content, prefix)
	if !ok {
		return nil, shared.Silent(shared.ErrKindParseMissing, "message does not start with resolved prefix")
	}

	flags, residual, err := extractFlags(rest, descriptor.Flags)
	if err != nil {
		return nil, err
	}

	tokens := tokenSplit(residual)
	idx := 0
	positional := make([]command.Value, 0, len(descriptor.Positional))
	for _, arg := range descriptor.Positional {
		val, consumed, err := p.parsePositional(ctx, arg.Kind, tokens, &idx, msg)
		if err != nil {
			return nil, err
		}
		positional = append(positional, val)
		_ = consumed
	}

	return &command.Parsed{Name: name, Positional: positional, Flags: flags}, nil
}

func (p *Parser) parsePositional(ctx context.Context, kind command.ArgKind, tokens []string, idx *int, msg *domain.Message) (command.Value, bool, error) {
	switch kind.Tag() {
	case command.ArgString:
		if *idx >= len(tokens) {
			return command.Value{}, false, shared.New(shared.ErrKindParseMissing, "missing required argument")
		}
		v := command.Value{Kind: command.ValueString, Str: tokens[*idx], Present: true}
		*idx++
		return v, true, nil

	case command.ArgStringRemaining:
		if *idx >= len(tokens) {
			if msg.ReferencedMessage != nil && msg.ReferencedMessage.Content != "" {
				return command.Value{Kind: command.ValueString, Str: msg.ReferencedMessage.Content, Present: true}, false, nil
			}
			return command.Value{}, false, shared.New(shared.ErrKindParseMissing, "missing required argument")
		}
		joined := strings.Join(tokens[*idx:], " ")
		*idx = len(tokens)
		return command.Value{Kind: command.ValueString, Str: joined, Present: true}, true, nil

	case command.ArgInteger:
		if *idx >= len(tokens) {
			return command.Value{}, false, shared.New(shared.ErrKindParseMissing, "missing required argument")
		}
		f, err := strconv.ParseFloat(tokens[*idx], 64)
		if err != nil {
			return command.Value{}, false, shared.New(shared.ErrKindParseInvalid, "%q is not a number", tokens[*idx])
		}
		*idx++
		rounded := int64(f)
		return command.Value{Kind: command.ValueInt64, Int: rounded, Str: strconv.FormatInt(rounded, 10), Present: true}, true, nil

	case command.ArgDecimal:
		if *idx >= len(tokens) {
			return command.Value{}, false, shared.New(shared.ErrKindParseMissing, "missing required argument")
		}
		f, err := strconv.ParseFloat(tokens[*idx], 64)
		if err != nil {
			return command.Value{}, false, shared.New(shared.ErrKindParseInvalid, "%q is not a number", tokens[*idx])
		}
		*idx++
		return command.Value{Kind: command.ValueFloat64, Float: f, Str: tokens[*idx-1], Present: true}, true, nil

	case command.ArgChoice:
		if *idx >= len(tokens) {
			return command.Value{}, false, shared.New(shared.ErrKindParseMissing, "missing required argument")
		}
		tok := tokens[*idx]
		for _, c := range kind.Choices() {
			if c == tok {
				*idx++
				return command.Value{Kind: command.ValueString, Str: tok, Present: true}, true, nil
			}
		}
		return command.Value{}, false, shared.New(shared.ErrKindParseInvalid, "%q is not one of %v", tok, kind.Choices())

	case command.ArgImageURL:
		url, consumed, err := p.resolveMedia(ctx, tokens, idx, msg)
		if err != nil {
			return command.Value{}, false, err
		}
		return command.Value{Kind: command.ValueString, Str: url, Present: true}, consumed, nil

	case command.ArgImageBuffer:
		url, consumed, err := p.resolveMedia(ctx, tokens, idx, msg)
		if err != nil {
			return command.Value{}, false, err
		}
		useProxy := !p.isWhitelisted(url)
		if strings.Contains(url, "tenor.com/view/") && p.Tenor != nil {
			resolved, terr := p.Tenor.ResolveTenorURL(ctx, url)
			if terr == nil && resolved != "" {
				url = resolved
			}
		}
		data, ferr := p.Content.Fetch(ctx, url, maxImageBytes, useProxy)
		if ferr != nil {
			return command.Value{}, false, shared.Wrap(shared.ErrKindMediaDownload, ferr, "could not download media")
		}
		return command.Value{Kind: command.ValueStringList, Strs: []string{string(data)}, Present: true}, consumed, nil

	case command.ArgOptional:
		v, consumed, err := p.parsePositional(ctx, *kind.Inner(), tokens, idx, msg)
		if err != nil {
			if shared.KindOf(err) == shared.ErrKindParseMissing {
				return command.Value{Present: false}, false, nil
			}
			return command.Value{}, false, err
		}
		return v, consumed, nil

	case command.ArgOptionalWithDefault:
		v, consumed, err := p.parsePositional(ctx, *kind.Inner(), tokens, idx, msg)
		if err != nil {
			if shared.KindOf(err) == shared.ErrKindParseMissing {
				return command.Value{Kind: command.ValueString, Str: kind.Literal(), Present: true}, false, nil
			}
			return command.Value{}, false, err
		}
		return v, consumed, nil

	case command.ArgOptionalWithDefaultDynamic:
		v, consumed, err := p.parsePositional(ctx, *kind.Inner(), tokens, idx, msg)
		if err != nil {
			if shared.KindOf(err) == shared.ErrKindParseMissing {
				return command.Value{Kind: command.ValueString, Str: kind.Dynamic()(ctx), Present: true}, false, nil
			}
			return command.Value{}, false, err
		}
		return v, consumed, nil

	default:
		return command.Value{}, false, shared.New(shared.ErrKindParseInvalid, "unknown argument kind")
	}
}

func (p *Parser) isWhitelisted(url string) bool {
	if p.Whitelist == nil {
		return false
	}
	for host := range p.Whitelist {
		if strings.Contains(url, host) {
			return true
		}
	}
	return false
}
