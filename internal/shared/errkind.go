package shared

import (
	"errors"
	"fmt"
)

// ErrKind classifies an error for the purposes of reply formatting and
// logging. It deliberately carries no message text of its own — the text
// lives on the wrapping Error.
type ErrKind int

const (
	// ErrKindUnknown is the zero value; never constructed deliberately.
	ErrKindUnknown ErrKind = iota
	ErrKindParseMissing
	ErrKindParseInvalid
	ErrKindParsePermission
	ErrKindMediaDownload
	ErrKindCooldown
	ErrKindDisabled
	ErrKindNsfwViolation
	ErrKindWorkerUnavailable
	ErrKindWorkerTimeout
	ErrKindWorkerProcessing
	ErrKindPlatform
	ErrKindStore
	ErrKindFatal
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindParseMissing:
		return "parse_missing"
	case ErrKindParseInvalid:
		return "parse_invalid"
	case ErrKindParsePermission:
		return "parse_permission"
	case ErrKindMediaDownload:
		return "media_download"
	case ErrKindCooldown:
		return "cooldown"
	case ErrKindDisabled:
		return "disabled"
	case ErrKindNsfwViolation:
		return "nsfw_violation"
	case ErrKindWorkerUnavailable:
		return "worker_unavailable"
	case ErrKindWorkerTimeout:
		return "worker_timeout"
	case ErrKindWorkerProcessing:
		return "worker_processing"
	case ErrKindPlatform:
		return "platform"
	case ErrKindStore:
		return "store"
	case ErrKindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the taxonomy-carrying error type threaded through the parser,
// dispatcher and every subsystem it calls. Reply formatting switches on Kind;
// Unwrap lets callers still use errors.Is/errors.As against the cause.
type Error struct {
	Kind    ErrKind
	Message string
	// ShouldReply distinguishes "reply with usage/explanation" from
	// "silently drop" — only meaningful for parse errors (spec.md §7).
	ShouldReply bool
	Cause       error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with ShouldReply defaulted to true; parse errors that
// should be dropped silently must set it explicitly via Silent.
func New(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), ShouldReply: true}
}

// Wrap builds an Error around an existing cause, preserving it for Unwrap.
func Wrap(kind ErrKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), ShouldReply: true, Cause: cause}
}

// Silent marks an Error so the dispatcher drops it without a reply. Used for
// parse failures that mean "this message was not addressed to us".
func Silent(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), ShouldReply: false}
}

// KindOf extracts the ErrKind from err if it (or something it wraps) is an
// *Error, defaulting to ErrKindFatal for anything else.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindFatal
}
