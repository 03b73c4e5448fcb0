package command

import "github.com/jacherr/assystbot/internal/domain"

// Invocation is the triggering message plus the bookkeeping the dispatcher
// threads through a single command run: the resolved prefix, the descriptor,
// and — once parsing succeeds — the parsed argument/flag values.
type Invocation struct {
	Message    *domain.Message
	Prefix     string
	Descriptor *Descriptor
	Parsed     *Parsed
}

// Parsed is the calling name plus ordered positional values and a flag map,
// exactly as spec.md §3 "Parsed command" describes.
type Parsed struct {
	Name       string
	Positional []Value
	Flags      map[string]Value
}

// ValueKind mirrors ArgKind/FlagKind's tag but on the resolved value side.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueString
	ValueInt64
	ValueFloat64
	ValueBool
	ValueStringList
)

// Value is a dynamically-typed parsed argument or flag value. Only one field
// is meaningful per Kind; Value has no checked accessors, so callers read the
// field that matches their own descriptor's declared kind.
type Value struct {
	Kind   ValueKind
	Str    string
	Int    int64
	Float  float64
	Bool   bool
	Strs   []string
	// Present distinguishes a parsed Optional() miss (Present=false) from a
	// zero value; OptionalWithDefault variants always set Present=true.
	Present bool
}

func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueInt64:
		return v.Str // formatted string retained by the parser for Integer
	case ValueFloat64:
		return v.Str
	default:
		return v.Str
	}
}

// Flag looks up a parsed flag by name, reporting whether it was present.
func (p *Parsed) Flag(name string) (Value, bool) {
	v, ok := p.Flags[name]
	return v, ok
}
