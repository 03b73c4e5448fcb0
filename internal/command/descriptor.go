// Package command defines the data-driven command table: descriptors,
// argument/flag kinds, and the immutable registry built from them.
package command

import "context"

// AccessLevel gates who may invoke a command.
type AccessLevel int

const (
	Public AccessLevel = iota
	ServerManager
	Private
)

// ArgKind is the tagged variant of positional argument shapes a descriptor
// can declare. Exactly one of the constructor functions below should be used
// to build a value; the zero value is not a valid ArgKind.
type ArgKind struct {
	tag     argTag
	inner   *ArgKind
	choices []string
	literal string
	dynamic func(ctx context.Context) string
}

type argTag int

const (
	argString argTag = iota
	argStringRemaining
	argInteger
	argDecimal
	argChoice
	argImageURL
	argImageBuffer
	argOptional
	argOptionalWithDefault
	argOptionalWithDefaultDynamic
)

func String() ArgKind          { return ArgKind{tag: argString} }
func StringRemaining() ArgKind { return ArgKind{tag: argStringRemaining} }
func Integer() ArgKind         { return ArgKind{tag: argInteger} }
func Decimal() ArgKind         { return ArgKind{tag: argDecimal} }
func ImageURL() ArgKind        { return ArgKind{tag: argImageURL} }
func ImageBuffer() ArgKind     { return ArgKind{tag: argImageBuffer} }

func Choice(options ...string) ArgKind {
	return ArgKind{tag: argChoice, choices: append([]string(nil), options...)}
}

func Optional(inner ArgKind) ArgKind {
	return ArgKind{tag: argOptional, inner: &inner}
}

func OptionalWithDefault(inner ArgKind, literal string) ArgKind {
	return ArgKind{tag: argOptionalWithDefault, inner: &inner, literal: literal}
}

// OptionalWithDefaultDynamic stores fn itself in the returned ArgKind; no
// separate function table is kept. When the inner kind reports a missing
// argument, the parser calls fn with the invocation's context and uses the
// returned string as the value.
func OptionalWithDefaultDynamic(inner ArgKind, fn func(ctx context.Context) string) ArgKind {
	return ArgKind{tag: argOptionalWithDefaultDynamic, inner: &inner, dynamic: fn}
}

func (k ArgKind) IsOptional() bool {
	return k.tag == argOptional || k.tag == argOptionalWithDefault || k.tag == argOptionalWithDefaultDynamic
}

// ArgTag is the exported mirror of argTag the parser switches on; ArgKind
// keeps its constructor fields unexported so only the functions above can
// build a valid value.
type ArgTag int

const (
	ArgString ArgTag = iota
	ArgStringRemaining
	ArgInteger
	ArgDecimal
	ArgChoice
	ArgImageURL
	ArgImageBuffer
	ArgOptional
	ArgOptionalWithDefault
	ArgOptionalWithDefaultDynamic
)

// Tag reports which variant k is.
func (k ArgKind) Tag() ArgTag { return ArgTag(k.tag) }

// Inner returns the wrapped kind for Optional/OptionalWithDefault(Dynamic)
// variants; nil for every other variant.
func (k ArgKind) Inner() *ArgKind { return k.inner }

// Choices returns the accepted literal set for a Choice variant.
func (k ArgKind) Choices() []string { return k.choices }

// Literal returns the default literal for an OptionalWithDefault variant.
func (k ArgKind) Literal() string { return k.literal }

// Dynamic returns the default-producing function for an
// OptionalWithDefaultDynamic variant.
func (k ArgKind) Dynamic() func(ctx context.Context) string { return k.dynamic }

// FlagKind is the tagged variant of named-flag shapes.
type FlagKind struct {
	tag     flagTag
	choices []string
}

type flagTag int

const (
	flagUnit flagTag = iota
	flagText
	flagInteger
	flagDecimal
	flagBoolean
	flagChoice
	flagList
)

func FlagUnit() FlagKind    { return FlagKind{tag: flagUnit} }
func FlagText() FlagKind    { return FlagKind{tag: flagText} }
func FlagInteger() FlagKind { return FlagKind{tag: flagInteger} }
func FlagDecimal() FlagKind { return FlagKind{tag: flagDecimal} }
func FlagBoolean() FlagKind { return FlagKind{tag: flagBoolean} }
func FlagList() FlagKind    { return FlagKind{tag: flagList} }

func FlagChoice(options ...string) FlagKind {
	return FlagKind{tag: flagChoice, choices: append([]string(nil), options...)}
}

// FlagTag is the exported mirror of flagTag the parser switches on.
type FlagTag int

const (
	FlagTagUnit FlagTag = iota
	FlagTagText
	FlagTagInteger
	FlagTagDecimal
	FlagTagBoolean
	FlagTagChoice
	FlagTagList
)

// Tag reports which variant k is.
func (k FlagKind) Tag() FlagTag { return FlagTag(k.tag) }

// Choices returns the accepted literal set for a Choice variant.
func (k FlagKind) Choices() []string { return k.choices }

// PositionalArg is one declared positional slot.
type PositionalArg struct {
	Name string
	Kind ArgKind
}

// FlagArg is one declared named flag.
type FlagArg struct {
	Name string
	Kind FlagKind
}

// Handler is the function a descriptor dispatches to once args are parsed
// and all gates pass. It receives the already-parsed command and returns an
// error classified per internal/shared's taxonomy; a nil error means the
// handler succeeded.
type Handler func(ctx context.Context, invocation *Invocation) error

// Descriptor is immutable, process-lifetime command metadata.
type Descriptor struct {
	Name        string
	Aliases     []string
	Positional  []PositionalArg
	Flags       []FlagArg
	Cooldown    float64 // seconds
	Access      AccessLevel
	NSFW        bool
	Disabled    bool
	Category    string
	Usage       string
	Description string
	Handler     Handler
}

// CanonicalUsage renders the usage line referenced by parse-failure replies
// (spec.md §4.G step 4).
func (d *Descriptor) CanonicalUsage() string {
	if d.Usage != "" {
		return d.Usage
	}
	return d.Name
}
