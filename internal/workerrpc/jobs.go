// Package workerrpc instantiates the generic rpc.Client with the worker's
// job schema (spec.md §4.E, §6): image transforms, composite operations,
// stats/info introspection, and a legacy escape hatch.
package workerrpc

import "encoding/gob"

// Job is the tagged-variant interface every worker job implements. The tag
// lives in the concrete type, matched by the worker via gob's registered
// type name — idiomatic Go's answer to a wire-level discriminated union.
type Job interface {
	jobName() string
}

type Flip struct{ Image []byte }
type Flop struct{ Image []byte }
type Blur struct {
	Image []byte
	Power int
}
type Caption struct {
	Image []byte
	Text  string
}
type Resize struct {
	Image         []byte
	Width, Height int
}
type TextRender struct {
	Text string
}
type ConstructGIF struct {
	Frames  [][]byte
	DelayMS int
}
type Makesweet struct {
	Template string
	Images   [][]byte
}
type Stats struct{}
type ImageInfo struct{ Image []byte }

// StickerConvert renders a Lottie-format sticker animation to a GIF. The
// worker owns the Lottie rasterizer; the bot only ever sees bytes in and
// bytes out, same as every other composite job.
type StickerConvert struct {
	Lottie []byte
}

// Legacy forwards an opaque operation name and raw payload to the second,
// legacy worker (spec.md §6's "opaque escape hatch").
type Legacy struct {
	OpName string
	Raw    []byte
}

func (Flip) jobName() string           { return "flip" }
func (Flop) jobName() string           { return "flop" }
func (Blur) jobName() string           { return "blur" }
func (Caption) jobName() string        { return "caption" }
func (Resize) jobName() string         { return "resize" }
func (TextRender) jobName() string     { return "text_render" }
func (ConstructGIF) jobName() string   { return "construct_gif" }
func (Makesweet) jobName() string      { return "makesweet" }
func (Stats) jobName() string          { return "stats" }
func (ImageInfo) jobName() string      { return "image_info" }
func (Legacy) jobName() string         { return "legacy" }
func (StickerConvert) jobName() string { return "sticker_convert" }

func init() {
	gob.Register(Flip{})
	gob.Register(Flop{})
	gob.Register(Blur{})
	gob.Register(Caption{})
	gob.Register(Resize{})
	gob.Register(TextRender{})
	gob.Register(ConstructGIF{})
	gob.Register(Makesweet{})
	gob.Register(Stats{})
	gob.Register(ImageInfo{})
	gob.Register(Legacy{})
	gob.Register(StickerConvert{})
}

// StatsResult is the decoded shape of a Stats response payload
// (spec.md §6: "current_requests / total_workers / uptime_ms").
type StatsResult struct {
	CurrentRequests int   `json:"current_requests"`
	TotalWorkers    int   `json:"total_workers"`
	UptimeMS        int64 `json:"uptime_ms"`
}

// ImageInfoResult is the decoded shape of an ImageInfo response payload.
type ImageInfoResult struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Frames int    `json:"frames"`
	Bytes  int    `json:"bytes"`
}
