// Package commands builds the illustrative descriptor set cmd/assystbot
// registers against the command table. spec.md §1 places "per-effect image
// commands (each is a thin adapter that builds a typed job and invokes the
// worker RPC)" out of scope for the core — the core only needs the
// data-driven registry and a generic Handler slot. This package supplies a
// representative handful of those thin adapters across the categories
// spec.md names, not an exhaustive command catalog.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jacherr/assystbot/internal/command"
	"github.com/jacherr/assystbot/internal/healthcheck"
	"github.com/jacherr/assystbot/internal/metrics"
	"github.com/jacherr/assystbot/internal/platform"
	"github.com/jacherr/assystbot/internal/store"
	"github.com/jacherr/assystbot/internal/workerrpc"
)

// workerClient is the narrow slice of workerrpc.Client the handlers in this
// package call, kept as an interface so tests don't need a live socket.
type workerClient interface {
	Call(ctx context.Context, tier uint8, job workerrpc.Job) ([]byte, error)
	Stats(ctx context.Context) (workerrpc.StatsResult, error)
}

// healthResults is the narrow slice of healthcheck.Aggregator the health
// descriptor reads.
type healthResults interface {
	Results() ([]healthcheck.Status, time.Time)
}

// Deps bundles every dependency a handler in this package might need. Not
// every descriptor uses every field.
type Deps struct {
	Store       store.Store
	Platform    platform.Client
	Worker      workerClient
	Healthcheck healthResults
	Metrics     *metrics.Registry
	Registry    *command.Registry
	StartedAt   time.Time
}

// Build returns the descriptor set registered at startup.
func Build(d *Deps) []*command.Descriptor {
	return []*command.Descriptor{
		pingDescriptor(d),
		statsDescriptor(d),
		healthDescriptor(d),
		flipDescriptor(d),
		tagGetDescriptor(d),
	}
}

func reply(ctx context.Context, d *Deps, channelID, content string) error {
	_, err := d.Platform.CreateMessage(ctx, channelID, content)
	return err
}

func pingDescriptor(d *Deps) *command.Descriptor {
	return &command.Descriptor{
		Name:        "ping",
		Category:    "meta",
		Description: "reports process uptime",
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			uptime := time.Since(d.StartedAt).Round(time.Second)
			return reply(ctx, d, inv.Message.ChannelID, fmt.Sprintf("pong, up %s", uptime))
		},
	}
}

func statsDescriptor(d *Deps) *command.Descriptor {
	return &command.Descriptor{
		Name:        "stats",
		Category:    "meta",
		Description: "worker and registry statistics",
		Cooldown:    3,
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			s, err := d.Worker.Stats(ctx)
			if err != nil {
				return fmt.Errorf("fetch worker stats: %w", err)
			}
			msg := fmt.Sprintf(
				"commands: %d\ncurrent requests: %d\ntotal workers: %d\nworker uptime: %dms",
				d.Registry.CountVisible(), s.CurrentRequests, s.TotalWorkers, s.UptimeMS,
			)
			return reply(ctx, d, inv.Message.ChannelID, msg)
		},
	}
}

func healthDescriptor(d *Deps) *command.Descriptor {
	return &command.Descriptor{
		Name:        "health",
		Aliases:     []string{"status"},
		Category:    "meta",
		Access:      command.Private,
		Description: "last dependency health scan",
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			results, scannedAt := d.Healthcheck.Results()
			if len(results) == 0 {
				return reply(ctx, d, inv.Message.ChannelID, "no health scan has run yet")
			}
			msg := fmt.Sprintf("scan %s:\n", humanize.Time(scannedAt))
			for _, r := range results {
				state := "online"
				if !r.Online {
					state = "offline"
				}
				msg += fmt.Sprintf("%s: %s (%s)\n", r.Service, state, r.Latency.Round(time.Millisecond))
			}
			return reply(ctx, d, inv.Message.ChannelID, msg)
		},
	}
}

// flipDescriptor is the thin-adapter exemplar spec.md §1 describes: build a
// typed job, invoke the worker RPC, reply with the result.
func flipDescriptor(d *Deps) *command.Descriptor {
	return &command.Descriptor{
		Name:       "flip",
		Category:   "image",
		Cooldown:   2,
		Usage:      "flip <image>",
		Positional: []command.PositionalArg{{Name: "image", Kind: command.ImageBuffer()}},
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			image := []byte(inv.Parsed.Positional[0].Strs[0])
			result, err := d.Worker.Call(ctx, 0, workerrpc.Flip{Image: image})
			if err != nil {
				return fmt.Errorf("flip: %w", err)
			}
			return reply(ctx, d, inv.Message.ChannelID, fmt.Sprintf("flipped (%s)", humanize.Bytes(uint64(len(result)))))
		},
	}
}

func tagGetDescriptor(d *Deps) *command.Descriptor {
	return &command.Descriptor{
		Name:       "tag",
		Category:   "guild",
		Usage:      "tag <name>",
		Positional: []command.PositionalArg{{Name: "name", Kind: command.String()}},
		Handler: func(ctx context.Context, inv *command.Invocation) error {
			name := inv.Parsed.Positional[0].Str
			tag, err := d.Store.GetTag(ctx, inv.Message.GuildID, name)
			if err != nil {
				return fmt.Errorf("look up tag %q: %w", name, err)
			}
			if tag == nil {
				return reply(ctx, d, inv.Message.ChannelID, fmt.Sprintf("no tag named %q", name))
			}
			return reply(ctx, d, inv.Message.ChannelID, tag.Content)
		},
	}
}
