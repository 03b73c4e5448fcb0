package cacherpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"github.com/jacherr/assystbot/internal/rpc"
)

// Client is the cache RPC client described in spec.md §4.F: identical shape
// to the worker client, over a process-local socket at a different path.
type Client struct {
	inner *rpc.Client[Job]
}

// New constructs a cache client dialing the given unix socket path.
func New(socketPath string, logger *slog.Logger) *Client {
	dial := func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", socketPath)
	}
	return &Client{inner: rpc.NewClient[Job]("cache", dial, logger)}
}

func (c *Client) Run(ctx context.Context) { c.inner.Run(ctx) }
func (c *Client) Connected() bool         { return c.inner.Connected() }

func (c *Client) call(ctx context.Context, job Job) ([]byte, error) {
	resp, err := c.inner.Call(ctx, 0, job)
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// SendReady bootstraps the cache with the guild ids known at Ready time.
func (c *Client) SendReady(ctx context.Context, guildIDs []string) error {
	_, err := c.call(ctx, SendReady{GuildIDs: guildIDs})
	return err
}

// SendGuildCreate reports a guild-add transition, returning whether the
// gateway bridge should log it.
func (c *Client) SendGuildCreate(ctx context.Context, guildID string) (bool, error) {
	payload, err := c.call(ctx, SendGuildCreate{GuildID: guildID})
	if err != nil {
		return false, err
	}
	var out GuildTransitionResult
	if err := json.Unmarshal(payload, &out); err != nil {
		return false, fmt.Errorf("decode guild-create result: %w", err)
	}
	return out.ShouldLog, nil
}

// SendGuildDelete reports a guild-remove transition.
func (c *Client) SendGuildDelete(ctx context.Context, guildID string) (bool, error) {
	payload, err := c.call(ctx, SendGuildDelete{GuildID: guildID})
	if err != nil {
		return false, err
	}
	var out GuildTransitionResult
	if err := json.Unmarshal(payload, &out); err != nil {
		return false, fmt.Errorf("decode guild-delete result: %w", err)
	}
	return out.ShouldLog, nil
}

// GetTopGuilds returns the top-member-count guilds known to the cache.
func (c *Client) GetTopGuilds(ctx context.Context, limit int) ([]TopGuild, error) {
	payload, err := c.call(ctx, GetTopGuilds{Limit: limit})
	if err != nil {
		return nil, err
	}
	var out []TopGuild
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode top-guilds result: %w", err)
	}
	return out, nil
}

// GetTotalGuilds returns the total guild count known to the cache.
func (c *Client) GetTotalGuilds(ctx context.Context) (int, error) {
	payload, err := c.call(ctx, GetTotalGuilds{})
	if err != nil {
		return 0, err
	}
	var out int
	if err := json.Unmarshal(payload, &out); err != nil {
		return 0, fmt.Errorf("decode total-guilds result: %w", err)
	}
	return out, nil
}
