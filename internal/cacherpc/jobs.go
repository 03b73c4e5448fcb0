// Package cacherpc instantiates the generic rpc.Client with the cache
// service's schema (spec.md §4.F, §6): guild bootstrap/transition reporting
// and guild-count/top-guilds queries.
package cacherpc

import "encoding/gob"

// Job is the tagged-variant interface every cache job implements.
type Job interface {
	jobName() string
}

// SendReady bootstraps the cache service with the set of guilds known at
// gateway Ready time.
type SendReady struct {
	GuildIDs []string
}

// SendGuildCreate reports a guild-add transition. The response indicates
// whether the gateway bridge should log it (spec.md §4.K).
type SendGuildCreate struct {
	GuildID string
}

// SendGuildDelete reports a guild-remove transition.
type SendGuildDelete struct {
	GuildID string
}

type GetTopGuilds struct {
	Limit int
}

type GetTotalGuilds struct{}

func (SendReady) jobName() string       { return "send_ready" }
func (SendGuildCreate) jobName() string { return "send_guild_create" }
func (SendGuildDelete) jobName() string { return "send_guild_delete" }
func (GetTopGuilds) jobName() string    { return "get_top_guilds" }
func (GetTotalGuilds) jobName() string  { return "get_total_guilds" }

func init() {
	gob.Register(SendReady{})
	gob.Register(SendGuildCreate{})
	gob.Register(SendGuildDelete{})
	gob.Register(GetTopGuilds{})
	gob.Register(GetTotalGuilds{})
}

// GuildTransitionResult decodes the JSON payload returned by
// SendGuildCreate/SendGuildDelete: whether the caller should emit a log line.
type GuildTransitionResult struct {
	ShouldLog bool `json:"should_log"`
}

// TopGuild is one row of a GetTopGuilds response.
type TopGuild struct {
	GuildID     string `json:"guild_id"`
	MemberCount int    `json:"member_count"`
}
