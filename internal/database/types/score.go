package types

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// EmojiKey identifies an emoji independent of how the platform delivered it.
// Unicode emoji use the literal character sequence, custom emoji use their
// snowflake ID prefixed with "c:" so the two namespaces cannot collide.
type EmojiKey string

// EmojiKeyFor derives the key for a reaction emoji.
func EmojiKeyFor(emoji discord.PartialEmoji) EmojiKey {
	if emoji.ID != nil {
		return EmojiKey(fmt.Sprintf("c:%s", emoji.ID.String()))
	}

	if emoji.Name != nil {
		return EmojiKey(*emoji.Name)
	}

	return ""
}

// ScoreEdge represents one directed scoring reaction (voter -> recipient).
// The full tuple is the primary key, which makes replayed reaction events
// idempotent at the store.
type ScoreEdge struct {
	bun.BaseModel `bun:"table:score_edges"`

	GuildID    snowflake.ID `bun:"guild_id,pk"`
	VoterID    snowflake.ID `bun:"voter_id,pk"`
	Recipient  snowflake.ID `bun:"recipient_id,pk"`
	ChannelID  snowflake.ID `bun:"channel_id,pk"`
	MessageID  snowflake.ID `bun:"message_id,pk"`
	Emoji      EmojiKey     `bun:"emoji,pk"`
	IsOriginal bool         `bun:"is_original,notnull"`
}

// ScoreEmoji classifies an emoji as an upvote or downvote within a guild.
// Emoji without a row do not participate in scoring.
type ScoreEmoji struct {
	bun.BaseModel `bun:"table:score_emojis"`

	GuildID snowflake.ID `bun:"guild_id,pk"`
	Emoji   EmojiKey     `bun:"emoji,pk"`
	Upvote  bool         `bun:"upvote,notnull"`
}

// ScoreRole maps a score threshold to a role granted at that level.
// Multiple roles may share a threshold.
type ScoreRole struct {
	bun.BaseModel `bun:"table:score_roles"`

	GuildID   snowflake.ID `bun:"guild_id,pk"`
	RoleID    snowflake.ID `bun:"role_id,pk"`
	Threshold int64        `bun:"threshold,notnull"`
}

// ScoreCooldown overrides the guild default scoring cooldown for a role.
type ScoreCooldown struct {
	bun.BaseModel `bun:"table:score_cooldowns"`

	GuildID snowflake.ID `bun:"guild_id,pk"`
	RoleID  snowflake.ID `bun:"role_id,pk"`
	Seconds int64        `bun:"seconds,notnull"`
}

// ScoreDrop marks a channel eligible to receive departure claim prompts.
type ScoreDrop struct {
	bun.BaseModel `bun:"table:score_drops"`

	GuildID   snowflake.ID `bun:"guild_id,pk"`
	ChannelID snowflake.ID `bun:"channel_id,pk"`
}

// ScoreAutoMod holds the optional auto-pin and auto-delete thresholds of a
// guild. Thresholds are signed; the sign selects which score direction
// triggers the action.
type ScoreAutoMod struct {
	bun.BaseModel `bun:"table:score_automod"`

	GuildID     snowflake.ID `bun:"guild_id,pk"`
	PinScore    *int64       `bun:"pin_score"`
	DeleteScore *int64       `bun:"delete_score"`
}
