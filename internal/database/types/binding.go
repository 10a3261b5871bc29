package types

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// ReactionRoleBinding ties a reaction emoji on a specific message to a role.
// Slots is nil for unlimited capacity; otherwise it counts the grants still
// available and must never go negative.
type ReactionRoleBinding struct {
	bun.BaseModel `bun:"table:reaction_role_bindings"`

	GuildID   snowflake.ID `bun:"guild_id,pk"`
	ChannelID snowflake.ID `bun:"channel_id,pk"`
	MessageID snowflake.ID `bun:"message_id,pk"`
	Emoji     EmojiKey     `bun:"emoji,pk"`
	RoleID    snowflake.ID `bun:"role_id,pk"`
	Slots     *int32       `bun:"slots"`
}
