package engine

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/tallybot/tally/internal/database/types"
)

// Ledger is the score edge store the engine mutates. Implemented by
// models.LedgerModel; the engine relies on the store's key constraints and
// conditional writes for atomicity, never on its own locks.
type Ledger interface {
	RecordVote(ctx context.Context, edge *types.ScoreEdge) error
	RetractVote(
		ctx context.Context, guildID, voterID, channelID, messageID snowflake.ID, emoji types.EmojiKey,
	) (snowflake.ID, bool, error)
	RetractAllForMessage(ctx context.Context, guildID, channelID, messageID snowflake.ID) error
	ScoreOf(ctx context.Context, guildID, userID snowflake.ID) (int64, error)
	ScoreBreakdown(ctx context.Context, guildID, userID snowflake.ID) (score, upvotes, downvotes int64, err error)
	MessageScore(ctx context.Context, guildID, channelID, messageID snowflake.ID) (int64, error)
	ReassignVotesTo(ctx context.Context, guildID, fromUser, toUser snowflake.ID, limit *int64) (int64, error)
	ReceivedUpvotes(ctx context.Context, guildID, userID snowflake.ID) (int64, error)
	Rank(ctx context.Context, guildID, userID snowflake.ID) (int64, bool, error)
	DeleteReceived(ctx context.Context, guildID, userID snowflake.ID) (int64, error)
}

// GuildConfig reads per-guild scoring configuration. Implemented by
// models.ConfigModel.
type GuildConfig interface {
	ClassifyEmoji(ctx context.Context, guildID snowflake.ID, emoji types.EmojiKey) (upvote, ok bool, err error)
	RoleThresholds(ctx context.Context, guildID snowflake.ID) ([]types.ScoreRole, error)
	RoleCooldown(ctx context.Context, guildID, roleID snowflake.ID) (int64, bool, error)
	RandomDropChannel(ctx context.Context, guildID snowflake.ID) (snowflake.ID, bool, error)
	AutoModThresholds(ctx context.Context, guildID snowflake.ID) (pinScore, deleteScore *int64, err error)
}

// Bindings reads and mutates reaction-role bindings and their slot counts.
// Implemented by models.BindingModel.
type Bindings interface {
	For(
		ctx context.Context, guildID, channelID, messageID snowflake.ID, emoji types.EmojiKey,
	) ([]types.ReactionRoleBinding, error)
	ConsumeSlot(ctx context.Context, binding *types.ReactionRoleBinding) (bool, error)
	ReleaseSlot(ctx context.Context, binding *types.ReactionRoleBinding) error
}

// Registry is the per-guild user registry and module flag store.
// Implemented by models.GuildModel.
type Registry interface {
	EnsureMember(ctx context.Context, guildID, userID snowflake.ID) error
	DeleteMember(ctx context.Context, guildID, userID snowflake.ID) error
	ModuleStatus(ctx context.Context, guildID snowflake.ID) (types.ModuleStatus, error)
}

// Membership is the external role-membership interface of the chat platform.
type Membership interface {
	GrantRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error
	RevokeRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error
	CurrentRoles(ctx context.Context, guildID, userID snowflake.ID) ([]snowflake.ID, error)
}

// Messaging is the external message interface of the chat platform.
type Messaging interface {
	Pin(ctx context.Context, channelID, messageID snowflake.ID) error
	Delete(ctx context.Context, channelID, messageID snowflake.ID) error
	IsPinned(ctx context.Context, channelID, messageID snowflake.ID) (bool, error)
	RemoveReaction(ctx context.Context, channelID, messageID snowflake.ID, emoji string, userID snowflake.ID) error
	PostPrompt(ctx context.Context, channelID snowflake.ID, title, description, customID string) (snowflake.ID, error)
	EditPrompt(ctx context.Context, channelID, messageID snowflake.ID, title, description string) error
}

// ReactionEvent is a normalized inbound reaction event. The events layer
// resolves the message author before handing the event to the engine.
type ReactionEvent struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	MessageID snowflake.ID

	// Acting user
	UserID    snowflake.ID
	UserRoles []snowflake.ID
	UserIsBot bool

	// Message author, the potential vote recipient
	AuthorID    snowflake.ID
	AuthorIsBot bool

	// Emoji in both the store key form and the raw form the platform
	// expects when retracting the reaction
	Emoji    types.EmojiKey
	RawEmoji string
}
