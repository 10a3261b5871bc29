package types

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// Guild represents a guild known to the bot.
type Guild struct {
	bun.BaseModel `bun:"table:guilds"`

	ID snowflake.ID `bun:"id,pk"`
}

// GuildMember represents a user registered within a guild.
// Rows cascade away when the guild is removed.
type GuildMember struct {
	bun.BaseModel `bun:"table:guild_members"`

	GuildID snowflake.ID `bun:"guild_id,pk"`
	UserID  snowflake.ID `bun:"user_id,pk"`
}

// GuildModules stores the compact module flag set for a guild.
// Use ModuleStatusFromBits to decode it at the application boundary.
type GuildModules struct {
	bun.BaseModel `bun:"table:guild_modules"`

	GuildID snowflake.ID `bun:"guild_id,pk"`
	Status  uint8        `bun:"status,notnull"`
}

// ModuleStatus describes which functional modules are enabled for a guild.
type ModuleStatus struct {
	Owner         bool
	Utility       bool
	Score         bool
	ReactionRoles bool
	Analysis      bool
}

// Bit positions within GuildModules.Status.
const (
	moduleBitOwner = 1 << iota
	moduleBitUtility
	moduleBitScore
	moduleBitReactionRoles
	moduleBitAnalysis
)

// ModuleStatusFromBits decodes the stored flag byte into named booleans.
func ModuleStatusFromBits(bits uint8) ModuleStatus {
	return ModuleStatus{
		Owner:         bits&moduleBitOwner != 0,
		Utility:       bits&moduleBitUtility != 0,
		Score:         bits&moduleBitScore != 0,
		ReactionRoles: bits&moduleBitReactionRoles != 0,
		Analysis:      bits&moduleBitAnalysis != 0,
	}
}

// Bits encodes the named booleans back into the stored flag byte.
func (s ModuleStatus) Bits() uint8 {
	var bits uint8

	if s.Owner {
		bits |= moduleBitOwner
	}

	if s.Utility {
		bits |= moduleBitUtility
	}

	if s.Score {
		bits |= moduleBitScore
	}

	if s.ReactionRoles {
		bits |= moduleBitReactionRoles
	}

	if s.Analysis {
		bits |= moduleBitAnalysis
	}

	return bits
}
