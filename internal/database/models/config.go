package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/tallybot/tally/internal/database/dbretry"
	"github.com/tallybot/tally/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ConfigModel handles database operations for per-guild scoring
// configuration: emoji classification, level-up thresholds, cooldown
// overrides, drop channels and auto-moderation thresholds.
type ConfigModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewConfig creates a new config model instance.
func NewConfig(db *bun.DB, logger *zap.Logger) *ConfigModel {
	return &ConfigModel{
		db:     db,
		logger: logger.Named("db_config"),
	}
}

// ClassifyEmoji resolves an emoji to its vote direction. The second return
// value is false when the emoji does not participate in scoring.
func (m *ConfigModel) ClassifyEmoji(
	ctx context.Context, guildID snowflake.ID, emoji types.EmojiKey,
) (upvote, ok bool, err error) {
	return dbretryPair(ctx, func(ctx context.Context) (bool, bool, error) {
		var row types.ScoreEmoji

		err := m.db.NewSelect().
			Model(&row).
			Where("guild_id = ?", guildID).
			Where("emoji = ?", emoji).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, false, nil
			}

			return false, false, fmt.Errorf("failed to classify emoji: %w", err)
		}

		return row.Upvote, true, nil
	})
}

// SetScoreEmoji registers or reclassifies a scoring emoji.
func (m *ConfigModel) SetScoreEmoji(
	ctx context.Context, guildID snowflake.ID, emoji types.EmojiKey, upvote bool,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		row := &types.ScoreEmoji{GuildID: guildID, Emoji: emoji, Upvote: upvote}

		_, err := m.db.NewInsert().
			Model(row).
			On("CONFLICT (guild_id, emoji) DO UPDATE").
			Set("upvote = EXCLUDED.upvote").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set score emoji: %w", err)
		}

		return nil
	})
}

// RemoveScoreEmoji deletes an emoji classification. Cascading constraints
// also remove the edges recorded under it.
func (m *ConfigModel) RemoveScoreEmoji(
	ctx context.Context, guildID snowflake.ID, emoji types.EmojiKey,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.ScoreEmoji)(nil)).
			Where("guild_id = ?", guildID).
			Where("emoji = ?", emoji).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove score emoji: %w", err)
		}

		return nil
	})
}

// RoleThresholds returns the guild's level-up table ordered by threshold.
func (m *ConfigModel) RoleThresholds(
	ctx context.Context, guildID snowflake.ID,
) ([]types.ScoreRole, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]types.ScoreRole, error) {
		var rows []types.ScoreRole

		err := m.db.NewSelect().
			Model(&rows).
			Where("guild_id = ?", guildID).
			Order("threshold ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get role thresholds: %w", err)
		}

		return rows, nil
	})
}

// SetRoleThreshold inserts or updates a level-up threshold for a role.
func (m *ConfigModel) SetRoleThreshold(
	ctx context.Context, guildID, roleID snowflake.ID, threshold int64,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		row := &types.ScoreRole{GuildID: guildID, RoleID: roleID, Threshold: threshold}

		_, err := m.db.NewInsert().
			Model(row).
			On("CONFLICT (guild_id, role_id) DO UPDATE").
			Set("threshold = EXCLUDED.threshold").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set role threshold: %w", err)
		}

		return nil
	})
}

// RemoveRoleThreshold removes a role from the level-up table.
func (m *ConfigModel) RemoveRoleThreshold(ctx context.Context, guildID, roleID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.ScoreRole)(nil)).
			Where("guild_id = ?", guildID).
			Where("role_id = ?", roleID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove role threshold: %w", err)
		}

		return nil
	})
}

// RoleCooldown looks up the cooldown override of a single role in seconds.
func (m *ConfigModel) RoleCooldown(
	ctx context.Context, guildID, roleID snowflake.ID,
) (int64, bool, error) {
	return dbretryPair(ctx, func(ctx context.Context) (int64, bool, error) {
		var row types.ScoreCooldown

		err := m.db.NewSelect().
			Model(&row).
			Where("guild_id = ?", guildID).
			Where("role_id = ?", roleID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, false, nil
			}

			return 0, false, fmt.Errorf("failed to get role cooldown: %w", err)
		}

		return row.Seconds, true, nil
	})
}

// SetRoleCooldown stores a cooldown override for a role.
func (m *ConfigModel) SetRoleCooldown(
	ctx context.Context, guildID, roleID snowflake.ID, seconds int64,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		row := &types.ScoreCooldown{GuildID: guildID, RoleID: roleID, Seconds: seconds}

		_, err := m.db.NewInsert().
			Model(row).
			On("CONFLICT (guild_id, role_id) DO UPDATE").
			Set("seconds = EXCLUDED.seconds").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set role cooldown: %w", err)
		}

		return nil
	})
}

// RemoveRoleCooldown deletes a role's cooldown override.
func (m *ConfigModel) RemoveRoleCooldown(ctx context.Context, guildID, roleID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.ScoreCooldown)(nil)).
			Where("guild_id = ?", guildID).
			Where("role_id = ?", roleID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove role cooldown: %w", err)
		}

		return nil
	})
}

// RandomDropChannel picks one of the guild's configured drop channels
// uniformly at random. The second return value is false when none are
// configured.
func (m *ConfigModel) RandomDropChannel(
	ctx context.Context, guildID snowflake.ID,
) (snowflake.ID, bool, error) {
	return dbretryPair(ctx, func(ctx context.Context) (snowflake.ID, bool, error) {
		var row types.ScoreDrop

		err := m.db.NewSelect().
			Model(&row).
			Where("guild_id = ?", guildID).
			OrderExpr("random()").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, false, nil
			}

			return 0, false, fmt.Errorf("failed to pick drop channel: %w", err)
		}

		return row.ChannelID, true, nil
	})
}

// AddDropChannel marks a channel as eligible for departure claim prompts.
func (m *ConfigModel) AddDropChannel(ctx context.Context, guildID, channelID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		row := &types.ScoreDrop{GuildID: guildID, ChannelID: channelID}

		_, err := m.db.NewInsert().
			Model(row).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add drop channel: %w", err)
		}

		return nil
	})
}

// RemoveDropChannel removes a channel from the drop channel list.
func (m *ConfigModel) RemoveDropChannel(ctx context.Context, guildID, channelID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.ScoreDrop)(nil)).
			Where("guild_id = ?", guildID).
			Where("channel_id = ?", channelID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove drop channel: %w", err)
		}

		return nil
	})
}

// AutoModThresholds returns the guild's optional pin and delete scores.
// Either pointer is nil when the action is not configured.
func (m *ConfigModel) AutoModThresholds(
	ctx context.Context, guildID snowflake.ID,
) (pinScore, deleteScore *int64, err error) {
	row, err := dbretry.Operation(ctx, func(ctx context.Context) (types.ScoreAutoMod, error) {
		var row types.ScoreAutoMod

		err := m.db.NewSelect().
			Model(&row).
			Where("guild_id = ?", guildID).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return row, fmt.Errorf("failed to get automod thresholds: %w", err)
		}

		return row, nil
	})
	if err != nil {
		return nil, nil, err
	}

	return row.PinScore, row.DeleteScore, nil
}

// SetAutoModThresholds stores the guild's pin and delete scores. Nil clears
// the respective action.
func (m *ConfigModel) SetAutoModThresholds(
	ctx context.Context, guildID snowflake.ID, pinScore, deleteScore *int64,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		row := &types.ScoreAutoMod{GuildID: guildID, PinScore: pinScore, DeleteScore: deleteScore}

		_, err := m.db.NewInsert().
			Model(row).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("pin_score = EXCLUDED.pin_score").
			Set("delete_score = EXCLUDED.delete_score").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set automod thresholds: %w", err)
		}

		return nil
	})
}
