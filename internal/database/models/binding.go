package models

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/tallybot/tally/internal/database/dbretry"
	"github.com/tallybot/tally/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// BindingModel handles database operations for reaction-role bindings.
//
// Slot accounting happens as conditional UPDATEs: the store decides whether
// a slot was actually consumed, so concurrent reactions can never push the
// count below zero.
type BindingModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewBinding creates a new binding model instance.
func NewBinding(db *bun.DB, logger *zap.Logger) *BindingModel {
	return &BindingModel{
		db:     db,
		logger: logger.Named("db_binding"),
	}
}

// For returns every binding registered for a reaction on a message.
func (m *BindingModel) For(
	ctx context.Context, guildID, channelID, messageID snowflake.ID, emoji types.EmojiKey,
) ([]types.ReactionRoleBinding, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]types.ReactionRoleBinding, error) {
		var rows []types.ReactionRoleBinding

		err := m.db.NewSelect().
			Model(&rows).
			Where("guild_id = ?", guildID).
			Where("channel_id = ?", channelID).
			Where("message_id = ?", messageID).
			Where("emoji = ?", emoji).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get reaction role bindings: %w", err)
		}

		return rows, nil
	})
}

// ConsumeSlot attempts to take one slot from a finite binding. It reports
// whether the grant may proceed: unlimited bindings always allow it, finite
// bindings only while a slot remains.
func (m *BindingModel) ConsumeSlot(
	ctx context.Context, binding *types.ReactionRoleBinding,
) (bool, error) {
	if binding.Slots == nil {
		return true, nil
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		res, err := m.db.NewUpdate().
			Model((*types.ReactionRoleBinding)(nil)).
			Set("slots = slots - 1").
			Where("guild_id = ?", binding.GuildID).
			Where("channel_id = ?", binding.ChannelID).
			Where("message_id = ?", binding.MessageID).
			Where("emoji = ?", binding.Emoji).
			Where("role_id = ?", binding.RoleID).
			Where("slots > 0").
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to consume binding slot: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to check consumed slot: %w", err)
		}

		return affected > 0, nil
	})
}

// ReleaseSlot returns one slot to a finite binding after a revoke.
func (m *BindingModel) ReleaseSlot(
	ctx context.Context, binding *types.ReactionRoleBinding,
) error {
	if binding.Slots == nil {
		return nil
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model((*types.ReactionRoleBinding)(nil)).
			Set("slots = slots + 1").
			Where("guild_id = ?", binding.GuildID).
			Where("channel_id = ?", binding.ChannelID).
			Where("message_id = ?", binding.MessageID).
			Where("emoji = ?", binding.Emoji).
			Where("role_id = ?", binding.RoleID).
			Where("slots IS NOT NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to release binding slot: %w", err)
		}

		return nil
	})
}

// Create registers a new reaction-role binding.
func (m *BindingModel) Create(ctx context.Context, binding *types.ReactionRoleBinding) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(binding).
			On("CONFLICT (guild_id, channel_id, message_id, emoji, role_id) DO UPDATE").
			Set("slots = EXCLUDED.slots").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create reaction role binding: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Created reaction role binding",
		zap.Uint64("guildID", uint64(binding.GuildID)),
		zap.Uint64("messageID", uint64(binding.MessageID)),
		zap.Uint64("roleID", uint64(binding.RoleID)))

	return nil
}

// Delete removes a reaction-role binding.
func (m *BindingModel) Delete(
	ctx context.Context, guildID, channelID, messageID snowflake.ID, emoji types.EmojiKey, roleID snowflake.ID,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.ReactionRoleBinding)(nil)).
			Where("guild_id = ?", guildID).
			Where("channel_id = ?", channelID).
			Where("message_id = ?", messageID).
			Where("emoji = ?", emoji).
			Where("role_id = ?", roleID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete reaction role binding: %w", err)
		}

		return nil
	})
}
