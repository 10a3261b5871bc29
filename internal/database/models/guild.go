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

// GuildModel handles database operations for the guild and member registry.
type GuildModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewGuild creates a new guild model instance.
func NewGuild(db *bun.DB, logger *zap.Logger) *GuildModel {
	return &GuildModel{
		db:     db,
		logger: logger.Named("db_guild"),
	}
}

// EnsureGuild lazily registers a guild on first contact.
func (m *GuildModel) EnsureGuild(ctx context.Context, guildID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(&types.Guild{ID: guildID}).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to register guild: %w", err)
		}

		return nil
	})
}

// EnsureMember lazily registers a user within a guild. The guild row is
// created first so the member's foreign key always resolves.
func (m *GuildModel) EnsureMember(ctx context.Context, guildID, userID snowflake.ID) error {
	if err := m.EnsureGuild(ctx, guildID); err != nil {
		return err
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(&types.GuildMember{GuildID: guildID, UserID: userID}).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to register guild member: %w", err)
		}

		return nil
	})
}

// DeleteMember removes a user's registry row for a guild.
func (m *GuildModel) DeleteMember(ctx context.Context, guildID, userID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.GuildMember)(nil)).
			Where("guild_id = ?", guildID).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete guild member: %w", err)
		}

		return nil
	})
}

// DeleteGuild removes a guild and, through cascading constraints, all of its
// configuration and ledger data.
func (m *GuildModel) DeleteGuild(ctx context.Context, guildID snowflake.ID) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.Guild)(nil)).
			Where("id = ?", guildID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete guild: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Deleted guild data", zap.Uint64("guildID", uint64(guildID)))

	return nil
}

// ModuleStatus returns the module flags of a guild. Guilds without a row
// have every module disabled.
func (m *GuildModel) ModuleStatus(ctx context.Context, guildID snowflake.ID) (types.ModuleStatus, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (types.ModuleStatus, error) {
		var row types.GuildModules

		err := m.db.NewSelect().
			Model(&row).
			Where("guild_id = ?", guildID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.ModuleStatus{}, nil
			}

			return types.ModuleStatus{}, fmt.Errorf("failed to get module status: %w", err)
		}

		return types.ModuleStatusFromBits(row.Status), nil
	})
}

// SetModuleStatus stores the module flags of a guild.
func (m *GuildModel) SetModuleStatus(
	ctx context.Context, guildID snowflake.ID, status types.ModuleStatus,
) error {
	if err := m.EnsureGuild(ctx, guildID); err != nil {
		return err
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		row := &types.GuildModules{GuildID: guildID, Status: status.Bits()}

		_, err := m.db.NewInsert().
			Model(row).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("status = EXCLUDED.status").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set module status: %w", err)
		}

		return nil
	})
}
