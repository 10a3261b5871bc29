package migrations

import (
	"context"
	"fmt"

	"github.com/tallybot/tally/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		// Create tables
		models := []any{
			(*types.Guild)(nil),
			(*types.GuildMember)(nil),
			(*types.GuildModules)(nil),
			(*types.ScoreEmoji)(nil),
			(*types.ScoreEdge)(nil),
			(*types.ScoreRole)(nil),
			(*types.ScoreCooldown)(nil),
			(*types.ScoreDrop)(nil),
			(*types.ScoreAutoMod)(nil),
			(*types.ReactionRoleBinding)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		// Guild-scoped tables cascade away with their guild
		constraints := []struct {
			table      string
			constraint string
			definition string
		}{
			{
				"guild_members", "fk_guild_members_guild",
				"FOREIGN KEY (guild_id) REFERENCES guilds (id) ON DELETE CASCADE",
			},
			{
				"guild_modules", "fk_guild_modules_guild",
				"FOREIGN KEY (guild_id) REFERENCES guilds (id) ON DELETE CASCADE",
			},
			{
				"score_emojis", "fk_score_emojis_guild",
				"FOREIGN KEY (guild_id) REFERENCES guilds (id) ON DELETE CASCADE",
			},
			{
				"score_edges", "fk_score_edges_emoji",
				"FOREIGN KEY (guild_id, emoji) REFERENCES score_emojis (guild_id, emoji) ON DELETE CASCADE",
			},
			{
				"score_roles", "fk_score_roles_guild",
				"FOREIGN KEY (guild_id) REFERENCES guilds (id) ON DELETE CASCADE",
			},
			{
				"score_cooldowns", "fk_score_cooldowns_guild",
				"FOREIGN KEY (guild_id) REFERENCES guilds (id) ON DELETE CASCADE",
			},
			{
				"score_drops", "fk_score_drops_guild",
				"FOREIGN KEY (guild_id) REFERENCES guilds (id) ON DELETE CASCADE",
			},
			{
				"score_automod", "fk_score_automod_guild",
				"FOREIGN KEY (guild_id) REFERENCES guilds (id) ON DELETE CASCADE",
			},
			{
				"reaction_role_bindings", "fk_reaction_role_bindings_guild",
				"FOREIGN KEY (guild_id) REFERENCES guilds (id) ON DELETE CASCADE",
			},
		}

		for _, c := range constraints {
			_, err := db.NewRaw(fmt.Sprintf(`
				ALTER TABLE %s
				ADD CONSTRAINT %s %s
			`, c.table, c.constraint, c.definition)).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to add constraint %s: %w", c.constraint, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		tables := []string{
			"reaction_role_bindings",
			"score_automod",
			"score_drops",
			"score_cooldowns",
			"score_roles",
			"score_edges",
			"score_emojis",
			"guild_modules",
			"guild_members",
			"guilds",
		}

		for _, table := range tables {
			_, err := db.NewDropTable().
				Table(table).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %s: %w", table, err)
			}
		}

		return nil
	})
}
