package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			// Score lookups by recipient
			`CREATE INDEX IF NOT EXISTS idx_score_edges_recipient
			ON score_edges (guild_id, recipient_id)`,

			// Message aggregate lookups for auto moderation
			`CREATE INDEX IF NOT EXISTS idx_score_edges_message
			ON score_edges (guild_id, channel_id, message_id)`,

			// Reaction removal lookups by voter
			`CREATE INDEX IF NOT EXISTS idx_score_edges_voter
			ON score_edges (guild_id, voter_id, channel_id, message_id)`,

			// Threshold table scans per guild
			`CREATE INDEX IF NOT EXISTS idx_score_roles_guild
			ON score_roles (guild_id, threshold)`,
		}

		for _, index := range indexes {
			_, err := db.NewRaw(index).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"idx_score_edges_recipient",
			"idx_score_edges_message",
			"idx_score_edges_voter",
			"idx_score_roles_guild",
		}

		for _, index := range indexes {
			_, err := db.NewRaw(fmt.Sprintf("DROP INDEX IF EXISTS %s", index)).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop index: %w", err)
			}
		}

		return nil
	})
}
