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

// LedgerModel handles database operations for score edges.
//
// Every mutation relies on the store for atomicity: the full-tuple primary
// key makes replayed inserts idempotent, and reassignment is a single
// conditional UPDATE so no two callers can move the same edge.
type LedgerModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewLedger creates a new ledger model instance.
func NewLedger(db *bun.DB, logger *zap.Logger) *LedgerModel {
	return &LedgerModel{
		db:     db,
		logger: logger.Named("db_ledger"),
	}
}

// RecordVote stores a new score edge. Inserting an edge that already exists
// is a no-op, which makes replayed reaction events safe.
func (m *LedgerModel) RecordVote(ctx context.Context, edge *types.ScoreEdge) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(edge).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record vote: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Recorded vote",
		zap.Uint64("guildID", uint64(edge.GuildID)),
		zap.Uint64("voterID", uint64(edge.VoterID)),
		zap.Uint64("recipientID", uint64(edge.Recipient)))

	return nil
}

// RetractVote removes the edge a voter created on a message and returns the
// user the edge currently credits. The recipient is looked up first because
// gift and claim operations may have moved the edge since it was created.
func (m *LedgerModel) RetractVote(
	ctx context.Context, guildID, voterID, channelID, messageID snowflake.ID, emoji types.EmojiKey,
) (snowflake.ID, bool, error) {
	return dbretryPair(ctx, func(ctx context.Context) (snowflake.ID, bool, error) {
		var recipient snowflake.ID

		err := m.db.NewSelect().
			Model((*types.ScoreEdge)(nil)).
			Column("recipient_id").
			Where("guild_id = ?", guildID).
			Where("voter_id = ?", voterID).
			Where("channel_id = ?", channelID).
			Where("message_id = ?", messageID).
			Where("emoji = ?", emoji).
			Scan(ctx, &recipient)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, false, nil
			}

			return 0, false, fmt.Errorf("failed to find vote to retract: %w", err)
		}

		_, err = m.db.NewDelete().
			Model((*types.ScoreEdge)(nil)).
			Where("guild_id = ?", guildID).
			Where("voter_id = ?", voterID).
			Where("channel_id = ?", channelID).
			Where("message_id = ?", messageID).
			Where("emoji = ?", emoji).
			Exec(ctx)
		if err != nil {
			return 0, false, fmt.Errorf("failed to retract vote: %w", err)
		}

		return recipient, true, nil
	})
}

// RetractAllForMessage removes every edge keyed to a message, typically in
// response to a bulk reaction clear or message deletion.
func (m *LedgerModel) RetractAllForMessage(
	ctx context.Context, guildID, channelID, messageID snowflake.ID,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.ScoreEdge)(nil)).
			Where("guild_id = ?", guildID).
			Where("channel_id = ?", channelID).
			Where("message_id = ?", messageID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to retract votes for message: %w", err)
		}

		return nil
	})
}

// ScoreOf computes a user's score as received upvotes minus received
// downvotes, resolved through the guild's emoji classification.
func (m *LedgerModel) ScoreOf(ctx context.Context, guildID, userID snowflake.ID) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var score int64

		err := m.db.NewSelect().
			TableExpr("score_edges AS e").
			ColumnExpr("COALESCE(SUM(CASE WHEN se.upvote THEN 1 ELSE -1 END), 0)").
			Join("INNER JOIN score_emojis AS se ON se.guild_id = e.guild_id AND se.emoji = e.emoji").
			Where("e.guild_id = ?", guildID).
			Where("e.recipient_id = ?", userID).
			Scan(ctx, &score)
		if err != nil {
			return 0, fmt.Errorf("failed to compute score: %w", err)
		}

		return score, nil
	})
}

// ScoreBreakdown returns a user's score together with the upvote and
// downvote counts behind it.
func (m *LedgerModel) ScoreBreakdown(
	ctx context.Context, guildID, userID snowflake.ID,
) (score, upvotes, downvotes int64, err error) {
	err = dbretry.NoResult(ctx, func(ctx context.Context) error {
		err := m.db.NewSelect().
			TableExpr("score_edges AS e").
			ColumnExpr("COALESCE(COUNT(*) FILTER (WHERE se.upvote), 0)").
			ColumnExpr("COALESCE(COUNT(*) FILTER (WHERE NOT se.upvote), 0)").
			Join("INNER JOIN score_emojis AS se ON se.guild_id = e.guild_id AND se.emoji = e.emoji").
			Where("e.guild_id = ?", guildID).
			Where("e.recipient_id = ?", userID).
			Scan(ctx, &upvotes, &downvotes)
		if err != nil {
			return fmt.Errorf("failed to compute score breakdown: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, 0, 0, err
	}

	return upvotes - downvotes, upvotes, downvotes, nil
}

// MessageScore computes the aggregate score of a single message.
func (m *LedgerModel) MessageScore(
	ctx context.Context, guildID, channelID, messageID snowflake.ID,
) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var score int64

		err := m.db.NewSelect().
			TableExpr("score_edges AS e").
			ColumnExpr("COALESCE(SUM(CASE WHEN se.upvote THEN 1 ELSE -1 END), 0)").
			Join("INNER JOIN score_emojis AS se ON se.guild_id = e.guild_id AND se.emoji = e.emoji").
			Where("e.guild_id = ?", guildID).
			Where("e.channel_id = ?", channelID).
			Where("e.message_id = ?", messageID).
			Scan(ctx, &score)
		if err != nil {
			return 0, fmt.Errorf("failed to compute message score: %w", err)
		}

		return score, nil
	})
}

// ReassignVotesTo moves up to limit of a user's received upvote edges to a
// new recipient, marking them as no longer original. Edges that were already
// gifted or claimed once are moved first, so transferred credit is re-gifted
// before original credit. A nil limit moves every matching edge.
//
// The whole move is one conditional UPDATE, so concurrent reassignments of
// the same user can never pick the same edge twice.
func (m *LedgerModel) ReassignVotesTo(
	ctx context.Context, guildID, fromUser, toUser snowflake.ID, limit *int64,
) (int64, error) {
	moved, err := dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		keys := m.db.NewSelect().
			TableExpr("score_edges AS e").
			ColumnExpr("e.guild_id, e.voter_id, e.recipient_id, e.channel_id, e.message_id, e.emoji").
			Join("INNER JOIN score_emojis AS se ON se.guild_id = e.guild_id AND se.emoji = e.emoji").
			Where("e.guild_id = ?", guildID).
			Where("e.recipient_id = ?", fromUser).
			Where("se.upvote").
			OrderExpr("e.is_original ASC")

		if limit != nil {
			keys = keys.Limit(int(*limit))
		}

		res, err := m.db.NewUpdate().
			Model((*types.ScoreEdge)(nil)).
			Set("recipient_id = ?", toUser).
			Set("is_original = FALSE").
			Where("(guild_id, voter_id, recipient_id, channel_id, message_id, emoji) IN (?)", keys).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to reassign votes: %w", err)
		}

		moved, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count reassigned votes: %w", err)
		}

		return moved, nil
	})
	if err != nil {
		return 0, err
	}

	m.logger.Debug("Reassigned votes",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("fromUser", uint64(fromUser)),
		zap.Uint64("toUser", uint64(toUser)),
		zap.Int64("moved", moved))

	return moved, nil
}

// ReceivedUpvotes counts the upvote edges a user has received. Gift amounts
// are capped by this value.
func (m *LedgerModel) ReceivedUpvotes(ctx context.Context, guildID, userID snowflake.ID) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		count, err := m.db.NewSelect().
			TableExpr("score_edges AS e").
			Join("INNER JOIN score_emojis AS se ON se.guild_id = e.guild_id AND se.emoji = e.emoji").
			Where("e.guild_id = ?", guildID).
			Where("e.recipient_id = ?", userID).
			Where("se.upvote").
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count received upvotes: %w", err)
		}

		return int64(count), nil
	})
}

// Rank returns a user's rank within the guild by score. Users without any
// received edges have no rank.
func (m *LedgerModel) Rank(ctx context.Context, guildID, userID snowflake.ID) (int64, bool, error) {
	return dbretryPair(ctx, func(ctx context.Context) (int64, bool, error) {
		var rank int64

		err := m.db.NewRaw(`
			WITH ranks AS (
				SELECT e.recipient_id,
					RANK() OVER (
						ORDER BY SUM(CASE WHEN se.upvote THEN 1 ELSE -1 END) DESC
					) AS rank
				FROM score_edges e
				INNER JOIN score_emojis se ON se.guild_id = e.guild_id AND se.emoji = e.emoji
				WHERE e.guild_id = ?
				GROUP BY e.recipient_id
			)
			SELECT rank FROM ranks WHERE recipient_id = ?
		`, guildID, userID).Scan(ctx, &rank)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, false, nil
			}

			return 0, false, fmt.Errorf("failed to compute rank: %w", err)
		}

		return rank, true, nil
	})
}

// UserScore pairs a user with their computed score for leaderboard queries.
type UserScore struct {
	UserID snowflake.ID `bun:"recipient_id"`
	Score  int64        `bun:"score"`
}

// Top returns the highest scored users of a guild.
func (m *LedgerModel) Top(ctx context.Context, guildID snowflake.ID, limit int) ([]UserScore, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]UserScore, error) {
		var scores []UserScore

		err := m.db.NewSelect().
			TableExpr("score_edges AS e").
			ColumnExpr("e.recipient_id").
			ColumnExpr("SUM(CASE WHEN se.upvote THEN 1 ELSE -1 END) AS score").
			Join("INNER JOIN score_emojis AS se ON se.guild_id = e.guild_id AND se.emoji = e.emoji").
			Where("e.guild_id = ?", guildID).
			GroupExpr("e.recipient_id").
			OrderExpr("score DESC").
			Limit(limit).
			Scan(ctx, &scores)
		if err != nil {
			return nil, fmt.Errorf("failed to query top scores: %w", err)
		}

		return scores, nil
	})
}

// DeleteReceived permanently discards every edge a user has received.
// Used when a departure claim times out unclaimed.
func (m *LedgerModel) DeleteReceived(ctx context.Context, guildID, userID snowflake.ID) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		res, err := m.db.NewDelete().
			Model((*types.ScoreEdge)(nil)).
			Where("guild_id = ?", guildID).
			Where("recipient_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to delete received votes: %w", err)
		}

		deleted, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count deleted votes: %w", err)
		}

		return deleted, nil
	})
}

// dbretryPair adapts dbretry.Operation to operations returning a value and a
// presence flag.
func dbretryPair[T any](
	ctx context.Context, op func(context.Context) (T, bool, error),
) (T, bool, error) {
	type pair struct {
		value T
		ok    bool
	}

	result, err := dbretry.Operation(ctx, func(ctx context.Context) (pair, error) {
		value, ok, err := op(ctx)
		return pair{value: value, ok: ok}, err
	})

	return result.value, result.ok, err
}
