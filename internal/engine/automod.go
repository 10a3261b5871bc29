package engine

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// AutoModerator pins or deletes messages whose aggregate score crosses the
// guild's configured thresholds. It runs after every ledger mutation that
// can change a message's aggregate.
type AutoModerator struct {
	ledger    Ledger
	config    GuildConfig
	messaging Messaging
	logger    *zap.Logger
}

// NewAutoModerator creates a new auto moderator.
func NewAutoModerator(
	ledger Ledger, config GuildConfig, messaging Messaging, logger *zap.Logger,
) *AutoModerator {
	return &AutoModerator{
		ledger:    ledger,
		config:    config,
		messaging: messaging,
		logger:    logger.Named("auto_mod"),
	}
}

// Evaluate checks a message's aggregate score against the guild thresholds.
// A threshold triggers only when the score shares its sign and reaches its
// magnitude. Pin and delete are evaluated independently; a deleted message
// cannot remain pinned, so delete wins in effect.
func (m *AutoModerator) Evaluate(
	ctx context.Context, guildID, channelID, messageID snowflake.ID,
) error {
	pinScore, deleteScore, err := m.config.AutoModThresholds(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to get automod thresholds: %w", err)
	}

	if pinScore == nil && deleteScore == nil {
		return nil
	}

	score, err := m.ledger.MessageScore(ctx, guildID, channelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to get message score: %w", err)
	}

	if pinScore != nil && crosses(score, *pinScore) {
		pinned, err := m.messaging.IsPinned(ctx, channelID, messageID)
		if err != nil {
			return fmt.Errorf("failed to check pin state: %w", err)
		}

		if !pinned {
			if err := m.messaging.Pin(ctx, channelID, messageID); err != nil {
				return fmt.Errorf("failed to pin message: %w", err)
			}

			m.logger.Info("Auto-pinned message",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("messageID", uint64(messageID)),
				zap.Int64("score", score))
		}
	}

	if deleteScore != nil && crosses(score, *deleteScore) {
		if err := m.messaging.Delete(ctx, channelID, messageID); err != nil {
			return fmt.Errorf("failed to delete message: %w", err)
		}

		m.logger.Info("Auto-deleted message",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("messageID", uint64(messageID)),
			zap.Int64("score", score))
	}

	return nil
}

// crosses reports whether a score triggers a signed threshold: both must
// share a sign and the score must reach the threshold's magnitude.
func crosses(score, threshold int64) bool {
	if (score >= 0) != (threshold >= 0) {
		return false
	}

	abs := func(v int64) int64 {
		if v < 0 {
			return -v
		}
		return v
	}

	return abs(score) >= abs(threshold)
}
