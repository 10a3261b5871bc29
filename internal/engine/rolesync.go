package engine

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// RoleSynchronizer reconciles the level-up roles a user actually holds with
// the roles their score entitles them to. Roles outside the guild's
// threshold table are never touched.
type RoleSynchronizer struct {
	ledger     Ledger
	config     GuildConfig
	membership Membership
	logger     *zap.Logger
}

// NewRoleSynchronizer creates a new role synchronizer.
func NewRoleSynchronizer(
	ledger Ledger, config GuildConfig, membership Membership, logger *zap.Logger,
) *RoleSynchronizer {
	return &RoleSynchronizer{
		ledger:     ledger,
		config:     config,
		membership: membership,
		logger:     logger.Named("role_sync"),
	}
}

// SyncRoles recomputes a user's desired level-up roles from their current
// score and applies the difference. Guilds without a threshold table manage
// no roles, which makes the call a no-op.
func (s *RoleSynchronizer) SyncRoles(ctx context.Context, guildID, userID snowflake.ID) error {
	thresholds, err := s.config.RoleThresholds(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to get role thresholds: %w", err)
	}

	if len(thresholds) == 0 {
		return nil
	}

	score, err := s.ledger.ScoreOf(ctx, guildID, userID)
	if err != nil {
		return fmt.Errorf("failed to get score: %w", err)
	}

	// The single highest threshold the score reaches; every role at that
	// threshold is desired
	var (
		best    int64
		hasBest bool
	)

	for _, t := range thresholds {
		if t.Threshold <= score && (!hasBest || t.Threshold > best) {
			best = t.Threshold
			hasBest = true
		}
	}

	desired := make(map[snowflake.ID]struct{})
	managed := make(map[snowflake.ID]struct{})

	for _, t := range thresholds {
		managed[t.RoleID] = struct{}{}

		if hasBest && t.Threshold == best {
			desired[t.RoleID] = struct{}{}
		}
	}

	current, err := s.membership.CurrentRoles(ctx, guildID, userID)
	if err != nil {
		return fmt.Errorf("failed to get current roles: %w", err)
	}

	currentSet := make(map[snowflake.ID]struct{}, len(current))
	for _, roleID := range current {
		currentSet[roleID] = struct{}{}
	}

	// Remove managed roles the score no longer entitles the user to
	for _, roleID := range current {
		if _, isManaged := managed[roleID]; !isManaged {
			continue
		}

		if _, isDesired := desired[roleID]; isDesired {
			continue
		}

		if err := s.membership.RevokeRole(ctx, guildID, userID, roleID); err != nil {
			return fmt.Errorf("failed to revoke role: %w", err)
		}
	}

	// Add desired roles the user is missing
	for roleID := range desired {
		if _, held := currentSet[roleID]; held {
			continue
		}

		if err := s.membership.GrantRole(ctx, guildID, userID, roleID); err != nil {
			return fmt.Errorf("failed to grant role: %w", err)
		}
	}

	s.logger.Debug("Synchronized level-up roles",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)),
		zap.Int64("score", score))

	return nil
}
