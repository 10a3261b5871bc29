package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/tallybot/tally/internal/database/types"
	"go.uber.org/zap"
)

// Allocator toggles membership in reaction-bound roles. One reaction grants
// the role while slots remain; a reaction from a user who already holds it
// revokes the role and frees the slot.
type Allocator struct {
	bindings   Bindings
	membership Membership
	messaging  Messaging
	logger     *zap.Logger
}

// NewAllocator creates a new reaction-role allocator.
func NewAllocator(
	bindings Bindings, membership Membership, messaging Messaging, logger *zap.Logger,
) *Allocator {
	return &Allocator{
		bindings:   bindings,
		membership: membership,
		messaging:  messaging,
		logger:     logger.Named("allocator"),
	}
}

// HandleReaction processes a reaction against its matching bindings. The
// triggering reaction is always retracted so the message keeps only the
// display copy added when the binding was created. Bots are never serviced.
func (a *Allocator) HandleReaction(
	ctx context.Context, event ReactionEvent, bindings []types.ReactionRoleBinding,
) error {
	if event.UserIsBot {
		return nil
	}

	// Retract the trigger before toggling so the reaction count stays at
	// the display copy. Failure here is not fatal to the toggle itself.
	err := a.messaging.RemoveReaction(ctx, event.ChannelID, event.MessageID, event.RawEmoji, event.UserID)
	if err != nil {
		a.logger.Warn("Failed to retract triggering reaction",
			zap.Uint64("messageID", uint64(event.MessageID)),
			zap.Error(err))
	}

	for i := range bindings {
		binding := &bindings[i]

		if slices.Contains(event.UserRoles, binding.RoleID) {
			// Toggle off: free the slot, then revoke
			if err := a.bindings.ReleaseSlot(ctx, binding); err != nil {
				return fmt.Errorf("failed to release slot: %w", err)
			}

			if err := a.membership.RevokeRole(ctx, event.GuildID, event.UserID, binding.RoleID); err != nil {
				return fmt.Errorf("failed to revoke reaction role: %w", err)
			}

			continue
		}

		// Toggle on: the store decides whether a slot is left
		granted, err := a.bindings.ConsumeSlot(ctx, binding)
		if err != nil {
			return fmt.Errorf("failed to consume slot: %w", err)
		}

		if !granted {
			// Capacity exhausted, the event is silently dropped
			continue
		}

		if err := a.membership.GrantRole(ctx, event.GuildID, event.UserID, binding.RoleID); err != nil {
			return fmt.Errorf("failed to grant reaction role: %w", err)
		}
	}

	return nil
}
