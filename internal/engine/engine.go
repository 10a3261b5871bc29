package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sourcegraph/conc"
	"github.com/tallybot/tally/internal/database/types"
	"go.uber.org/zap"
)

var (
	// ErrSelfGift is returned when a user tries to gift reactions to themselves.
	ErrSelfGift = errors.New("cannot gift reactions to yourself")
	// ErrModuleDisabled is returned when the scoring module is disabled for the guild.
	ErrModuleDisabled = errors.New("scoring module is disabled for this guild")
)

// Settings carries the engine knobs read from configuration.
type Settings struct {
	// DefaultCooldown applies between scoring reactions of a user unless a
	// role override configures less.
	DefaultCooldown time.Duration
	// CreditMargin is the banked seconds allowed by the credit throttle.
	CreditMargin int64
	// PickupTimeout is how long a departure claim prompt stays open.
	PickupTimeout time.Duration
}

// Engine is the reaction economy engine. It turns inbound reaction and
// membership events into ledger mutations and keeps roles, pins and
// departure claims consistent with them.
type Engine struct {
	ledger    Ledger
	config    GuildConfig
	bindings  Bindings
	registry  Registry
	messaging Messaging

	cooldowns *CooldownGate
	credits   *CreditThrottle
	roleSync  *RoleSynchronizer
	allocator *Allocator
	autoMod   *AutoModerator
	departure *DepartureProtocol

	logger *zap.Logger
}

// New wires the engine from its store models and platform interfaces.
func New(
	ledger Ledger,
	config GuildConfig,
	bindings Bindings,
	registry Registry,
	membership Membership,
	messaging Messaging,
	settings Settings,
	logger *zap.Logger,
) *Engine {
	roleSync := NewRoleSynchronizer(ledger, config, membership, logger)

	return &Engine{
		ledger:    ledger,
		config:    config,
		bindings:  bindings,
		registry:  registry,
		messaging: messaging,
		cooldowns: NewCooldownGate(settings.DefaultCooldown, config, logger),
		credits:   NewCreditThrottle(settings.CreditMargin),
		roleSync:  roleSync,
		allocator: NewAllocator(bindings, membership, messaging, logger),
		autoMod:   NewAutoModerator(ledger, config, messaging, logger),
		departure: NewDepartureProtocol(
			ledger, config, registry, roleSync, messaging, settings.PickupTimeout, logger,
		),
		logger: logger.Named("engine"),
	}
}

// HandleReactionAdd routes an inbound reaction-add event. Reaction-role
// bindings take priority over scoring; an emoji only scores when it matches
// no binding, is classified for the guild, and the voter is off cooldown.
func (e *Engine) HandleReactionAdd(ctx context.Context, event ReactionEvent) error {
	if event.UserIsBot {
		return nil
	}

	if err := e.registry.EnsureMember(ctx, event.GuildID, event.UserID); err != nil {
		return fmt.Errorf("failed to register voter: %w", err)
	}

	if err := e.registry.EnsureMember(ctx, event.GuildID, event.AuthorID); err != nil {
		return fmt.Errorf("failed to register author: %w", err)
	}

	status, err := e.registry.ModuleStatus(ctx, event.GuildID)
	if err != nil {
		return fmt.Errorf("failed to get module status: %w", err)
	}

	if status.ReactionRoles {
		bindings, err := e.bindings.For(ctx, event.GuildID, event.ChannelID, event.MessageID, event.Emoji)
		if err != nil {
			return fmt.Errorf("failed to get bindings: %w", err)
		}

		if len(bindings) > 0 {
			return e.allocator.HandleReaction(ctx, event, bindings)
		}
	}

	if !status.Score {
		return nil
	}

	// Self reactions never score
	if event.UserID == event.AuthorID {
		return nil
	}

	if _, ok, err := e.config.ClassifyEmoji(ctx, event.GuildID, event.Emoji); err != nil {
		return fmt.Errorf("failed to classify emoji: %w", err)
	} else if !ok {
		return nil
	}

	if e.cooldowns.CheckAndArm(ctx, event.GuildID, event.UserID, event.UserRoles) {
		// Cooldown active: retract the rejected reaction
		err := e.messaging.RemoveReaction(ctx, event.ChannelID, event.MessageID, event.RawEmoji, event.UserID)
		if err != nil {
			e.logger.Warn("Failed to retract rejected reaction",
				zap.Uint64("messageID", uint64(event.MessageID)),
				zap.Error(err))
		}

		return nil
	}

	edge := &types.ScoreEdge{
		GuildID:    event.GuildID,
		VoterID:    event.UserID,
		Recipient:  event.AuthorID,
		ChannelID:  event.ChannelID,
		MessageID:  event.MessageID,
		Emoji:      event.Emoji,
		IsOriginal: true,
	}

	if err := e.ledger.RecordVote(ctx, edge); err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}

	e.afterLedgerMutation(ctx, event.GuildID, event.AuthorID, event.AuthorIsBot, event.ChannelID, event.MessageID)

	return nil
}

// HandleReactionRemove retracts the voter's edge on a message, if any, and
// re-evaluates the affected user and message.
func (e *Engine) HandleReactionRemove(ctx context.Context, event ReactionEvent) error {
	recipient, found, err := e.ledger.RetractVote(
		ctx, event.GuildID, event.UserID, event.ChannelID, event.MessageID, event.Emoji,
	)
	if err != nil {
		return fmt.Errorf("failed to retract vote: %w", err)
	}

	if !found {
		return nil
	}

	e.afterLedgerMutation(ctx, event.GuildID, recipient, false, event.ChannelID, event.MessageID)

	return nil
}

// HandleReactionRemoveAll clears every edge of a message after a bulk
// reaction clear.
func (e *Engine) HandleReactionRemoveAll(
	ctx context.Context, guildID, channelID, messageID, authorID snowflake.ID,
) error {
	err := e.ledger.RetractAllForMessage(ctx, guildID, channelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to retract votes for message: %w", err)
	}

	e.afterLedgerMutation(ctx, guildID, authorID, false, channelID, messageID)

	return nil
}

// HandleMessageDelete clears the ledger edges of a message that no longer
// exists. No follow-up steps run because there is nothing left to pin,
// delete or resync against.
func (e *Engine) HandleMessageDelete(
	ctx context.Context, guildID, channelID, messageID snowflake.ID,
) error {
	err := e.ledger.RetractAllForMessage(ctx, guildID, channelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to retract votes for deleted message: %w", err)
	}

	return nil
}

// HandleMemberLeave starts the departure claim protocol for the user.
func (e *Engine) HandleMemberLeave(ctx context.Context, guildID, userID snowflake.ID) error {
	return e.departure.HandleMemberLeave(ctx, guildID, userID)
}

// Claim resolves a pending departure claim in the claimant's favor.
func (e *Engine) Claim(ctx context.Context, promptMessageID, claimantID snowflake.ID) error {
	return e.departure.Claim(ctx, promptMessageID, claimantID)
}

// Gift moves up to amount of the voter's received upvotes to the recipient.
// The amount is bounded by the voter's current received-upvote surplus and
// self-targeting is rejected. Returns the number of edges actually moved.
func (e *Engine) Gift(
	ctx context.Context, guildID, voterID, recipientID snowflake.ID, amount int64,
) (int64, error) {
	if voterID == recipientID {
		return 0, ErrSelfGift
	}

	status, err := e.registry.ModuleStatus(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to get module status: %w", err)
	}

	if !status.Score {
		return 0, ErrModuleDisabled
	}

	surplus, err := e.ledger.ReceivedUpvotes(ctx, guildID, voterID)
	if err != nil {
		return 0, fmt.Errorf("failed to count received upvotes: %w", err)
	}

	if amount > surplus {
		amount = surplus
	}

	if amount <= 0 {
		return 0, nil
	}

	moved, err := e.ledger.ReassignVotesTo(ctx, guildID, voterID, recipientID, &amount)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign votes: %w", err)
	}

	var wg conc.WaitGroup

	for _, userID := range []snowflake.ID{voterID, recipientID} {
		wg.Go(func() {
			if err := e.roleSync.SyncRoles(ctx, guildID, userID); err != nil {
				e.logger.Warn("Failed to sync roles after gift",
					zap.Uint64("userID", uint64(userID)),
					zap.Error(err))
			}
		})
	}

	wg.Wait()

	return moved, nil
}

// QueryScore returns a user's score with its upvote and downvote counts.
func (e *Engine) QueryScore(
	ctx context.Context, guildID, userID snowflake.ID,
) (score, upvotes, downvotes int64, err error) {
	return e.ledger.ScoreBreakdown(ctx, guildID, userID)
}

// QueryRank returns a user's rank within the guild, if they have one.
func (e *Engine) QueryRank(ctx context.Context, guildID, userID snowflake.ID) (int64, bool, error) {
	return e.ledger.Rank(ctx, guildID, userID)
}

// SpendCredits charges a command cost against the user's credit balance.
// Used by the command layer to throttle execution.
func (e *Engine) SpendCredits(userID snowflake.ID, cost int64) (remaining int64, exceeded bool) {
	return e.credits.Spend(userID, cost)
}

// afterLedgerMutation runs the follow-up steps every ledger mutation
// triggers for the affected user and message. Both are best-effort and
// ordered after the ledger commit so a failure can never partially apply
// the event.
func (e *Engine) afterLedgerMutation(
	ctx context.Context, guildID, recipientID snowflake.ID, recipientIsBot bool,
	channelID, messageID snowflake.ID,
) {
	if !recipientIsBot && recipientID != 0 {
		if err := e.roleSync.SyncRoles(ctx, guildID, recipientID); err != nil {
			e.logger.Warn("Failed to sync roles",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("userID", uint64(recipientID)),
				zap.Error(err))
		}
	}

	if err := e.autoMod.Evaluate(ctx, guildID, channelID, messageID); err != nil {
		e.logger.Warn("Failed to auto-moderate message",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("messageID", uint64(messageID)),
			zap.Error(err))
	}
}
