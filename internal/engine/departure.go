package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// ClaimCustomID identifies the claim button on departure prompts.
const ClaimCustomID = "score_claim"

// resolveTimeout bounds the follow-up work a resolution performs.
const resolveTimeout = 30 * time.Second

// ErrNoPendingClaim is returned for claim actions on prompts that already
// resolved or never existed. Late claims have no effect on the ledger.
var ErrNoPendingClaim = errors.New("no pending claim for this prompt")

// departure is one in-flight claim offer. Exactly one of claim or timeout
// resolves it.
type departure struct {
	guildID   snowflake.ID
	userID    snowflake.ID
	channelID snowflake.ID
	messageID snowflake.ID
	title     string
	timer     *time.Timer
}

// DepartureProtocol offers a departing user's received score to the guild
// via a timed public claim. Unclaimed scores are discarded when the timer
// fires.
type DepartureProtocol struct {
	mu      sync.Mutex
	pending map[snowflake.ID]*departure

	ledger    Ledger
	config    GuildConfig
	registry  Registry
	roleSync  *RoleSynchronizer
	messaging Messaging
	timeout   time.Duration
	logger    *zap.Logger
}

// NewDepartureProtocol creates a new departure claim protocol.
func NewDepartureProtocol(
	ledger Ledger,
	config GuildConfig,
	registry Registry,
	roleSync *RoleSynchronizer,
	messaging Messaging,
	timeout time.Duration,
	logger *zap.Logger,
) *DepartureProtocol {
	return &DepartureProtocol{
		pending:   make(map[snowflake.ID]*departure),
		ledger:    ledger,
		config:    config,
		registry:  registry,
		roleSync:  roleSync,
		messaging: messaging,
		timeout:   timeout,
		logger:    logger.Named("departure"),
	}
}

// HandleMemberLeave starts the protocol for a departing user. When the
// scoring module is disabled or the guild has no drop channel, the user's
// registry row is discarded without offering a claim.
func (p *DepartureProtocol) HandleMemberLeave(ctx context.Context, guildID, userID snowflake.ID) error {
	status, err := p.registry.ModuleStatus(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to get module status: %w", err)
	}

	if !status.Score {
		return p.discard(ctx, guildID, userID)
	}

	channelID, ok, err := p.config.RandomDropChannel(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to pick drop channel: %w", err)
	}

	if !ok {
		return p.discard(ctx, guildID, userID)
	}

	score, err := p.ledger.ScoreOf(ctx, guildID, userID)
	if err != nil {
		return fmt.Errorf("failed to get score: %w", err)
	}

	title := fmt.Sprintf("A score of %d has been dropped", score)
	description := fmt.Sprintf(
		"<@%d> left the guild. Click the button to pick up their score!", userID,
	)

	messageID, err := p.messaging.PostPrompt(ctx, channelID, title, description, ClaimCustomID)
	if err != nil {
		return fmt.Errorf("failed to post claim prompt: %w", err)
	}

	d := &departure{
		guildID:   guildID,
		userID:    userID,
		channelID: channelID,
		messageID: messageID,
		title:     title,
	}

	p.mu.Lock()
	p.pending[messageID] = d
	d.timer = time.AfterFunc(p.timeout, func() { p.onTimeout(messageID) })
	p.mu.Unlock()

	p.logger.Info("Offered departure claim",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)),
		zap.Int64("score", score))

	return nil
}

// Claim resolves a pending offer in the claimant's favor: every received
// vote of the departed user is reassigned to the claimant and both users'
// roles are resynchronized. A prompt can be claimed at most once; the
// timeout timer is cancelled on the way.
func (p *DepartureProtocol) Claim(ctx context.Context, messageID, claimantID snowflake.ID) error {
	d, ok := p.take(messageID)
	if !ok {
		return ErrNoPendingClaim
	}

	d.timer.Stop()

	moved, err := p.ledger.ReassignVotesTo(ctx, d.guildID, d.userID, claimantID, nil)
	if err != nil {
		return fmt.Errorf("failed to reassign votes: %w", err)
	}

	if err := p.registry.DeleteMember(ctx, d.guildID, d.userID); err != nil {
		p.logger.Warn("Failed to delete departed member row", zap.Error(err))
	}

	// Resync both sides; the departed user's sync is best-effort since
	// they are no longer a member
	var wg conc.WaitGroup

	wg.Go(func() {
		if err := p.roleSync.SyncRoles(ctx, d.guildID, claimantID); err != nil {
			p.logger.Warn("Failed to sync claimant roles", zap.Error(err))
		}
	})
	wg.Go(func() {
		if err := p.roleSync.SyncRoles(ctx, d.guildID, d.userID); err != nil {
			p.logger.Debug("Failed to sync departed user roles", zap.Error(err))
		}
	})
	wg.Wait()

	err = p.messaging.EditPrompt(ctx, d.channelID, d.messageID, d.title,
		fmt.Sprintf("<@%d> picked up %d reactions.", claimantID, moved))
	if err != nil {
		p.logger.Warn("Failed to edit claim prompt", zap.Error(err))
	}

	p.logger.Info("Departure claim resolved",
		zap.Uint64("guildID", uint64(d.guildID)),
		zap.Uint64("claimantID", uint64(claimantID)),
		zap.Int64("moved", moved))

	return nil
}

// onTimeout resolves an unclaimed offer: the departed user's received
// votes are permanently discarded.
func (p *DepartureProtocol) onTimeout(messageID snowflake.ID) {
	d, ok := p.take(messageID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	deleted, err := p.ledger.DeleteReceived(ctx, d.guildID, d.userID)
	if err != nil {
		p.logger.Error("Failed to discard departed user votes", zap.Error(err))
		return
	}

	if err := p.registry.DeleteMember(ctx, d.guildID, d.userID); err != nil {
		p.logger.Warn("Failed to delete departed member row", zap.Error(err))
	}

	err = p.messaging.EditPrompt(ctx, d.channelID, d.messageID, d.title,
		"No one picked up the score in time.")
	if err != nil {
		p.logger.Warn("Failed to edit claim prompt", zap.Error(err))
	}

	p.logger.Info("Departure claim timed out",
		zap.Uint64("guildID", uint64(d.guildID)),
		zap.Uint64("userID", uint64(d.userID)),
		zap.Int64("discarded", deleted))
}

// take removes a pending departure, establishing that the caller is the one
// resolution that happens.
func (p *DepartureProtocol) take(messageID snowflake.ID) (*departure, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.pending[messageID]
	if ok {
		delete(p.pending, messageID)
	}

	return d, ok
}

// discard is the degraded path: the user's registry row is removed without
// touching ledger edges beyond what cascading deletion implies.
func (p *DepartureProtocol) discard(ctx context.Context, guildID, userID snowflake.ID) error {
	if err := p.registry.DeleteMember(ctx, guildID, userID); err != nil {
		return fmt.Errorf("failed to discard member: %w", err)
	}

	return nil
}
