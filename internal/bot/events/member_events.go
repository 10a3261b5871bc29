package events

import (
	"context"
	"errors"

	"github.com/disgoorg/disgo/events"
	"github.com/tallybot/tally/internal/database/models"
	"github.com/tallybot/tally/internal/engine"
	"go.uber.org/zap"
)

// MemberHandler adapts membership and guild lifecycle events for the
// engine, and routes claim button presses to the departure protocol.
type MemberHandler struct {
	engine *engine.Engine
	guilds *models.GuildModel
	config *models.ConfigModel
	logger *zap.Logger
}

// NewMemberHandler creates a new member event handler.
func NewMemberHandler(
	eng *engine.Engine, guilds *models.GuildModel, config *models.ConfigModel, logger *zap.Logger,
) *MemberHandler {
	return &MemberHandler{
		engine: eng,
		guilds: guilds,
		config: config,
		logger: logger.Named("member_events"),
	}
}

// OnLeave starts the departure claim protocol for the departing user.
func (h *MemberHandler) OnLeave(event *events.GuildMemberLeave) {
	if event.User.Bot {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		if err := h.engine.HandleMemberLeave(ctx, event.GuildID, event.User.ID); err != nil {
			h.logger.Error("Failed to handle member departure",
				zap.Uint64("guildID", uint64(event.GuildID)),
				zap.Uint64("userID", uint64(event.User.ID)),
				zap.Error(err))
		}
	}()
}

// OnGuildJoin registers a newly joined guild.
func (h *MemberHandler) OnGuildJoin(event *events.GuildJoin) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		if err := h.guilds.EnsureGuild(ctx, event.GuildID); err != nil {
			h.logger.Error("Failed to register guild",
				zap.Uint64("guildID", uint64(event.GuildID)),
				zap.Error(err))
		}
	}()
}

// OnGuildLeave drops all stored data of a guild the bot was removed from.
func (h *MemberHandler) OnGuildLeave(event *events.GuildLeave) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		if err := h.guilds.DeleteGuild(ctx, event.GuildID); err != nil {
			h.logger.Error("Failed to delete guild data",
				zap.Uint64("guildID", uint64(event.GuildID)),
				zap.Error(err))
		}
	}()
}

// OnChannelDelete drops a deleted channel from the drop channel list so
// departure prompts are never aimed at it again.
func (h *MemberHandler) OnChannelDelete(event *events.GuildChannelDelete) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		if err := h.config.RemoveDropChannel(ctx, event.GuildID, event.ChannelID); err != nil {
			h.logger.Error("Failed to remove deleted drop channel",
				zap.Uint64("guildID", uint64(event.GuildID)),
				zap.Uint64("channelID", uint64(event.ChannelID)),
				zap.Error(err))
		}
	}()
}

// OnComponentInteraction handles claim button presses on departure prompts.
// Anything else is left to the command layer.
func (h *MemberHandler) OnComponentInteraction(event *events.ComponentInteractionCreate) {
	if event.Data.CustomID() != engine.ClaimCustomID {
		return
	}

	if err := event.DeferUpdateMessage(); err != nil {
		h.logger.Warn("Failed to acknowledge claim interaction", zap.Error(err))
	}

	messageID := event.Message.ID
	claimantID := event.User().ID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		err := h.engine.Claim(ctx, messageID, claimantID)
		if err != nil {
			if errors.Is(err, engine.ErrNoPendingClaim) {
				// Late press on an already resolved prompt
				return
			}

			h.logger.Error("Failed to resolve departure claim",
				zap.Uint64("messageID", uint64(messageID)),
				zap.Uint64("claimantID", uint64(claimantID)),
				zap.Error(err))
		}
	}()
}
