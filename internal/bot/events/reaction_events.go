package events

import (
	"context"
	"fmt"
	"time"

	botlib "github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/tallybot/tally/internal/database/types"
	"github.com/tallybot/tally/internal/engine"
	"go.uber.org/zap"
)

// eventTimeout bounds the handling of a single gateway event.
const eventTimeout = 30 * time.Second

// ReactionHandler adapts gateway reaction events for the engine. Every
// event is handled on its own goroutine; transient failures are retried
// once, which is safe because ledger writes are idempotent on replay.
type ReactionHandler struct {
	engine *engine.Engine
	client botlib.Client
	logger *zap.Logger
}

// NewReactionHandler creates a new reaction event handler.
func NewReactionHandler(eng *engine.Engine, client botlib.Client, logger *zap.Logger) *ReactionHandler {
	return &ReactionHandler{
		engine: eng,
		client: client,
		logger: logger.Named("reaction_events"),
	}
}

// OnAdd handles a reaction-add gateway event.
func (h *ReactionHandler) OnAdd(event *events.GuildMessageReactionAdd) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		// The gateway payload does not carry the message author, who is
		// the potential vote recipient
		message, err := h.client.Rest().GetMessage(event.ChannelID, event.MessageID, rest.WithCtx(ctx))
		if err != nil {
			h.logger.Warn("Failed to fetch reacted message",
				zap.Uint64("messageID", uint64(event.MessageID)),
				zap.Error(err))

			return
		}

		ev := engine.ReactionEvent{
			GuildID:     event.GuildID,
			ChannelID:   event.ChannelID,
			MessageID:   event.MessageID,
			UserID:      event.UserID,
			UserRoles:   event.Member.RoleIDs,
			UserIsBot:   event.Member.User.Bot,
			AuthorID:    message.Author.ID,
			AuthorIsBot: message.Author.Bot,
			Emoji:       types.EmojiKeyFor(event.Emoji),
			RawEmoji:    rawEmoji(event.Emoji),
		}

		h.withRetry(ctx, "reaction add", func() error {
			return h.engine.HandleReactionAdd(ctx, ev)
		})
	}()
}

// OnRemove handles a reaction-remove gateway event.
func (h *ReactionHandler) OnRemove(event *events.GuildMessageReactionRemove) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		ev := engine.ReactionEvent{
			GuildID:   event.GuildID,
			ChannelID: event.ChannelID,
			MessageID: event.MessageID,
			UserID:    event.UserID,
			Emoji:     types.EmojiKeyFor(event.Emoji),
			RawEmoji:  rawEmoji(event.Emoji),
		}

		h.withRetry(ctx, "reaction remove", func() error {
			return h.engine.HandleReactionRemove(ctx, ev)
		})
	}()
}

// OnRemoveAll handles a bulk reaction clear.
func (h *ReactionHandler) OnRemoveAll(event *events.GuildMessageReactionRemoveAll) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		// Resolve the author so their roles can be resynchronized; a
		// failed lookup clears the ledger without the resync
		var authorID snowflake.ID

		if message, err := h.client.Rest().GetMessage(event.ChannelID, event.MessageID, rest.WithCtx(ctx)); err == nil {
			authorID = message.Author.ID
		}

		h.withRetry(ctx, "reaction remove all", func() error {
			return h.engine.HandleReactionRemoveAll(ctx, event.GuildID, event.ChannelID, event.MessageID, authorID)
		})
	}()
}

// OnMessageDelete clears the ledger edges of a deleted message.
func (h *ReactionHandler) OnMessageDelete(event *events.GuildMessageDelete) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		h.withRetry(ctx, "message delete", func() error {
			return h.engine.HandleMessageDelete(ctx, event.GuildID, event.ChannelID, event.MessageID)
		})
	}()
}

// withRetry runs an engine call, retrying once on failure.
func (h *ReactionHandler) withRetry(ctx context.Context, name string, fn func() error) {
	err := fn()
	if err == nil {
		return
	}

	if ctx.Err() != nil {
		h.logger.Warn(fmt.Sprintf("Dropped %s event", name), zap.Error(err))
		return
	}

	if err := fn(); err != nil {
		h.logger.Error(fmt.Sprintf("Failed to handle %s event", name), zap.Error(err))
	}
}

// rawEmoji renders an emoji the way the reaction endpoints expect it:
// "name:id" for custom emoji, the literal character for unicode.
func rawEmoji(emoji discord.PartialEmoji) string {
	if emoji.ID != nil && emoji.Name != nil {
		return fmt.Sprintf("%s:%s", *emoji.Name, emoji.ID.String())
	}

	if emoji.Name != nil {
		return *emoji.Name
	}

	return ""
}
