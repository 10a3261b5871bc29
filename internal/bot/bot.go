package bot

import (
	"context"
	"time"

	"github.com/disgoorg/disgo"
	botlib "github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"go.uber.org/zap"

	botevents "github.com/tallybot/tally/internal/bot/events"
	"github.com/tallybot/tally/internal/database"
	"github.com/tallybot/tally/internal/engine"
	"github.com/tallybot/tally/internal/setup/config"
)

// Bot wires the Discord gateway to the reaction economy engine.
// It owns the disgo client and the event handlers that translate gateway
// payloads into engine calls.
type Bot struct {
	client    botlib.Client
	engine    *engine.Engine
	reactions *botevents.ReactionHandler
	members   *botevents.MemberHandler
	logger    *zap.Logger
}

// New builds the engine on top of the database client, connects the Discord
// adapters, and configures the gateway with the intents and listeners the
// engine needs.
func New(cfg *config.Config, db database.Client, logger *zap.Logger) (*Bot, error) {
	b := &Bot{logger: logger.Named("bot")}

	client, err := disgo.New(cfg.Bot.Discord.Token,
		botlib.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMessageReactions,
			),
		),
		botlib.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageReactionAdd:       b.onReactionAdd,
			OnGuildMessageReactionRemove:    b.onReactionRemove,
			OnGuildMessageReactionRemoveAll: b.onReactionRemoveAll,
			OnGuildMessageDelete:            b.onMessageDelete,
			OnGuildMemberLeave:              b.onMemberLeave,
			OnGuildJoin:                     b.onGuildJoin,
			OnGuildLeave:                    b.onGuildLeave,
			OnGuildChannelDelete:            b.onChannelDelete,
			OnComponentInteraction:          b.onComponentInteraction,
		}),
	)
	if err != nil {
		return nil, err
	}

	settings := engine.Settings{
		DefaultCooldown: secondsToDuration(cfg.Bot.Scoring.DefaultCooldown),
		CreditMargin:    cfg.Bot.Scoring.CreditsMargin,
		PickupTimeout:   secondsToDuration(cfg.Bot.Scoring.PickupTimeout),
	}

	eng := engine.New(
		db.Model().Ledger(),
		db.Model().Config(),
		db.Model().Binding(),
		db.Model().Guild(),
		NewMembership(client),
		NewMessaging(client),
		settings,
		logger,
	)

	b.client = client
	b.engine = eng
	b.reactions = botevents.NewReactionHandler(eng, client, logger)
	b.members = botevents.NewMemberHandler(eng, db.Model().Guild(), db.Model().Config(), logger)

	return b, nil
}

// Start opens the gateway connection and begins receiving events.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot")
	return b.client.OpenGateway(ctx)
}

// Close gracefully shuts down the gateway connection.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")
	b.client.Close(context.Background())
}

func (b *Bot) onReactionAdd(event *events.GuildMessageReactionAdd) {
	b.reactions.OnAdd(event)
}

func (b *Bot) onReactionRemove(event *events.GuildMessageReactionRemove) {
	b.reactions.OnRemove(event)
}

func (b *Bot) onReactionRemoveAll(event *events.GuildMessageReactionRemoveAll) {
	b.reactions.OnRemoveAll(event)
}

func (b *Bot) onMessageDelete(event *events.GuildMessageDelete) {
	b.reactions.OnMessageDelete(event)
}

func (b *Bot) onMemberLeave(event *events.GuildMemberLeave) {
	b.members.OnLeave(event)
}

func (b *Bot) onGuildJoin(event *events.GuildJoin) {
	b.members.OnGuildJoin(event)
}

func (b *Bot) onChannelDelete(event *events.GuildChannelDelete) {
	b.members.OnChannelDelete(event)
}

func (b *Bot) onGuildLeave(event *events.GuildLeave) {
	b.members.OnGuildLeave(event)
}

func (b *Bot) onComponentInteraction(event *events.ComponentInteractionCreate) {
	b.members.OnComponentInteraction(event)
}

func secondsToDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}
