package bot

import (
	"context"
	"fmt"

	botlib "github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// Membership implements the engine's role-membership interface on the
// Discord REST API.
type Membership struct {
	client botlib.Client
}

// NewMembership creates a new Discord-backed membership adapter.
func NewMembership(client botlib.Client) *Membership {
	return &Membership{client: client}
}

// GrantRole adds a role to a guild member.
func (m *Membership) GrantRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error {
	err := m.client.Rest().AddMemberRole(guildID, userID, roleID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}

	return nil
}

// RevokeRole removes a role from a guild member.
func (m *Membership) RevokeRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error {
	err := m.client.Rest().RemoveMemberRole(guildID, userID, roleID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}

	return nil
}

// CurrentRoles returns the roles a guild member currently holds.
func (m *Membership) CurrentRoles(ctx context.Context, guildID, userID snowflake.ID) ([]snowflake.ID, error) {
	member, err := m.client.Rest().GetMember(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member.RoleIDs, nil
}

// Messaging implements the engine's message interface on the Discord REST
// API.
type Messaging struct {
	client botlib.Client
}

// NewMessaging creates a new Discord-backed messaging adapter.
func NewMessaging(client botlib.Client) *Messaging {
	return &Messaging{client: client}
}

// Pin pins a message in its channel.
func (m *Messaging) Pin(ctx context.Context, channelID, messageID snowflake.ID) error {
	err := m.client.Rest().PinMessage(channelID, messageID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to pin message: %w", err)
	}

	return nil
}

// Delete deletes a message.
func (m *Messaging) Delete(ctx context.Context, channelID, messageID snowflake.ID) error {
	err := m.client.Rest().DeleteMessage(channelID, messageID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}

// IsPinned reports whether a message is currently pinned.
func (m *Messaging) IsPinned(ctx context.Context, channelID, messageID snowflake.ID) (bool, error) {
	message, err := m.client.Rest().GetMessage(channelID, messageID, rest.WithCtx(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to get message: %w", err)
	}

	return message.Pinned, nil
}

// RemoveReaction retracts a user's reaction from a message.
func (m *Messaging) RemoveReaction(
	ctx context.Context, channelID, messageID snowflake.ID, emoji string, userID snowflake.ID,
) error {
	err := m.client.Rest().RemoveUserReaction(channelID, messageID, emoji, userID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to remove reaction: %w", err)
	}

	return nil
}

// PostPrompt posts a claim prompt with a single action button and returns
// the prompt message's ID.
func (m *Messaging) PostPrompt(
	ctx context.Context, channelID snowflake.ID, title, description, customID string,
) (snowflake.ID, error) {
	message, err := m.client.Rest().CreateMessage(channelID,
		discord.NewMessageCreateBuilder().
			SetEmbeds(discord.NewEmbedBuilder().
				SetTitle(title).
				SetDescription(description).
				Build()).
			AddActionRow(discord.NewPrimaryButton("Pick up the score", customID)).
			Build(),
		rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to post prompt: %w", err)
	}

	return message.ID, nil
}

// EditPrompt rewrites a prompt to its final state and strips every
// interactive component.
func (m *Messaging) EditPrompt(
	ctx context.Context, channelID, messageID snowflake.ID, title, description string,
) error {
	_, err := m.client.Rest().UpdateMessage(channelID, messageID,
		discord.NewMessageUpdateBuilder().
			SetEmbeds(discord.NewEmbedBuilder().
				SetTitle(title).
				SetDescription(description).
				Build()).
			SetContainerComponents().
			Build(),
		rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to edit prompt: %w", err)
	}

	return nil
}
