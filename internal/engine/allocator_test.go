package engine

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallybot/tally/internal/database/types"
	"go.uber.org/zap"
)

const (
	bindChannelID = snowflake.ID(400)
	bindMessageID = snowflake.ID(401)
	bindRoleID    = snowflake.ID(402)
	bindEmoji     = types.EmojiKey("🎟️")
)

func slotBinding(slots *int32) *types.ReactionRoleBinding {
	return &types.ReactionRoleBinding{
		GuildID:   testGuildID,
		ChannelID: bindChannelID,
		MessageID: bindMessageID,
		Emoji:     bindEmoji,
		RoleID:    bindRoleID,
		Slots:     slots,
	}
}

func bindingEvent(userID snowflake.ID, userRoles ...snowflake.ID) ReactionEvent {
	return ReactionEvent{
		GuildID:   testGuildID,
		ChannelID: bindChannelID,
		MessageID: bindMessageID,
		UserID:    userID,
		UserRoles: userRoles,
		Emoji:     bindEmoji,
		RawEmoji:  string(bindEmoji),
	}
}

func setupAllocator(t *testing.T, bindings *fakeBindings) (*Allocator, *fakeMembership, *fakeMessaging) {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	membership := newFakeMembership()
	messaging := newFakeMessaging()
	allocator := NewAllocator(bindings, membership, messaging, logger)

	return allocator, membership, messaging
}

func TestHandleReaction_GrantsRoleAndConsumesSlot(t *testing.T) {
	t.Parallel()

	slots := int32(1)
	binding := slotBinding(&slots)
	store := &fakeBindings{bindings: []*types.ReactionRoleBinding{binding}}
	allocator, membership, _ := setupAllocator(t, store)

	event := bindingEvent(testUserID)
	matched, err := store.For(t.Context(), testGuildID, bindChannelID, bindMessageID, bindEmoji)
	require.NoError(t, err)
	require.NoError(t, allocator.HandleReaction(t.Context(), event, matched))

	assert.True(t, membership.holds(testUserID, bindRoleID))
	assert.Equal(t, int32(0), store.slots(binding))
}

func TestHandleReaction_ExhaustedSlotsSilentlySkipped(t *testing.T) {
	t.Parallel()

	slots := int32(0)
	binding := slotBinding(&slots)
	store := &fakeBindings{bindings: []*types.ReactionRoleBinding{binding}}
	allocator, membership, _ := setupAllocator(t, store)

	event := bindingEvent(testUserID)
	matched, err := store.For(t.Context(), testGuildID, bindChannelID, bindMessageID, bindEmoji)
	require.NoError(t, err)
	require.NoError(t, allocator.HandleReaction(t.Context(), event, matched))

	assert.False(t, membership.holds(testUserID, bindRoleID))
	assert.Equal(t, int32(0), store.slots(binding))
}

func TestHandleReaction_ToggleOffReleasesSlot(t *testing.T) {
	t.Parallel()

	slots := int32(0)
	binding := slotBinding(&slots)
	store := &fakeBindings{bindings: []*types.ReactionRoleBinding{binding}}
	allocator, membership, _ := setupAllocator(t, store)
	membership.setRoles(testUserID, bindRoleID)

	event := bindingEvent(testUserID, bindRoleID)
	matched, err := store.For(t.Context(), testGuildID, bindChannelID, bindMessageID, bindEmoji)
	require.NoError(t, err)
	require.NoError(t, allocator.HandleReaction(t.Context(), event, matched))

	assert.False(t, membership.holds(testUserID, bindRoleID))
	assert.Equal(t, int32(1), store.slots(binding))
}

func TestHandleReaction_SlotCountConserved(t *testing.T) {
	t.Parallel()

	slots := int32(1)
	binding := slotBinding(&slots)
	store := &fakeBindings{bindings: []*types.ReactionRoleBinding{binding}}
	allocator, membership, _ := setupAllocator(t, store)

	ctx := t.Context()
	otherUser := snowflake.ID(201)

	// First user takes the only slot
	matched, err := store.For(ctx, testGuildID, bindChannelID, bindMessageID, bindEmoji)
	require.NoError(t, err)
	require.NoError(t, allocator.HandleReaction(ctx, bindingEvent(testUserID), matched))
	assert.Equal(t, int32(0), store.slots(binding))

	// Second user is turned away
	matched, err = store.For(ctx, testGuildID, bindChannelID, bindMessageID, bindEmoji)
	require.NoError(t, err)
	require.NoError(t, allocator.HandleReaction(ctx, bindingEvent(otherUser), matched))
	assert.False(t, membership.holds(otherUser, bindRoleID))

	// First user toggles off, freeing the slot for the second
	matched, err = store.For(ctx, testGuildID, bindChannelID, bindMessageID, bindEmoji)
	require.NoError(t, err)
	require.NoError(t, allocator.HandleReaction(ctx, bindingEvent(testUserID, bindRoleID), matched))
	assert.Equal(t, int32(1), store.slots(binding))

	matched, err = store.For(ctx, testGuildID, bindChannelID, bindMessageID, bindEmoji)
	require.NoError(t, err)
	require.NoError(t, allocator.HandleReaction(ctx, bindingEvent(otherUser), matched))
	assert.True(t, membership.holds(otherUser, bindRoleID))
	assert.Equal(t, int32(0), store.slots(binding))
}

func TestHandleReaction_NilSlotsUnlimited(t *testing.T) {
	t.Parallel()

	binding := slotBinding(nil)
	store := &fakeBindings{bindings: []*types.ReactionRoleBinding{binding}}
	allocator, membership, _ := setupAllocator(t, store)

	ctx := t.Context()

	for i := range 5 {
		userID := snowflake.ID(200 + uint64(i))
		matched, err := store.For(ctx, testGuildID, bindChannelID, bindMessageID, bindEmoji)
		require.NoError(t, err)
		require.NoError(t, allocator.HandleReaction(ctx, bindingEvent(userID), matched))
		assert.True(t, membership.holds(userID, bindRoleID))
	}
}

func TestHandleReaction_BotIgnored(t *testing.T) {
	t.Parallel()

	slots := int32(1)
	binding := slotBinding(&slots)
	store := &fakeBindings{bindings: []*types.ReactionRoleBinding{binding}}
	allocator, membership, messaging := setupAllocator(t, store)

	event := bindingEvent(testUserID)
	event.UserIsBot = true

	matched, err := store.For(t.Context(), testGuildID, bindChannelID, bindMessageID, bindEmoji)
	require.NoError(t, err)
	require.NoError(t, allocator.HandleReaction(t.Context(), event, matched))

	assert.False(t, membership.holds(testUserID, bindRoleID))
	assert.Equal(t, int32(1), store.slots(binding))
	assert.Zero(t, messaging.removedCount())
}

func TestHandleReaction_RetractsTriggeringReaction(t *testing.T) {
	t.Parallel()

	binding := slotBinding(nil)
	store := &fakeBindings{bindings: []*types.ReactionRoleBinding{binding}}
	allocator, _, messaging := setupAllocator(t, store)

	matched, err := store.For(t.Context(), testGuildID, bindChannelID, bindMessageID, bindEmoji)
	require.NoError(t, err)
	require.NoError(t, allocator.HandleReaction(t.Context(), bindingEvent(testUserID), matched))

	assert.Equal(t, 1, messaging.removedCount())
}
