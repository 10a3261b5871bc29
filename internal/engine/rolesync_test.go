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
	upEmoji   = types.EmojiKey("👍")
	downEmoji = types.EmojiKey("👎")
)

func scoringEmojis() map[types.EmojiKey]bool {
	return map[types.EmojiKey]bool{upEmoji: true, downEmoji: false}
}

// seedScore inserts enough upvote edges to give the user the wanted score.
func seedScore(t *testing.T, ledger *fakeLedger, userID snowflake.ID, score int64) {
	t.Helper()

	emoji := upEmoji
	if score < 0 {
		emoji = downEmoji
		score = -score
	}

	for i := int64(0); i < score; i++ {
		err := ledger.RecordVote(t.Context(), &types.ScoreEdge{
			GuildID:    testGuildID,
			VoterID:    snowflake.ID(1000 + uint64(i)),
			Recipient:  userID,
			ChannelID:  1,
			MessageID:  snowflake.ID(2000 + uint64(i)),
			Emoji:      emoji,
			IsOriginal: true,
		})
		require.NoError(t, err)
	}
}

func setupRoleSync(t *testing.T, thresholds []types.ScoreRole) (*RoleSynchronizer, *fakeLedger, *fakeMembership) {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	ledger := newFakeLedger(scoringEmojis())
	membership := newFakeMembership()
	sync := NewRoleSynchronizer(ledger, &fakeConfig{thresholds: thresholds}, membership, logger)

	return sync, ledger, membership
}

func TestSyncRoles_PromotesToHighestReachedThreshold(t *testing.T) {
	t.Parallel()

	roleA := snowflake.ID(310)
	roleB := snowflake.ID(311)
	sync, ledger, membership := setupRoleSync(t, []types.ScoreRole{
		{GuildID: testGuildID, RoleID: roleA, Threshold: 0},
		{GuildID: testGuildID, RoleID: roleB, Threshold: 10},
	})

	seedScore(t, ledger, testUserID, 10)
	membership.setRoles(testUserID, roleA)

	require.NoError(t, sync.SyncRoles(t.Context(), testGuildID, testUserID))

	assert.True(t, membership.holds(testUserID, roleB))
	assert.False(t, membership.holds(testUserID, roleA))
}

func TestSyncRoles_NoThresholds_NoOp(t *testing.T) {
	t.Parallel()

	sync, ledger, membership := setupRoleSync(t, nil)

	seedScore(t, ledger, testUserID, 5)
	membership.setRoles(testUserID, snowflake.ID(310))

	require.NoError(t, sync.SyncRoles(t.Context(), testGuildID, testUserID))

	assert.Empty(t, membership.granted)
	assert.Empty(t, membership.revoked)
}

func TestSyncRoles_UnmanagedRolesUntouched(t *testing.T) {
	t.Parallel()

	managed := snowflake.ID(310)
	unmanaged := snowflake.ID(999)
	sync, ledger, membership := setupRoleSync(t, []types.ScoreRole{
		{GuildID: testGuildID, RoleID: managed, Threshold: 0},
	})

	seedScore(t, ledger, testUserID, 3)
	membership.setRoles(testUserID, unmanaged)

	require.NoError(t, sync.SyncRoles(t.Context(), testGuildID, testUserID))

	assert.True(t, membership.holds(testUserID, unmanaged))
	assert.True(t, membership.holds(testUserID, managed))
}

func TestSyncRoles_SharedThresholdGrantsAll(t *testing.T) {
	t.Parallel()

	roleA := snowflake.ID(310)
	roleB := snowflake.ID(311)
	sync, ledger, membership := setupRoleSync(t, []types.ScoreRole{
		{GuildID: testGuildID, RoleID: roleA, Threshold: 5},
		{GuildID: testGuildID, RoleID: roleB, Threshold: 5},
	})

	seedScore(t, ledger, testUserID, 5)

	require.NoError(t, sync.SyncRoles(t.Context(), testGuildID, testUserID))

	assert.True(t, membership.holds(testUserID, roleA))
	assert.True(t, membership.holds(testUserID, roleB))
}

func TestSyncRoles_ScoreBelowAllThresholds(t *testing.T) {
	t.Parallel()

	roleA := snowflake.ID(310)
	sync, ledger, membership := setupRoleSync(t, []types.ScoreRole{
		{GuildID: testGuildID, RoleID: roleA, Threshold: 0},
	})

	seedScore(t, ledger, testUserID, -3)
	membership.setRoles(testUserID, roleA)

	require.NoError(t, sync.SyncRoles(t.Context(), testGuildID, testUserID))

	assert.False(t, membership.holds(testUserID, roleA))
}

func TestSyncRoles_AlreadyConsistent_NoCalls(t *testing.T) {
	t.Parallel()

	roleA := snowflake.ID(310)
	sync, ledger, membership := setupRoleSync(t, []types.ScoreRole{
		{GuildID: testGuildID, RoleID: roleA, Threshold: 0},
	})

	seedScore(t, ledger, testUserID, 2)
	membership.setRoles(testUserID, roleA)

	require.NoError(t, sync.SyncRoles(t.Context(), testGuildID, testUserID))

	assert.Empty(t, membership.granted)
	assert.Empty(t, membership.revoked)
}
