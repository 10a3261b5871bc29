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
	modChannelID = snowflake.ID(500)
	modMessageID = snowflake.ID(501)
)

func setupAutoMod(t *testing.T, pinScore, deleteScore *int64) (*AutoModerator, *fakeLedger, *fakeMessaging) {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	ledger := newFakeLedger(scoringEmojis())
	messaging := newFakeMessaging()
	config := &fakeConfig{pinScore: pinScore, deleteScore: deleteScore}
	autoMod := NewAutoModerator(ledger, config, messaging, logger)

	return autoMod, ledger, messaging
}

// seedMessageScore inserts edges onto the automod test message.
func seedMessageScore(t *testing.T, ledger *fakeLedger, score int64) {
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
			Recipient:  testUserID,
			ChannelID:  modChannelID,
			MessageID:  modMessageID,
			Emoji:      emoji,
			IsOriginal: true,
		})
		require.NoError(t, err)
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestEvaluate_PinsAtThreshold(t *testing.T) {
	t.Parallel()

	autoMod, ledger, messaging := setupAutoMod(t, int64Ptr(5), nil)
	seedMessageScore(t, ledger, 5)

	require.NoError(t, autoMod.Evaluate(t.Context(), testGuildID, modChannelID, modMessageID))

	pinned, err := messaging.IsPinned(t.Context(), modChannelID, modMessageID)
	require.NoError(t, err)
	assert.True(t, pinned)
}

func TestEvaluate_BelowThresholdNotPinned(t *testing.T) {
	t.Parallel()

	autoMod, ledger, messaging := setupAutoMod(t, int64Ptr(5), nil)
	seedMessageScore(t, ledger, 4)

	require.NoError(t, autoMod.Evaluate(t.Context(), testGuildID, modChannelID, modMessageID))

	pinned, err := messaging.IsPinned(t.Context(), modChannelID, modMessageID)
	require.NoError(t, err)
	assert.False(t, pinned)
}

func TestEvaluate_DeletesAtNegativeThreshold(t *testing.T) {
	t.Parallel()

	autoMod, ledger, messaging := setupAutoMod(t, nil, int64Ptr(-10))
	seedMessageScore(t, ledger, -10)

	require.NoError(t, autoMod.Evaluate(t.Context(), testGuildID, modChannelID, modMessageID))

	assert.True(t, messaging.isDeleted(modMessageID))
}

func TestEvaluate_SignMismatchNoAction(t *testing.T) {
	t.Parallel()

	// A strongly negative score must not satisfy a positive pin threshold
	autoMod, ledger, messaging := setupAutoMod(t, int64Ptr(5), nil)
	seedMessageScore(t, ledger, -7)

	require.NoError(t, autoMod.Evaluate(t.Context(), testGuildID, modChannelID, modMessageID))

	pinned, err := messaging.IsPinned(t.Context(), modChannelID, modMessageID)
	require.NoError(t, err)
	assert.False(t, pinned)
	assert.False(t, messaging.isDeleted(modMessageID))
}

func TestEvaluate_NoThresholdsConfigured(t *testing.T) {
	t.Parallel()

	autoMod, ledger, messaging := setupAutoMod(t, nil, nil)
	seedMessageScore(t, ledger, 100)

	require.NoError(t, autoMod.Evaluate(t.Context(), testGuildID, modChannelID, modMessageID))

	pinned, err := messaging.IsPinned(t.Context(), modChannelID, modMessageID)
	require.NoError(t, err)
	assert.False(t, pinned)
	assert.False(t, messaging.isDeleted(modMessageID))
}

func TestCrosses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		score     int64
		threshold int64
		want      bool
	}{
		{"positive at threshold", 5, 5, true},
		{"positive above threshold", 8, 5, true},
		{"positive below threshold", 4, 5, false},
		{"negative at threshold", -10, -10, true},
		{"negative beyond threshold", -12, -10, true},
		{"negative short of threshold", -9, -10, false},
		{"sign mismatch negative score", -7, 5, false},
		{"sign mismatch positive score", 7, -5, false},
		{"zero score zero threshold", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, crosses(tt.score, tt.threshold))
		})
	}
}
