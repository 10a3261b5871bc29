package engine

import (
	"context"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/tallybot/tally/internal/database/types"
)

// fakeLedger is an in-memory score edge store with the same key and
// conditional-write semantics as the Postgres model.
type fakeLedger struct {
	mu     sync.Mutex
	edges  []types.ScoreEdge
	upvote map[types.EmojiKey]bool
}

func newFakeLedger(upvote map[types.EmojiKey]bool) *fakeLedger {
	return &fakeLedger{upvote: upvote}
}

func (l *fakeLedger) RecordVote(_ context.Context, edge *types.ScoreEdge) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.edges {
		if e.GuildID == edge.GuildID && e.VoterID == edge.VoterID && e.Recipient == edge.Recipient &&
			e.ChannelID == edge.ChannelID && e.MessageID == edge.MessageID && e.Emoji == edge.Emoji {
			return nil
		}
	}

	l.edges = append(l.edges, *edge)

	return nil
}

func (l *fakeLedger) RetractVote(
	_ context.Context, guildID, voterID, channelID, messageID snowflake.ID, emoji types.EmojiKey,
) (snowflake.ID, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.edges {
		if e.GuildID == guildID && e.VoterID == voterID && e.ChannelID == channelID &&
			e.MessageID == messageID && e.Emoji == emoji {
			recipient := e.Recipient
			l.edges = append(l.edges[:i], l.edges[i+1:]...)

			return recipient, true, nil
		}
	}

	return 0, false, nil
}

func (l *fakeLedger) RetractAllForMessage(_ context.Context, guildID, channelID, messageID snowflake.ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.edges[:0]

	for _, e := range l.edges {
		if e.GuildID == guildID && e.ChannelID == channelID && e.MessageID == messageID {
			continue
		}

		kept = append(kept, e)
	}

	l.edges = kept

	return nil
}

func (l *fakeLedger) ScoreOf(_ context.Context, guildID, userID snowflake.ID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.scoreLocked(guildID, userID), nil
}

func (l *fakeLedger) scoreLocked(guildID, userID snowflake.ID) int64 {
	var score int64

	for _, e := range l.edges {
		if e.GuildID != guildID || e.Recipient != userID {
			continue
		}

		if l.upvote[e.Emoji] {
			score++
		} else {
			score--
		}
	}

	return score
}

func (l *fakeLedger) ScoreBreakdown(
	_ context.Context, guildID, userID snowflake.ID,
) (score, upvotes, downvotes int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.edges {
		if e.GuildID != guildID || e.Recipient != userID {
			continue
		}

		if l.upvote[e.Emoji] {
			upvotes++
		} else {
			downvotes++
		}
	}

	return upvotes - downvotes, upvotes, downvotes, nil
}

func (l *fakeLedger) MessageScore(_ context.Context, guildID, channelID, messageID snowflake.ID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var score int64

	for _, e := range l.edges {
		if e.GuildID != guildID || e.ChannelID != channelID || e.MessageID != messageID {
			continue
		}

		if l.upvote[e.Emoji] {
			score++
		} else {
			score--
		}
	}

	return score, nil
}

func (l *fakeLedger) ReassignVotesTo(
	_ context.Context, guildID, fromUser, toUser snowflake.ID, limit *int64,
) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var moved int64

	// Received copies move before original votes, mirroring the store's
	// ORDER BY is_original
	for _, original := range []bool{false, true} {
		for i := range l.edges {
			e := &l.edges[i]

			if limit != nil && moved >= *limit {
				return moved, nil
			}

			if e.GuildID != guildID || e.Recipient != fromUser || e.IsOriginal != original {
				continue
			}

			if !l.upvote[e.Emoji] {
				continue
			}

			e.Recipient = toUser
			e.IsOriginal = false
			moved++
		}
	}

	return moved, nil
}

func (l *fakeLedger) ReceivedUpvotes(_ context.Context, guildID, userID snowflake.ID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var count int64

	for _, e := range l.edges {
		if e.GuildID == guildID && e.Recipient == userID && l.upvote[e.Emoji] {
			count++
		}
	}

	return count, nil
}

func (l *fakeLedger) Rank(_ context.Context, guildID, userID snowflake.ID) (int64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	scores := make(map[snowflake.ID]int64)

	for _, e := range l.edges {
		if e.GuildID != guildID {
			continue
		}

		if l.upvote[e.Emoji] {
			scores[e.Recipient]++
		} else {
			scores[e.Recipient]--
		}
	}

	own, ok := scores[userID]
	if !ok {
		return 0, false, nil
	}

	rank := int64(1)

	for _, score := range scores {
		if score > own {
			rank++
		}
	}

	return rank, true, nil
}

func (l *fakeLedger) DeleteReceived(_ context.Context, guildID, userID snowflake.ID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var deleted int64

	kept := l.edges[:0]

	for _, e := range l.edges {
		if e.GuildID == guildID && e.Recipient == userID {
			deleted++
			continue
		}

		kept = append(kept, e)
	}

	l.edges = kept

	return deleted, nil
}

func (l *fakeLedger) edgeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.edges)
}

// fakeConfig serves static guild configuration.
type fakeConfig struct {
	emojis      map[types.EmojiKey]bool
	thresholds  []types.ScoreRole
	cooldowns   map[snowflake.ID]int64
	cooldownErr error
	dropChannel snowflake.ID
	hasDrop     bool
	pinScore    *int64
	deleteScore *int64
}

func (c *fakeConfig) ClassifyEmoji(
	_ context.Context, _ snowflake.ID, emoji types.EmojiKey,
) (bool, bool, error) {
	upvote, ok := c.emojis[emoji]
	return upvote, ok, nil
}

func (c *fakeConfig) RoleThresholds(_ context.Context, _ snowflake.ID) ([]types.ScoreRole, error) {
	return c.thresholds, nil
}

func (c *fakeConfig) RoleCooldown(_ context.Context, _, roleID snowflake.ID) (int64, bool, error) {
	if c.cooldownErr != nil {
		return 0, false, c.cooldownErr
	}

	seconds, ok := c.cooldowns[roleID]

	return seconds, ok, nil
}

func (c *fakeConfig) RandomDropChannel(_ context.Context, _ snowflake.ID) (snowflake.ID, bool, error) {
	return c.dropChannel, c.hasDrop, nil
}

func (c *fakeConfig) AutoModThresholds(_ context.Context, _ snowflake.ID) (*int64, *int64, error) {
	return c.pinScore, c.deleteScore, nil
}

// fakeBindings keeps binding rows in memory with conditional slot writes.
type fakeBindings struct {
	mu       sync.Mutex
	bindings []*types.ReactionRoleBinding
}

func (b *fakeBindings) For(
	_ context.Context, guildID, channelID, messageID snowflake.ID, emoji types.EmojiKey,
) ([]types.ReactionRoleBinding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []types.ReactionRoleBinding

	for _, binding := range b.bindings {
		if binding.GuildID == guildID && binding.ChannelID == channelID &&
			binding.MessageID == messageID && binding.Emoji == emoji {
			matched = append(matched, *binding)
		}
	}

	return matched, nil
}

func (b *fakeBindings) ConsumeSlot(_ context.Context, binding *types.ReactionRoleBinding) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := b.find(binding)
	if stored == nil || stored.Slots == nil {
		return true, nil
	}

	if *stored.Slots <= 0 {
		return false, nil
	}

	*stored.Slots--

	return true, nil
}

func (b *fakeBindings) ReleaseSlot(_ context.Context, binding *types.ReactionRoleBinding) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := b.find(binding)
	if stored != nil && stored.Slots != nil {
		*stored.Slots++
	}

	return nil
}

func (b *fakeBindings) find(binding *types.ReactionRoleBinding) *types.ReactionRoleBinding {
	for _, stored := range b.bindings {
		if stored.GuildID == binding.GuildID && stored.ChannelID == binding.ChannelID &&
			stored.MessageID == binding.MessageID && stored.Emoji == binding.Emoji &&
			stored.RoleID == binding.RoleID {
			return stored
		}
	}

	return nil
}

func (b *fakeBindings) slots(binding *types.ReactionRoleBinding) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := b.find(binding)
	if stored == nil || stored.Slots == nil {
		return -1
	}

	return *stored.Slots
}

// fakeRegistry tracks member rows and serves a fixed module status.
type fakeRegistry struct {
	mu      sync.Mutex
	members map[snowflake.ID]struct{}
	status  types.ModuleStatus
}

func newFakeRegistry(status types.ModuleStatus) *fakeRegistry {
	return &fakeRegistry{
		members: make(map[snowflake.ID]struct{}),
		status:  status,
	}
}

func (r *fakeRegistry) EnsureMember(_ context.Context, _, userID snowflake.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members[userID] = struct{}{}

	return nil
}

func (r *fakeRegistry) DeleteMember(_ context.Context, _, userID snowflake.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, userID)

	return nil
}

func (r *fakeRegistry) ModuleStatus(_ context.Context, _ snowflake.ID) (types.ModuleStatus, error) {
	return r.status, nil
}

func (r *fakeRegistry) hasMember(userID snowflake.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.members[userID]

	return ok
}

// fakeMembership tracks role assignments per user.
type fakeMembership struct {
	mu      sync.Mutex
	roles   map[snowflake.ID]map[snowflake.ID]struct{}
	granted []snowflake.ID
	revoked []snowflake.ID
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{roles: make(map[snowflake.ID]map[snowflake.ID]struct{})}
}

func (m *fakeMembership) setRoles(userID snowflake.ID, roleIDs ...snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := make(map[snowflake.ID]struct{}, len(roleIDs))
	for _, roleID := range roleIDs {
		set[roleID] = struct{}{}
	}

	m.roles[userID] = set
}

func (m *fakeMembership) GrantRole(_ context.Context, _, userID, roleID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.roles[userID] == nil {
		m.roles[userID] = make(map[snowflake.ID]struct{})
	}

	m.roles[userID][roleID] = struct{}{}
	m.granted = append(m.granted, roleID)

	return nil
}

func (m *fakeMembership) RevokeRole(_ context.Context, _, userID, roleID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.roles[userID], roleID)
	m.revoked = append(m.revoked, roleID)

	return nil
}

func (m *fakeMembership) CurrentRoles(_ context.Context, _, userID snowflake.ID) ([]snowflake.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roleIDs := make([]snowflake.ID, 0, len(m.roles[userID]))
	for roleID := range m.roles[userID] {
		roleIDs = append(roleIDs, roleID)
	}

	return roleIDs, nil
}

func (m *fakeMembership) holds(userID, roleID snowflake.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.roles[userID][roleID]

	return ok
}

// fakeMessaging records message side effects.
type fakeMessaging struct {
	mu            sync.Mutex
	pinned        map[snowflake.ID]bool
	deleted       map[snowflake.ID]bool
	removed       int
	prompts       []snowflake.ID
	edits         map[snowflake.ID]string
	nextMessageID snowflake.ID
}

func newFakeMessaging() *fakeMessaging {
	return &fakeMessaging{
		pinned:        make(map[snowflake.ID]bool),
		deleted:       make(map[snowflake.ID]bool),
		edits:         make(map[snowflake.ID]string),
		nextMessageID: 9000,
	}
}

func (m *fakeMessaging) Pin(_ context.Context, _, messageID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pinned[messageID] = true

	return nil
}

func (m *fakeMessaging) Delete(_ context.Context, _, messageID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleted[messageID] = true

	return nil
}

func (m *fakeMessaging) IsPinned(_ context.Context, _, messageID snowflake.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pinned[messageID], nil
}

func (m *fakeMessaging) RemoveReaction(
	_ context.Context, _, _ snowflake.ID, _ string, _ snowflake.ID,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removed++

	return nil
}

func (m *fakeMessaging) PostPrompt(
	_ context.Context, _ snowflake.ID, _, _, _ string,
) (snowflake.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextMessageID++
	m.prompts = append(m.prompts, m.nextMessageID)

	return m.nextMessageID, nil
}

func (m *fakeMessaging) EditPrompt(
	_ context.Context, _, messageID snowflake.ID, _, description string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.edits[messageID] = description

	return nil
}

func (m *fakeMessaging) removedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.removed
}

func (m *fakeMessaging) promptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.prompts)
}

func (m *fakeMessaging) lastPrompt() snowflake.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.prompts[len(m.prompts)-1]
}

func (m *fakeMessaging) editOf(messageID snowflake.ID) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.edits[messageID]
}

func (m *fakeMessaging) isDeleted(messageID snowflake.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleted[messageID]
}
