package engine

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// cooldownKey scopes cooldown entries to a single user within a guild.
type cooldownKey struct {
	guildID snowflake.ID
	userID  snowflake.ID
}

// CooldownGate decides whether a new scoring reaction is accepted for a
// user. Entries live in process memory only and are rebuilt from guild and
// role configuration on first touch.
//
// The map lock is never held across store calls: the effective cooldown is
// computed unlocked and the entry re-checked before arming, so two racing
// events for the same user still gate correctly while unrelated guilds are
// never serialized.
type CooldownGate struct {
	mu              sync.Mutex
	entries         map[cooldownKey]time.Time
	defaultCooldown time.Duration
	config          GuildConfig
	logger          *zap.Logger
	now             func() time.Time
}

// NewCooldownGate creates a new cooldown gate.
func NewCooldownGate(defaultCooldown time.Duration, config GuildConfig, logger *zap.Logger) *CooldownGate {
	return &CooldownGate{
		entries:         make(map[cooldownKey]time.Time),
		defaultCooldown: defaultCooldown,
		config:          config,
		logger:          logger.Named("cooldown_gate"),
		now:             time.Now,
	}
}

// CheckAndArm reports whether the user's cooldown is currently active.
//
// When no cooldown is active, the call arms a new one before reporting
// "not active": the accepted reaction itself starts the window, so the next
// reaction inside it is rejected. An active cooldown is never extended or
// reset by further calls.
func (g *CooldownGate) CheckAndArm(
	ctx context.Context, guildID, userID snowflake.ID, roles []snowflake.ID,
) bool {
	key := cooldownKey{guildID: guildID, userID: userID}

	g.mu.Lock()

	if expiry, ok := g.entries[key]; ok && g.now().Before(expiry) {
		g.mu.Unlock()
		return true
	}

	g.mu.Unlock()

	cooldown := g.effectiveCooldown(ctx, guildID, roles)

	g.mu.Lock()
	defer g.mu.Unlock()

	// A racing event may have armed the cooldown while we were reading
	// the role overrides
	if expiry, ok := g.entries[key]; ok && g.now().Before(expiry) {
		return true
	}

	g.entries[key] = g.now().Add(cooldown)

	return false
}

// effectiveCooldown computes the applicable cooldown duration: the minimum
// of the guild default and any configured role override. Override lookups
// that fail are treated as "no override" rather than aborting the check.
func (g *CooldownGate) effectiveCooldown(
	ctx context.Context, guildID snowflake.ID, roles []snowflake.ID,
) time.Duration {
	cooldown := g.defaultCooldown

	for _, roleID := range roles {
		seconds, ok, err := g.config.RoleCooldown(ctx, guildID, roleID)
		if err != nil {
			g.logger.Warn("Failed to look up role cooldown override",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("roleID", uint64(roleID)),
				zap.Error(err))

			continue
		}

		if ok {
			if override := time.Duration(seconds) * time.Second; override < cooldown {
				cooldown = override
			}
		}
	}

	return cooldown
}
