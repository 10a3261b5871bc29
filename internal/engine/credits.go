package engine

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// CreditThrottle limits command execution per user with a leaky bucket
// keyed by wall-clock seconds. Each command adds its cost to the user's
// balance; because the balance is an epoch timestamp it decays on its own
// without a background sweep.
type CreditThrottle struct {
	mu      sync.Mutex
	credits map[snowflake.ID]int64
	margin  int64
	now     func() time.Time
}

// NewCreditThrottle creates a new credit throttle. The margin is the number
// of banked seconds a user may accumulate before commands are blocked.
func NewCreditThrottle(margin int64) *CreditThrottle {
	return &CreditThrottle{
		credits: make(map[snowflake.ID]int64),
		margin:  margin,
		now:     time.Now,
	}
}

// Spend charges a command's cost in seconds against a user's balance.
//
// The new balance is clamped to now+2*margin so a user who never trips the
// cap cannot bank unbounded debt. Exceeded is true when the balance has
// outrun the margin; remaining is then the number of seconds until the
// balance decays back under it.
func (t *CreditThrottle) Spend(userID snowflake.ID, cost int64) (remaining int64, exceeded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lowerBound := t.now().Unix()

	balance, ok := t.credits[userID]
	if !ok || balance < lowerBound {
		balance = lowerBound
	}

	balance += cost
	if cap := lowerBound + 2*t.margin; balance > cap {
		balance = cap
	}

	t.credits[userID] = balance

	remaining = balance - lowerBound - t.margin
	if remaining > 0 {
		return remaining, true
	}

	return 0, false
}
