package alerting

import (
	"sync"
	"time"
)

// DefaultCooldown is how long a fired rule stays quiet.
const DefaultCooldown = 15 * time.Minute

// History remembers when each rule last fired. It is safe for concurrent use.
type History struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
}

// NewHistory creates an empty history. A non-positive cooldown uses DefaultCooldown.
func NewHistory(cooldown time.Duration) *History {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &History{cooldown: cooldown, last: make(map[string]time.Time)}
}

// Allow reports whether ruleID may fire at now and, if so, records now as its last firing.
func (h *History) Allow(ruleID string, now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if last, ok := h.last[ruleID]; ok && now.Sub(last) < h.cooldown {
		return false
	}
	h.last[ruleID] = now
	return true
}

// LastFired returns when ruleID last fired.
func (h *History) LastFired(ruleID string) (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.last[ruleID]
	return t, ok
}

func (h *History) Cooldown() time.Duration {
	return h.cooldown
}
