// bots/bots.go
package bots

import (
	"sync"
)

// Identity is one automated opponent. Bot user IDs are negative so
// they can never collide with real account IDs.
type Identity struct {
	UserID      int64
	DisplayName string
}

// Supply hands out automated opponents to fill empty seats. Acquire
// may return fewer identities than requested when the pool runs dry.
type Supply interface {
	AcquireBots(gameKind string, count int) []Identity
	ReleaseBot(bot Identity)
}

var defaultNames = []string{
	"Nova", "Pixel", "Echo", "Rook", "Dash",
	"Milo", "Vega", "Juno", "Onyx", "Zephyr",
}

// Pool is a fixed-capacity in-process supply. Identities are recycled
// when sessions release them.
type Pool struct {
	idle  []Identity
	mutex sync.Mutex
}

// NewPool creates a supply with the given capacity, cycling through
// the default display names.
func NewPool(capacity int) *Pool {
	idle := make([]Identity, 0, capacity)
	for i := 0; i < capacity; i++ {
		idle = append(idle, Identity{
			UserID:      -int64(i + 1),
			DisplayName: defaultNames[i%len(defaultNames)],
		})
	}
	return &Pool{idle: idle}
}

// AcquireBots pops up to count identities. An empty or short result
// means supply exhaustion; the caller decides what that implies.
func (p *Pool) AcquireBots(gameKind string, count int) []Identity {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if count > len(p.idle) {
		count = len(p.idle)
	}
	if count <= 0 {
		return nil
	}

	acquired := make([]Identity, count)
	copy(acquired, p.idle[:count])
	p.idle = p.idle[count:]
	return acquired
}

func (p *Pool) ReleaseBot(bot Identity) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.idle = append(p.idle, bot)
}

// IdleCount reports how many identities remain available.
func (p *Pool) IdleCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.idle)
}
