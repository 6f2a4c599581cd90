package bots

import (
	"testing"
)

func TestPool_AcquireAndRelease(t *testing.T) {
	p := NewPool(3)

	acquired := p.AcquireBots("MEMORY", 2)
	if len(acquired) != 2 {
		t.Fatalf("Expected 2 bots, got %d", len(acquired))
	}
	if p.IdleCount() != 1 {
		t.Errorf("Expected 1 idle bot, got %d", p.IdleCount())
	}

	// Bot IDs are negative so they never collide with real users.
	for _, b := range acquired {
		if b.UserID >= 0 {
			t.Errorf("Bot user ID should be negative, got %d", b.UserID)
		}
		if b.DisplayName == "" {
			t.Error("Bot should carry a display name")
		}
	}

	for _, b := range acquired {
		p.ReleaseBot(b)
	}
	if p.IdleCount() != 3 {
		t.Errorf("Released bots should return to the pool, idle=%d", p.IdleCount())
	}
}

func TestPool_ShortSupply(t *testing.T) {
	p := NewPool(1)

	acquired := p.AcquireBots("MEMORY", 3)
	if len(acquired) != 1 {
		t.Errorf("A short pool returns what it has, got %d", len(acquired))
	}
	if more := p.AcquireBots("MEMORY", 1); len(more) != 0 {
		t.Errorf("An empty pool returns nothing, got %d", len(more))
	}
}
