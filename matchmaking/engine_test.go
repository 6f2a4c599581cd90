package matchmaking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/matchserver/bots"
	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/timer"
)

func init() {
	logger.InitDevelopment()
}

// mockCatalog is a test double for the Catalog interface.
type mockCatalog map[string]int

func (c mockCatalog) PartySize(gameKind string) (int, bool) {
	n, ok := c[gameKind]
	return n, ok
}

// mockWallet is a test double for the Wallet interface.
type mockWallet struct {
	mutex        sync.Mutex
	debits       []int64
	refunds      []int64
	insufficient bool
	failRefund   bool
}

func (w *mockWallet) Debit(userID int64, amount int64) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.insufficient {
		return ErrInsufficientBalance
	}
	w.debits = append(w.debits, amount)
	return nil
}

func (w *mockWallet) Refund(userID int64, amount int64) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.failRefund {
		return errors.New("ledger unavailable")
	}
	w.refunds = append(w.refunds, amount)
	return nil
}

func (w *mockWallet) refundCount() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return len(w.refunds)
}

type engineFixture struct {
	engine *Engine
	wallet *mockWallet
	supply *bots.Pool
	timers *timer.Manager
	games  *game.Manager
}

func newFixture(t *testing.T, cfg Config, botCapacity int) *engineFixture {
	t.Helper()

	if cfg.BotDeployDelay == 0 {
		cfg.BotDeployDelay = 120 * time.Millisecond
	}
	if cfg.QueueTimeout == 0 {
		cfg.QueueTimeout = 400 * time.Millisecond
	}
	if cfg.RefundAttempts == 0 {
		cfg.RefundAttempts = 2
	}

	wallet := &mockWallet{}
	supply := bots.NewPool(botCapacity)
	timers := timer.NewManager()
	t.Cleanup(timers.Stop)
	games := game.NewManager()

	catalog := mockCatalog{"MEMORY": 2, "QUAD": 4}
	engine := NewEngine(cfg, catalog, games, wallet, supply, timers)

	return &engineFixture{
		engine: engine,
		wallet: wallet,
		supply: supply,
		timers: timers,
		games:  games,
	}
}

func waitEvent(t *testing.T, f *engineFixture, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev := <-f.engine.Events():
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for an engine event")
		return nil
	}
}

func assertNoEvent(t *testing.T, f *engineFixture, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-f.engine.Events():
		t.Fatalf("Expected no event, got %#v", ev)
	case <-time.After(wait):
	}
}

func TestJoinQueue_Validation(t *testing.T) {
	f := newFixture(t, Config{}, 4)

	if res := f.engine.JoinQueue(1, "alice", "CHESS", 2, 50); res.Success || res.Code != CodeInvalidParameters {
		t.Errorf("Expected INVALID_PARAMETERS for unsupported game, got %+v", res)
	}

	if res := f.engine.JoinQueue(1, "alice", "MEMORY", 3, 50); res.Success || res.Code != CodeInvalidParameters {
		t.Errorf("Expected INVALID_PARAMETERS for wrong party size, got %+v", res)
	}

	if res := f.engine.JoinQueue(1, "alice", "MEMORY", 2, -1); res.Success || res.Code != CodeInvalidParameters {
		t.Errorf("Expected INVALID_PARAMETERS for negative stake, got %+v", res)
	}

	if f.engine.QueueDepth() != 0 {
		t.Errorf("Rejected joins must not leave entries behind, depth=%d", f.engine.QueueDepth())
	}
}

func TestJoinQueue_DuplicateEntry(t *testing.T) {
	f := newFixture(t, Config{}, 4)

	if res := f.engine.JoinQueue(1, "alice", "MEMORY", 2, 50); !res.Success {
		t.Fatalf("First join should succeed, got %+v", res)
	}

	// A second join for the same user fails regardless of bucket.
	if res := f.engine.JoinQueue(1, "alice", "QUAD", 4, 10); res.Success || res.Code != CodeDuplicateEntry {
		t.Errorf("Expected DUPLICATE_ENTRY, got %+v", res)
	}

	if f.engine.QueueDepth() != 1 {
		t.Errorf("Expected exactly one entry, depth=%d", f.engine.QueueDepth())
	}
}

func TestJoinQueue_InsufficientBalance(t *testing.T) {
	f := newFixture(t, Config{}, 4)
	f.wallet.insufficient = true

	res := f.engine.JoinQueue(1, "alice", "MEMORY", 2, 50)
	if res.Success || res.Code != CodeInsufficientBalance {
		t.Errorf("Expected INSUFFICIENT_BALANCE, got %+v", res)
	}
	if f.engine.InQueue(1) {
		t.Error("A failed debit must not enqueue the user")
	}
}

func TestHumanMatch_SameBucket(t *testing.T) {
	f := newFixture(t, Config{}, 4)

	if res := f.engine.JoinQueue(1, "alice", "MEMORY", 2, 50); !res.Success {
		t.Fatalf("Join failed: %+v", res)
	}
	if res := f.engine.JoinQueue(2, "bob", "MEMORY", 2, 50); !res.Success {
		t.Fatalf("Join failed: %+v", res)
	}

	ev := waitEvent(t, f, time.Second)
	formed, ok := ev.(MatchFormed)
	if !ok {
		t.Fatalf("Expected MatchFormed, got %#v", ev)
	}

	if formed.BotFilled {
		t.Error("Two humans in the same bucket must match without bots")
	}
	if len(formed.Users) != 2 {
		t.Fatalf("Expected 2 matched users, got %d", len(formed.Users))
	}
	// FIFO: the earlier join takes seat 0.
	if formed.Users[0].UserID != 1 || formed.Users[1].UserID != 2 {
		t.Errorf("Expected FIFO seating [1 2], got [%d %d]", formed.Users[0].UserID, formed.Users[1].UserID)
	}

	if f.engine.QueueDepth() != 0 {
		t.Errorf("Matched entries must leave the queue, depth=%d", f.engine.QueueDepth())
	}

	session, exists := f.games.GetSession(formed.Session.ID)
	if !exists {
		t.Fatal("Session should exist in the manager")
	}
	if session.Status() != game.StatusWaiting {
		t.Errorf("New session should be WAITING, got %v", session.Status())
	}
}

func TestHumanMatch_StakesMustBeEqual(t *testing.T) {
	f := newFixture(t, Config{BotDeployDelay: time.Hour, QueueTimeout: 2 * time.Hour}, 0)

	f.engine.JoinQueue(1, "alice", "MEMORY", 2, 50)
	f.engine.JoinQueue(2, "bob", "MEMORY", 2, 100)

	assertNoEvent(t, f, 150*time.Millisecond)
	if f.engine.QueueDepth() != 2 {
		t.Errorf("Different stakes must not match, depth=%d", f.engine.QueueDepth())
	}
}

func TestBotDeployment_AfterHumanPriorityWindow(t *testing.T) {
	f := newFixture(t, Config{}, 4)

	start := time.Now()
	if res := f.engine.JoinQueue(1, "alice", "MEMORY", 2, 50); !res.Success {
		t.Fatalf("Join failed: %+v", res)
	}

	ev := waitEvent(t, f, time.Second)
	elapsed := time.Since(start)

	formed, ok := ev.(MatchFormed)
	if !ok {
		t.Fatalf("Expected MatchFormed, got %#v", ev)
	}
	if !formed.BotFilled {
		t.Error("A lone human must be matched against a bot")
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("Bot deployed inside the human-priority window after %v", elapsed)
	}
	if elapsed > 350*time.Millisecond {
		t.Errorf("Bot deployment arrived too close to the ceiling: %v", elapsed)
	}

	participants := formed.Session.Participants()
	if len(participants) != 2 {
		t.Fatalf("Expected 2 seats, got %d", len(participants))
	}
	if participants[0].IsBot || !participants[1].IsBot {
		t.Errorf("Human takes seat 0, bot seat 1; got isBot=[%v %v]", participants[0].IsBot, participants[1].IsBot)
	}

	if f.supply.IdleCount() != 3 {
		t.Errorf("Exactly one bot should be checked out, idle=%d", f.supply.IdleCount())
	}
}

func TestQueueTimeout_SupplyExhausted(t *testing.T) {
	f := newFixture(t, Config{}, 0)

	if res := f.engine.JoinQueue(1, "alice", "MEMORY", 2, 50); !res.Success {
		t.Fatalf("Join failed: %+v", res)
	}

	ev := waitEvent(t, f, 2*time.Second)
	timeout, ok := ev.(QueueTimeout)
	if !ok {
		t.Fatalf("Expected QueueTimeout, got %#v", ev)
	}

	if timeout.UserID != 1 || timeout.EntryStake != 50 {
		t.Errorf("Unexpected timeout payload: %+v", timeout)
	}
	if !timeout.Refunded {
		t.Error("The stake must be refunded at the ceiling")
	}
	if f.wallet.refundCount() != 1 {
		t.Errorf("Refund must happen exactly once, got %d", f.wallet.refundCount())
	}
	if f.engine.InQueue(1) {
		t.Error("No entry may survive past the ceiling")
	}
}

func TestQueueTimeout_RefundFailureIsReported(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	f.wallet.failRefund = true

	f.engine.JoinQueue(1, "alice", "MEMORY", 2, 50)

	ev := waitEvent(t, f, 2*time.Second)
	timeout, ok := ev.(QueueTimeout)
	if !ok {
		t.Fatalf("Expected QueueTimeout, got %#v", ev)
	}
	if timeout.Refunded {
		t.Error("A failed refund must not be reported as refunded")
	}
}

func TestLeaveQueue_Idempotent(t *testing.T) {
	f := newFixture(t, Config{BotDeployDelay: time.Hour, QueueTimeout: 2 * time.Hour}, 0)

	f.engine.JoinQueue(1, "alice", "MEMORY", 2, 50)

	if !f.engine.LeaveQueue(1) {
		t.Error("First leave should remove the entry")
	}
	if f.engine.LeaveQueue(1) {
		t.Error("Second leave should be a no-op")
	}
	if f.engine.InQueue(1) {
		t.Error("Entry should be gone after leave")
	}
	if f.wallet.refundCount() != 1 {
		t.Errorf("Leave must refund the stake exactly once, got %d refunds", f.wallet.refundCount())
	}
}

func TestLeaveQueue_CancelsStagedTimers(t *testing.T) {
	f := newFixture(t, Config{BotDeployDelay: 100 * time.Millisecond, QueueTimeout: 200 * time.Millisecond}, 4)

	f.engine.JoinQueue(1, "alice", "MEMORY", 2, 50)
	f.engine.LeaveQueue(1)

	// Past both stages: neither a bot match nor a timeout may fire.
	assertNoEvent(t, f, 400*time.Millisecond)
	if f.supply.IdleCount() != 4 {
		t.Errorf("No bot may be deployed for a cancelled entry, idle=%d", f.supply.IdleCount())
	}
}

func TestMatchFormation_ExactlyOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t, Config{BotDeployDelay: time.Hour, QueueTimeout: 2 * time.Hour}, 0)

	const users = 20

	var wg sync.WaitGroup
	for i := 1; i <= users; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			if res := f.engine.JoinQueue(userID, "player", "MEMORY", 2, 50); !res.Success {
				t.Errorf("Join of user %d failed: %+v", userID, res)
			}
		}(int64(i))
	}
	wg.Wait()

	seen := make(map[int64]int)
	for i := 0; i < users/2; i++ {
		ev := waitEvent(t, f, time.Second)
		formed, ok := ev.(MatchFormed)
		if !ok {
			t.Fatalf("Expected MatchFormed, got %#v", ev)
		}
		if len(formed.Users) != 2 {
			t.Fatalf("Expected 2 users per match, got %d", len(formed.Users))
		}
		for _, u := range formed.Users {
			seen[u.UserID]++
		}
	}

	for userID, count := range seen {
		if count != 1 {
			t.Errorf("User %d was matched %d times", userID, count)
		}
	}
	if len(seen) != users {
		t.Errorf("Expected every one of %d users matched, got %d", users, len(seen))
	}
	if f.engine.QueueDepth() != 0 {
		t.Errorf("Queue should drain completely, depth=%d", f.engine.QueueDepth())
	}
	assertNoEvent(t, f, 100*time.Millisecond)
}

func TestBotStage_HumansPresentFillRemainingSeats(t *testing.T) {
	f := newFixture(t, Config{BotDeployDelay: 100 * time.Millisecond, QueueTimeout: 500 * time.Millisecond}, 8)

	// Two humans in a four-seat game: stage two should top up with
	// exactly two bots, not four.
	f.engine.JoinQueue(1, "alice", "QUAD", 4, 0)
	f.engine.JoinQueue(2, "bob", "QUAD", 4, 0)

	ev := waitEvent(t, f, time.Second)
	formed, ok := ev.(MatchFormed)
	if !ok {
		t.Fatalf("Expected MatchFormed, got %#v", ev)
	}

	if len(formed.Users) != 2 {
		t.Errorf("Both humans belong in the match, got %d", len(formed.Users))
	}
	participants := formed.Session.Participants()
	botCount := 0
	for _, p := range participants {
		if p.IsBot {
			botCount++
		}
	}
	if botCount != 2 {
		t.Errorf("Expected 2 bot seats, got %d", botCount)
	}
	if f.supply.IdleCount() != 6 {
		t.Errorf("Expected 6 idle bots after deployment, got %d", f.supply.IdleCount())
	}
}
