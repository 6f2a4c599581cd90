package rules

import (
	"testing"
)

func TestRegistry_LookupAndPartySize(t *testing.T) {
	r := NewRegistry()
	r.Register(GameKindMemory, NewMemoryEngine())

	if !r.Supported(GameKindMemory) {
		t.Error("Registered kind should be supported")
	}
	if r.Supported("CHESS") {
		t.Error("Unregistered kind should not be supported")
	}

	size, ok := r.PartySize(GameKindMemory)
	if !ok || size != 2 {
		t.Errorf("Expected party size 2, got %d (ok=%v)", size, ok)
	}
	if _, ok := r.PartySize("CHESS"); ok {
		t.Error("Unknown kind should have no party size")
	}
}

func TestMemoryEngine_SessionLifecycle(t *testing.T) {
	e := NewMemoryEngine()

	if _, err := e.GetState("s1"); err != ErrUnknownSession {
		t.Errorf("State of an unstarted session should be unknown, got %v", err)
	}

	if err := e.StartSession("s1"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	state, err := e.ApplyAction("s1", 100, []byte(`{"flip":[1,2]}`))
	if err != nil {
		t.Fatalf("ApplyAction failed: %v", err)
	}
	snapshot, ok := state.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected a state snapshot map, got %T", state)
	}
	moves, ok := snapshot["moves"].([]memoryMove)
	if !ok || len(moves) != 1 {
		t.Fatalf("Expected one recorded move, got %#v", snapshot["moves"])
	}
	if moves[0].UserID != 100 {
		t.Errorf("Move should be attributed to user 100, got %d", moves[0].UserID)
	}

	e.EndSession("s1")
	if _, err := e.GetState("s1"); err != ErrUnknownSession {
		t.Errorf("Ended session should be unknown, got %v", err)
	}
}

func TestMemoryEngine_ActionOnUnknownSession(t *testing.T) {
	e := NewMemoryEngine()

	if _, err := e.ApplyAction("ghost", 100, []byte(`{}`)); err != ErrUnknownSession {
		t.Errorf("Expected ErrUnknownSession, got %v", err)
	}
}
