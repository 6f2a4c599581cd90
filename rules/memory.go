// rules/memory.go
package rules

import (
	"encoding/json"
	"sync"
	"time"
)

// GameKindMemory is the two-seat pair-matching game.
const GameKindMemory = "MEMORY"

// MemoryEngine keeps per-session state for the memory game. Move
// payloads are stored opaquely; win conditions live client-side and
// the server only tracks the running state blob.
type MemoryEngine struct {
	states map[string]*memoryState
	mutex  sync.RWMutex
}

type memoryState struct {
	StartedAt time.Time    `json:"startedAt"`
	Moves     []memoryMove `json:"moves"`
	mutex     sync.Mutex
}

type memoryMove struct {
	UserID int64           `json:"playerId"`
	Data   json.RawMessage `json:"moveData"`
	At     time.Time       `json:"at"`
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		states: make(map[string]*memoryState),
	}
}

func (e *MemoryEngine) PartySize() int {
	return 2
}

func (e *MemoryEngine) StartSession(sessionID string) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.states[sessionID] = &memoryState{StartedAt: time.Now()}
	return nil
}

func (e *MemoryEngine) ApplyAction(sessionID string, userID int64, payload []byte) (interface{}, error) {
	e.mutex.RLock()
	state, exists := e.states[sessionID]
	e.mutex.RUnlock()
	if !exists {
		return nil, ErrUnknownSession
	}

	state.mutex.Lock()
	defer state.mutex.Unlock()

	state.Moves = append(state.Moves, memoryMove{
		UserID: userID,
		Data:   append(json.RawMessage(nil), payload...),
		At:     time.Now(),
	})
	return state.snapshot(), nil
}

func (e *MemoryEngine) GetState(sessionID string) (interface{}, error) {
	e.mutex.RLock()
	state, exists := e.states[sessionID]
	e.mutex.RUnlock()
	if !exists {
		return nil, ErrUnknownSession
	}

	state.mutex.Lock()
	defer state.mutex.Unlock()
	return state.snapshot(), nil
}

func (e *MemoryEngine) EndSession(sessionID string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.states, sessionID)
}

// snapshot copies the state under the caller-held lock.
func (s *memoryState) snapshot() map[string]interface{} {
	moves := make([]memoryMove, len(s.Moves))
	copy(moves, s.Moves)
	return map[string]interface{}{
		"startedAt": s.StartedAt,
		"moves":     moves,
	}
}
