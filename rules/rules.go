// rules/rules.go
package rules

import (
	"errors"
	"sync"
)

var (
	ErrUnsupportedGame = errors.New("unsupported game kind")
	ErrUnknownSession  = errors.New("unknown session")
)

// Engine is one game kind's rules implementation. The orchestration
// core routes validated actions here without interpreting payloads.
type Engine interface {
	// PartySize is the fixed number of seats a session of this kind has.
	PartySize() int
	StartSession(sessionID string) error
	ApplyAction(sessionID string, userID int64, payload []byte) (interface{}, error)
	GetState(sessionID string) (interface{}, error)
	EndSession(sessionID string)
}

// Registry maps gameKind to its Engine. Adding a game kind is one
// Register call; the orchestration core never branches on the kind.
type Registry struct {
	engines map[string]Engine
	mutex   sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

func (r *Registry) Register(gameKind string, engine Engine) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.engines[gameKind] = engine
}

func (r *Registry) Lookup(gameKind string) (Engine, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	engine, exists := r.engines[gameKind]
	return engine, exists
}

// Supported reports whether the kind has a registered engine.
func (r *Registry) Supported(gameKind string) bool {
	_, exists := r.Lookup(gameKind)
	return exists
}

// PartySize resolves the fixed seat count of a game kind. This is the
// catalog view the matchmaking engine validates joins against.
func (r *Registry) PartySize(gameKind string) (int, bool) {
	engine, exists := r.Lookup(gameKind)
	if !exists {
		return 0, false
	}
	return engine.PartySize(), true
}
