// game/manager.go
package game

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotParticipant  = errors.New("user is not a participant of this session")
	ErrBadTransition   = errors.New("session state transition not allowed")
)

// Action kinds understood by ValidateAction.
const (
	ActionMove         = "move"
	ActionGetState     = "state"
	ActionStatusUpdate = "status"
)

// ValidationResult is what admission checks hand back to the caller so
// it can surface a human-readable reason without parsing errors.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// Manager owns every live session. It decides nothing about when a
// WAITING session should start; it only exposes the transitions and
// lets the outer auto-start policy drive them.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// CreateSession allocates a WAITING session with the given seats, in
// the order handed in. The seat list is fixed from here on.
func (m *Manager) CreateSession(gameKind string, stake int64, participants []Participant) *Session {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	s := newSession(uuid.New().String(), gameKind, stake, participants)
	m.sessions[s.ID] = s
	return s
}

func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	s, exists := m.sessions[sessionID]
	return s, exists
}

// ValidateAction checks that the session exists, is still running and
// that the user holds a seat. Moves additionally require PLAYING.
func (m *Manager) ValidateAction(sessionID string, userID int64, actionKind string) ValidationResult {
	s, exists := m.GetSession(sessionID)
	if !exists {
		return ValidationResult{Valid: false, Reason: "game not found"}
	}

	status := s.Status()
	if status == StatusFinished {
		return ValidationResult{Valid: false, Reason: "game already finished"}
	}

	if _, ok := s.Participant(userID); !ok {
		return ValidationResult{Valid: false, Reason: "not a participant of this game"}
	}

	if actionKind == ActionMove && status != StatusPlaying {
		return ValidationResult{Valid: false, Reason: "game has not started yet"}
	}

	return ValidationResult{Valid: true}
}

// UpdatePlayerStatus sets a participant's status and returns the
// updated seat for the caller to broadcast.
func (m *Manager) UpdatePlayerStatus(sessionID string, userID int64, status string) (Participant, error) {
	s, exists := m.GetSession(sessionID)
	if !exists {
		return Participant{}, ErrSessionNotFound
	}

	p, ok := s.setPlayerStatus(userID, status)
	if !ok {
		return Participant{}, ErrNotParticipant
	}
	return p, nil
}

// StartSession moves WAITING -> PLAYING. Idempotent against double
// force-start: a second call fails with ErrBadTransition.
func (m *Manager) StartSession(sessionID string) error {
	s, exists := m.GetSession(sessionID)
	if !exists {
		return ErrSessionNotFound
	}
	return s.setStatus(StatusPlaying)
}

// FinishSession moves the session to FINISHED from either live state.
func (m *Manager) FinishSession(sessionID string) error {
	s, exists := m.GetSession(sessionID)
	if !exists {
		return ErrSessionNotFound
	}
	return s.setStatus(StatusFinished)
}

// RemoveSession drops a finished session from the manager.
func (m *Manager) RemoveSession(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

// ActiveCount reports sessions not yet FINISHED, for the monitor gauge.
func (m *Manager) ActiveCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	count := 0
	for _, s := range m.sessions {
		if s.Status() != StatusFinished {
			count++
		}
	}
	return count
}
