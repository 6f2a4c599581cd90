// game/session.go
package game

import (
	"sync"
	"time"
)

// SessionStatus 会话生命周期状态，只能单向前进
type SessionStatus int

const (
	StatusWaiting SessionStatus = iota
	StatusPlaying
	StatusFinished
)

func (s SessionStatus) String() string {
	switch s {
	case StatusWaiting:
		return "WAITING"
	case StatusPlaying:
		return "PLAYING"
	case StatusFinished:
		return "FINISHED"
	}
	return "UNKNOWN"
}

// Participant seat statuses reported by clients or set on disconnect.
const (
	PlayerReady        = "ready"
	PlayerNotReady     = "not_ready"
	PlayerPlaying      = "playing"
	PlayerPaused       = "paused"
	PlayerDisconnected = "disconnected"
)

// Participant is one seat in a session. Position and IsBot never
// change after creation; only Status is mutable.
type Participant struct {
	UserID      int64  `json:"playerId"`
	DisplayName string `json:"playerName"`
	Position    int    `json:"position"`
	Status      string `json:"status"`
	IsBot       bool   `json:"isBot"`
}

// Session 一局游戏实例，座位在创建时固定
type Session struct {
	ID           string
	GameKind     string
	Stake        int64
	CreatedAt    time.Time
	participants []Participant
	status       SessionStatus
	statusMutex  sync.RWMutex
	playerMutex  sync.RWMutex
}

// legal forward transitions; everything else is rejected
var transitions = map[SessionStatus][]SessionStatus{
	StatusWaiting: {StatusPlaying, StatusFinished},
	StatusPlaying: {StatusFinished},
}

func newSession(id, gameKind string, stake int64, participants []Participant) *Session {
	seats := make([]Participant, len(participants))
	copy(seats, participants)
	for i := range seats {
		seats[i].Position = i
		if seats[i].Status == "" {
			seats[i].Status = PlayerNotReady
		}
	}
	return &Session{
		ID:           id,
		GameKind:     gameKind,
		Stake:        stake,
		CreatedAt:    time.Now(),
		participants: seats,
		status:       StatusWaiting,
	}
}

func (s *Session) Status() SessionStatus {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.status
}

// setStatus enforces the monotonic state machine.
func (s *Session) setStatus(next SessionStatus) error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	for _, allowed := range transitions[s.status] {
		if allowed == next {
			s.status = next
			return nil
		}
	}
	return ErrBadTransition
}

// Participants returns a copy of the seat list in join order.
func (s *Session) Participants() []Participant {
	s.playerMutex.RLock()
	defer s.playerMutex.RUnlock()

	seats := make([]Participant, len(s.participants))
	copy(seats, s.participants)
	return seats
}

// Participant returns the seat held by userID, if any.
func (s *Session) Participant(userID int64) (Participant, bool) {
	s.playerMutex.RLock()
	defer s.playerMutex.RUnlock()

	for _, p := range s.participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

func (s *Session) setPlayerStatus(userID int64, status string) (Participant, bool) {
	s.playerMutex.Lock()
	defer s.playerMutex.Unlock()

	for i := range s.participants {
		if s.participants[i].UserID == userID {
			s.participants[i].Status = status
			return s.participants[i], true
		}
	}
	return Participant{}, false
}

// HumanUserIDs returns the non-bot seats in join order. Delivery and
// presence bookkeeping only applies to humans.
func (s *Session) HumanUserIDs() []int64 {
	s.playerMutex.RLock()
	defer s.playerMutex.RUnlock()

	var ids []int64
	for _, p := range s.participants {
		if !p.IsBot {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}
