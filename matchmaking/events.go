// matchmaking/events.go
package matchmaking

import (
	"github.com/wfunc/matchserver/game"
)

// Event is one typed notification from the engine. Consumers receive
// them on Events() and switch on the concrete type; each match or
// timeout produces exactly one event.
type Event interface {
	isEvent()
}

// MatchedUser is one human participant of a formed match, in seat
// order, carrying what delivery needs.
type MatchedUser struct {
	UserID      int64
	DisplayName string
	Seat        int
}

// MatchFormed fires once per created session, before any transport
// delivery is attempted.
type MatchFormed struct {
	Session   *game.Session
	Users     []MatchedUser
	BotFilled bool
}

func (MatchFormed) isEvent() {}

// QueueTimeout fires when the guaranteed-match ceiling could not fill
// a session and the entry was removed instead.
type QueueTimeout struct {
	UserID     int64
	EntryStake int64
	Refunded   bool
}

func (QueueTimeout) isEvent() {}
