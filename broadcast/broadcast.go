// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/registry"
)

var (
	ErrEndpointNotFound = errors.New("endpoint not found")
	ErrSessionNotFound  = errors.New("session not found")
)

// Broadcaster 传输投递接口。投递失败只记录日志，绝不回滚队列或会话状态
type Broadcaster interface {
	Emit(endpointID, event string, payload interface{}) error
	EmitToUser(userID int64, event string, payload interface{})
	EmitToSession(sessionID, event string, payload interface{}) error
	JoinChannel(endpointID, sessionID string) error
}

// SessionBroadcaster delivers named events through the connection
// registry to every live endpoint of the addressed users.
type SessionBroadcaster struct {
	registry *registry.Registry
	games    *game.Manager
}

func NewSessionBroadcaster(reg *registry.Registry, games *game.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{
		registry: reg,
		games:    games,
	}
}

func (b *SessionBroadcaster) Emit(endpointID, event string, payload interface{}) error {
	e, exists := b.registry.Get(endpointID)
	if !exists {
		return ErrEndpointNotFound
	}
	if err := e.Send(event, payload); err != nil {
		logger.Log.Warnf("delivery of %s to endpoint %s failed: %v", event, endpointID, err)
	}
	return nil
}

// EmitToUser pushes to every device the user has connected. Zero live
// endpoints is not an error; the user catches up on reconnect.
func (b *SessionBroadcaster) EmitToUser(userID int64, event string, payload interface{}) {
	for _, e := range b.registry.GetUserSockets(userID) {
		if err := e.Send(event, payload); err != nil {
			logger.Log.Warnf("delivery of %s to user %d endpoint %s failed: %v", event, userID, e.ID, err)
		}
	}
}

// EmitToSession pushes to the currently connected human participants
// of the session. Bots have no transport.
func (b *SessionBroadcaster) EmitToSession(sessionID, event string, payload interface{}) error {
	s, exists := b.games.GetSession(sessionID)
	if !exists {
		return ErrSessionNotFound
	}

	for _, userID := range s.HumanUserIDs() {
		b.EmitToUser(userID, event, payload)
	}
	return nil
}

// JoinChannel records the endpoint's user as a member of the session's
// delivery group.
func (b *SessionBroadcaster) JoinChannel(endpointID, sessionID string) error {
	e, exists := b.registry.Get(endpointID)
	if !exists {
		return ErrEndpointNotFound
	}
	b.registry.AddUserToGame(e.UserID, sessionID)
	return nil
}
