package broadcast

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/registry"
)

func init() {
	logger.InitDevelopment()
}

// MockConnection records every event sent through it.
type MockConnection struct {
	mutex  sync.Mutex
	events []string
}

func (m *MockConnection) Send(event string, payload interface{}) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func (m *MockConnection) sent() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.events...)
}

func connect(r *registry.Registry, id string, userID int64) *MockConnection {
	conn := &MockConnection{}
	r.AddConnection(registry.NewEndpoint(id, conn))
	r.Bind(id, userID, "tester")
	return conn
}

func TestEmitToUser_AllDevices(t *testing.T) {
	r := registry.NewRegistry()
	games := game.NewManager()
	b := NewSessionBroadcaster(r, games)

	phone := connect(r, "phone", 100)
	tablet := connect(r, "tablet", 100)

	b.EmitToUser(100, "gameState", map[string]string{"gameId": "g1"})

	if len(phone.sent()) != 1 || len(tablet.sent()) != 1 {
		t.Errorf("Both devices should receive the event, got %d and %d",
			len(phone.sent()), len(tablet.sent()))
	}
}

func TestEmitToUser_OfflineIsNotAnError(t *testing.T) {
	r := registry.NewRegistry()
	b := NewSessionBroadcaster(r, game.NewManager())

	// No endpoints at all; must be a silent no-op.
	b.EmitToUser(999, "queueTimeout", nil)
}

func TestEmitToSession_OnlyHumans(t *testing.T) {
	r := registry.NewRegistry()
	games := game.NewManager()
	b := NewSessionBroadcaster(r, games)

	alice := connect(r, "ep-alice", 100)
	bystander := connect(r, "ep-other", 300)

	s := games.CreateSession("MEMORY", 100, []game.Participant{
		{UserID: 100, DisplayName: "alice"},
		{UserID: -1, DisplayName: "Nova", IsBot: true},
	})

	if err := b.EmitToSession(s.ID, "playerStatusUpdate", nil); err != nil {
		t.Fatalf("EmitToSession failed: %v", err)
	}

	if len(alice.sent()) != 1 {
		t.Errorf("Participant should receive the broadcast, got %d events", len(alice.sent()))
	}
	if len(bystander.sent()) != 0 {
		t.Errorf("Non-participant must not receive the broadcast, got %d events", len(bystander.sent()))
	}

	if err := b.EmitToSession("missing", "gameState", nil); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestJoinChannel_RecordsMembership(t *testing.T) {
	r := registry.NewRegistry()
	b := NewSessionBroadcaster(r, game.NewManager())

	connect(r, "ep1", 100)

	if err := b.JoinChannel("ep1", "game-1"); err != nil {
		t.Fatalf("JoinChannel failed: %v", err)
	}
	if games := r.GetUserGames(100); len(games) != 1 || games[0] != "game-1" {
		t.Errorf("Expected membership in game-1, got %v", games)
	}

	if err := b.JoinChannel("missing", "game-1"); err != ErrEndpointNotFound {
		t.Errorf("Expected ErrEndpointNotFound, got %v", err)
	}
}
