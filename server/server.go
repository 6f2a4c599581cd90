package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/matchserver/bots"
	"github.com/wfunc/matchserver/broadcast"
	"github.com/wfunc/matchserver/config"
	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/matchmaking"
	"github.com/wfunc/matchserver/models"
	"github.com/wfunc/matchserver/monitor"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/persistence"
	"github.com/wfunc/matchserver/ratelimit"
	"github.com/wfunc/matchserver/registry"
	matchserver_rpc "github.com/wfunc/matchserver/rpc"
	"github.com/wfunc/matchserver/rules"
	"github.com/wfunc/matchserver/services"
	"github.com/wfunc/matchserver/timer"
)

// CodeRateLimited is surfaced with matchmakingError so clients can
// back off instead of retrying immediately.
const CodeRateLimited = "RATE_LIMITED"

const botPoolCapacity = 64

// GameServer wires the orchestration core: registry, session manager,
// queue engine and rate limiter, plus the transport and collaborators
// around them.
type GameServer struct {
	cfg      *config.Config
	upgrader websocket.Upgrader

	registry    *registry.Registry
	games       *game.Manager
	engine      *matchmaking.Engine
	limiter     *ratelimit.Limiter
	broadcaster broadcast.Broadcaster
	rules       *rules.Registry
	supply      *bots.Pool
	wallet      *services.WalletService
	timers      *timer.Manager
	monitor     *monitor.Monitor
	rpcServer   *matchserver_rpc.Server
	db          persistence.Database

	shutdownChan chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	s := &GameServer{
		cfg:          cfg,
		db:           db,
		registry:     registry.NewRegistry(),
		games:        game.NewManager(),
		limiter:      ratelimit.NewLimiter(),
		rules:        rules.NewRegistry(),
		supply:       bots.NewPool(botPoolCapacity),
		wallet:       services.NewWalletService(db),
		timers:       timer.NewManager(),
		monitor:      monitor.NewMonitor("matchserver"),
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 注册游戏规则引擎；新增游戏只需在这里挂一行
	s.rules.Register(rules.GameKindMemory, rules.NewMemoryEngine())

	s.broadcaster = broadcast.NewSessionBroadcaster(s.registry, s.games)

	s.engine = matchmaking.NewEngine(
		matchmaking.Config{
			BotDeployDelay: cfg.Matchmaking.BotDeployDelay,
			QueueTimeout:   cfg.Matchmaking.QueueTimeout,
		},
		s.rules,
		s.games,
		s.wallet,
		s.supply,
		s.timers,
	)

	rpcServer, err := matchserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	matchService := matchserver_rpc.NewMatchService(s.wallet, s.engine, s.games)
	rpc.Register(matchService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	go s.consumeEngineEvents()

	s.monitor.StartServer(s.cfg.Server.MetricsAddress)

	// 周期清理: registry/limiter sweep + gauges
	s.timers.Schedule(s.cfg.Matchmaking.CleanupInterval, s.cfg.Matchmaking.CleanupInterval, s.runCleanupSweep)

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Match server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

func (s *GameServer) runCleanupSweep() {
	if removed := s.registry.Cleanup(); removed > 0 {
		logger.Log.Infof("Registry sweep removed %d dead endpoints", removed)
	}
	s.limiter.Cleanup()

	s.monitor.SetOnlinePlayers(s.registry.OnlineCount())
	s.monitor.SetQueueDepth(s.engine.QueueDepth())
	s.monitor.SetActiveSessions(s.games.ActiveCount())
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	endpoint := registry.NewEndpoint(uuid.New().String(), wsConn)
	s.registry.AddConnection(endpoint)

	logger.Log.Infof("New connection from %s, endpoint ID: %s", wsConn.RemoteAddr(), endpoint.ID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, endpoint ID: %s", wsConn.RemoteAddr(), endpoint.ID)
		s.handleDisconnect(endpoint)
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(endpoint, packet)
		}
	}
}

func (s *GameServer) handlePacket(endpoint *registry.Endpoint, packet *network.Packet) {
	started := time.Now()
	s.monitor.IncMessagesReceived()
	endpoint.Touch()

	switch packet.Event {
	case network.EventHello:
		s.handleHello(endpoint, packet)
	case network.EventJoinMatchmaking:
		s.handleJoinMatchmaking(endpoint, packet)
	case network.EventLeaveMatchmaking:
		s.handleLeaveMatchmaking(endpoint)
	case network.EventMakeMove:
		s.handleMakeMove(endpoint, packet)
	case network.EventGetGameState:
		s.handleGetGameState(endpoint, packet)
	case network.EventUpdatePlayerStatus:
		s.handleUpdatePlayerStatus(endpoint, packet)
	default:
		logger.Log.Infof("Unknown event %q from endpoint %s", packet.Event, endpoint.ID)
	}

	s.monitor.ObserveMessageLatency(time.Since(started))
}

// allow gates one event behind the per-user fixed-window limiter.
func (s *GameServer) allow(endpoint *registry.Endpoint, event string, limit config.LimitConfig) bool {
	if s.limiter.Check(endpoint.UserID, event, limit.MaxRequests, limit.Window) {
		return true
	}
	s.monitor.IncRateLimited()
	s.emitError(endpoint, "too many requests, slow down", CodeRateLimited)
	return false
}

func (s *GameServer) emitError(endpoint *registry.Endpoint, message, code string) {
	if err := endpoint.Send(network.EventMatchmakingError, network.MatchmakingErrorMsg{
		Message: message,
		Code:    code,
	}); err != nil {
		logger.Log.Warnf("error delivery to endpoint %s failed: %v", endpoint.ID, err)
	}
}

func (s *GameServer) handleHello(endpoint *registry.Endpoint, packet *network.Packet) {
	var req network.HelloReq
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.UserID == 0 {
		s.emitError(endpoint, "invalid hello payload", matchmaking.CodeInvalidParameters)
		return
	}

	s.registry.Bind(endpoint.ID, req.UserID, req.Name)

	if err := s.db.EnsurePlayer(req.UserID, req.Name); err != nil {
		logger.Log.Errorf("ensure player %d failed: %v", req.UserID, err)
	}

	logger.Log.Infof("Endpoint %s bound to user %d (%s)", endpoint.ID, req.UserID, req.Name)
}

func (s *GameServer) handleJoinMatchmaking(endpoint *registry.Endpoint, packet *network.Packet) {
	if endpoint.UserID == 0 {
		s.emitError(endpoint, "say hello first", matchmaking.CodeInvalidParameters)
		return
	}
	if !s.allow(endpoint, network.EventJoinMatchmaking, s.cfg.Limits.JoinMatchmaking) {
		return
	}

	var req network.JoinMatchmakingReq
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.emitError(endpoint, "invalid join payload", matchmaking.CodeInvalidParameters)
		return
	}

	result := s.engine.JoinQueue(endpoint.UserID, endpoint.Name, req.GameType, req.MaxPlayers, req.EntryFee)
	if !result.Success {
		s.emitError(endpoint, result.Message, result.Code)
		return
	}

	endpoint.Send(network.EventMatchmakingStatus, network.MatchmakingStatusMsg{
		Status:     "searching",
		GameType:   req.GameType,
		MaxPlayers: req.MaxPlayers,
		EntryFee:   req.EntryFee,
		PlayerName: endpoint.Name,
		PlayerID:   endpoint.UserID,
	})
}

func (s *GameServer) handleLeaveMatchmaking(endpoint *registry.Endpoint) {
	if endpoint.UserID == 0 {
		return
	}

	if !s.engine.LeaveQueue(endpoint.UserID) {
		// The match may have formed before the leave arrived; a user
		// already seated in a session is not in the queue anymore.
		if len(s.registry.GetUserGames(endpoint.UserID)) > 0 {
			s.emitError(endpoint, "already matched into a game", matchmaking.CodeNotInQueue)
			return
		}
	}

	// Leaving is idempotent; a repeated leave still gets the ack.
	endpoint.Send(network.EventMatchmakingStatus, network.MatchmakingStatusMsg{
		Status:     "cancelled",
		PlayerName: endpoint.Name,
		PlayerID:   endpoint.UserID,
	})
}

func (s *GameServer) handleMakeMove(endpoint *registry.Endpoint, packet *network.Packet) {
	if !s.allow(endpoint, network.EventMakeMove, s.cfg.Limits.MakeMove) {
		return
	}

	var req network.MakeMoveReq
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.emitError(endpoint, "invalid move payload", matchmaking.CodeInvalidParameters)
		return
	}

	if v := s.games.ValidateAction(req.GameID, endpoint.UserID, game.ActionMove); !v.Valid {
		s.emitError(endpoint, v.Reason, "")
		return
	}

	session, _ := s.games.GetSession(req.GameID)
	engine, exists := s.rules.Lookup(session.GameKind)
	if !exists {
		s.emitError(endpoint, "unsupported game type", matchmaking.CodeInvalidParameters)
		return
	}

	state, err := engine.ApplyAction(req.GameID, endpoint.UserID, req.MoveData)
	if err != nil {
		s.emitError(endpoint, err.Error(), "")
		return
	}

	s.broadcaster.EmitToSession(req.GameID, network.EventGameState, network.GameStateMsg{
		GameID: req.GameID,
		State:  state,
	})
}

func (s *GameServer) handleGetGameState(endpoint *registry.Endpoint, packet *network.Packet) {
	if !s.allow(endpoint, network.EventGetGameState, s.cfg.Limits.GetGameState) {
		return
	}

	var req network.GetGameStateReq
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.emitError(endpoint, "invalid state request", matchmaking.CodeInvalidParameters)
		return
	}

	if v := s.games.ValidateAction(req.GameID, endpoint.UserID, game.ActionGetState); !v.Valid {
		s.emitError(endpoint, v.Reason, "")
		return
	}

	session, _ := s.games.GetSession(req.GameID)
	engine, exists := s.rules.Lookup(session.GameKind)
	if !exists {
		s.emitError(endpoint, "unsupported game type", matchmaking.CodeInvalidParameters)
		return
	}

	state, err := engine.GetState(req.GameID)
	if err != nil {
		s.emitError(endpoint, err.Error(), "")
		return
	}

	endpoint.Send(network.EventGameState, network.GameStateMsg{
		GameID: req.GameID,
		State:  state,
	})
}

func (s *GameServer) handleUpdatePlayerStatus(endpoint *registry.Endpoint, packet *network.Packet) {
	if !s.allow(endpoint, network.EventUpdatePlayerStatus, s.cfg.Limits.PlayerStatus) {
		return
	}

	var req network.UpdatePlayerStatusReq
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.emitError(endpoint, "invalid status payload", matchmaking.CodeInvalidParameters)
		return
	}

	p, err := s.games.UpdatePlayerStatus(req.GameID, endpoint.UserID, req.Status)
	if err != nil {
		s.emitError(endpoint, "not a participant of this game", "NOT_PARTICIPANT")
		return
	}

	s.broadcaster.EmitToSession(req.GameID, network.EventPlayerStatusUpdate, network.PlayerStatusUpdateMsg{
		PlayerID:  p.UserID,
		Status:    p.Status,
		Timestamp: time.Now().UnixMilli(),
	})
}

// consumeEngineEvents drains the queue engine's typed event channel.
// Session membership is registered before any matchFound delivery so
// reconnecting clients can always be routed.
func (s *GameServer) consumeEngineEvents() {
	for {
		select {
		case <-s.shutdownChan:
			return
		case ev := <-s.engine.Events():
			switch e := ev.(type) {
			case matchmaking.MatchFormed:
				s.onMatchFormed(e)
			case matchmaking.QueueTimeout:
				s.onQueueTimeout(e)
			}
		}
	}
}

func (s *GameServer) onMatchFormed(e matchmaking.MatchFormed) {
	session := e.Session
	s.monitor.IncMatchesFormed(e.BotFilled)
	logger.Log.Infof("Match formed: session %s (%s), %d humans, botFilled=%v",
		session.ID, session.GameKind, len(e.Users), e.BotFilled)

	for _, u := range e.Users {
		s.registry.AddUserToGame(u.UserID, session.ID)
	}

	// Force-start: a WAITING session never outlives the grace window,
	// whether or not every client confirmed its channel join.
	s.timers.Schedule(s.cfg.Matchmaking.StartGrace, 0, func() {
		s.forceStart(session.ID)
	})

	participants := session.Participants()
	for _, u := range e.Users {
		s.broadcaster.EmitToUser(u.UserID, network.EventMatchFound, network.MatchFoundMsg{
			GameID:          session.ID,
			GameType:        session.GameKind,
			Players:         participants,
			YourPlayerID:    u.UserID,
			YourPlayerIndex: u.Seat,
		})
	}
}

func (s *GameServer) onQueueTimeout(e matchmaking.QueueTimeout) {
	s.monitor.IncQueueTimeouts()
	logger.Log.Warnf("Queue timeout for user %d, refunded=%v", e.UserID, e.Refunded)

	s.broadcaster.EmitToUser(e.UserID, network.EventQueueTimeout, network.QueueTimeoutMsg{
		Message:  "no opponents available, please try again",
		Refunded: e.Refunded,
		EntryFee: e.EntryStake,
	})
}

// forceStart moves a still-WAITING session to PLAYING. Absence of a
// transport acknowledgment is not absence of the participant.
func (s *GameServer) forceStart(sessionID string) {
	session, exists := s.games.GetSession(sessionID)
	if !exists || session.Status() != game.StatusWaiting {
		return
	}

	if err := s.games.StartSession(sessionID); err != nil {
		// Lost the race against another transition; nothing to do.
		return
	}

	engine, ok := s.rules.Lookup(session.GameKind)
	if !ok {
		logger.Log.Errorf("No rules engine for session %s kind %s", sessionID, session.GameKind)
		return
	}
	if err := engine.StartSession(sessionID); err != nil {
		logger.Log.Errorf("Rules engine failed to start session %s: %v", sessionID, err)
		return
	}

	logger.Log.Infof("Session %s started", sessionID)

	state, err := engine.GetState(sessionID)
	if err == nil {
		s.broadcaster.EmitToSession(sessionID, network.EventGameState, network.GameStateMsg{
			GameID: sessionID,
			State:  state,
		})
	}
}

func (s *GameServer) handleDisconnect(endpoint *registry.Endpoint) {
	removed, offline := s.registry.RemoveConnection(endpoint.ID)
	if removed == nil || removed.UserID == 0 {
		return
	}
	userID := removed.UserID

	if !offline {
		// Another device is still connected; presence is unchanged.
		return
	}

	s.limiter.RemoveUser(userID)

	// A queued entry must not outlive its user's last connection; the
	// staged timers are cancelled with it.
	s.engine.LeaveQueue(userID)

	// Session membership survives the disconnect. Tell the remaining
	// participants, then reap sessions nobody human is left in.
	for _, sessionID := range s.registry.GetUserGames(userID) {
		p, err := s.games.UpdatePlayerStatus(sessionID, userID, game.PlayerDisconnected)
		if err != nil {
			continue
		}
		s.broadcaster.EmitToSession(sessionID, network.EventPlayerStatusUpdate, network.PlayerStatusUpdateMsg{
			PlayerID:  p.UserID,
			Status:    p.Status,
			Timestamp: time.Now().UnixMilli(),
		})
		s.reapIfAbandoned(sessionID)
	}
}

// reapIfAbandoned finishes a session whose human seats are all
// offline, releases its bots and records the match.
func (s *GameServer) reapIfAbandoned(sessionID string) {
	session, exists := s.games.GetSession(sessionID)
	if !exists || session.Status() == game.StatusFinished {
		return
	}

	for _, userID := range session.HumanUserIDs() {
		if s.registry.IsUserOnline(userID) {
			return
		}
	}

	if err := s.games.FinishSession(sessionID); err != nil {
		return
	}
	s.cleanupSession(session)
}

// cleanupSession tears down a FINISHED session's collaborator state.
func (s *GameServer) cleanupSession(session *game.Session) {
	if engine, ok := s.rules.Lookup(session.GameKind); ok {
		engine.EndSession(session.ID)
	}

	record := &models.MatchRecord{
		SessionID: session.ID,
		GameKind:  session.GameKind,
		Stake:     session.Stake,
		BotFilled: false,
		CreatedAt: session.CreatedAt,
	}
	for _, p := range session.Participants() {
		if p.IsBot {
			record.BotFilled = true
			s.supply.ReleaseBot(bots.Identity{UserID: p.UserID, DisplayName: p.DisplayName})
		}
		record.Players = append(record.Players, models.PlayerInfo{
			UserID: p.UserID,
			Name:   p.DisplayName,
			Seat:   p.Position,
			IsBot:  p.IsBot,
		})
		if !p.IsBot {
			s.registry.RemoveUserFromGame(p.UserID, session.ID)
		}
	}

	if err := s.db.SaveMatchRecord(record); err != nil {
		logger.Log.Errorf("Failed to save match record for session %s: %v", session.ID, err)
	}

	s.games.RemoveSession(session.ID)
}
