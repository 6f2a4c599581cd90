package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/matchmaking"
	"github.com/wfunc/matchserver/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// MatchService is the operator/debug surface: wallet lookups, queue
// statistics and session state, served over net/rpc.
type MatchService struct {
	wallet *services.WalletService
	engine *matchmaking.Engine
	games  *game.Manager
}

func NewMatchService(wallet *services.WalletService, engine *matchmaking.Engine, games *game.Manager) *MatchService {
	return &MatchService{
		wallet: wallet,
		engine: engine,
		games:  games,
	}
}

type GetPlayerArgs struct {
	UserID int64
}

type GetPlayerReply struct {
	Data map[string]interface{}
}

func (ms *MatchService) GetPlayerStats(args *GetPlayerArgs, reply *GetPlayerReply) error {
	data, err := ms.wallet.Stats(args.UserID)
	if err != nil {
		return err
	}
	reply.Data = data
	return nil
}

type QueueStatsArgs struct{}

type QueueStatsReply struct {
	Depth          int
	ActiveSessions int
}

func (ms *MatchService) GetQueueStats(args *QueueStatsArgs, reply *QueueStatsReply) error {
	reply.Depth = ms.engine.QueueDepth()
	reply.ActiveSessions = ms.games.ActiveCount()
	return nil
}

type GetSessionArgs struct {
	SessionID string
}

type GetSessionReply struct {
	Found        bool
	Status       string
	GameKind     string
	Participants []game.Participant
}

func (ms *MatchService) GetSession(args *GetSessionArgs, reply *GetSessionReply) error {
	s, exists := ms.games.GetSession(args.SessionID)
	if !exists {
		reply.Found = false
		return nil
	}
	reply.Found = true
	reply.Status = s.Status().String()
	reply.GameKind = s.GameKind
	reply.Participants = s.Participants()
	return nil
}
