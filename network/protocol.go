package network

import (
	"encoding/json"
)

// 入站事件
const (
	EventHello              = "hello"
	EventJoinMatchmaking    = "joinMatchmaking"
	EventLeaveMatchmaking   = "leaveMatchmaking"
	EventMakeMove           = "makeMove"
	EventGetGameState       = "getGameState"
	EventUpdatePlayerStatus = "updatePlayerStatus"
)

// 出站事件
const (
	EventMatchmakingStatus  = "matchmakingStatus"
	EventMatchFound         = "matchFound"
	EventQueueTimeout       = "queueTimeout"
	EventGameState          = "gameState"
	EventPlayerStatusUpdate = "playerStatusUpdate"
	EventMatchmakingError   = "matchmakingError"
)

// JoinMatchmakingReq mirrors the client join payload.
type JoinMatchmakingReq struct {
	GameType   string `json:"gameType"`
	MaxPlayers int    `json:"maxPlayers"`
	EntryFee   int64  `json:"entryFee"`
}

type HelloReq struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
}

type MakeMoveReq struct {
	GameID   string          `json:"gameId"`
	MoveData json.RawMessage `json:"moveData"`
}

type GetGameStateReq struct {
	GameID string `json:"gameId"`
}

type UpdatePlayerStatusReq struct {
	GameID string `json:"gameId"`
	Status string `json:"status"`
}

// Outbound payloads. Field names are part of the client contract.

type MatchmakingStatusMsg struct {
	Status     string `json:"status"`
	GameType   string `json:"gameType"`
	MaxPlayers int    `json:"maxPlayers"`
	EntryFee   int64  `json:"entryFee"`
	PlayerName string `json:"playerName"`
	PlayerID   int64  `json:"playerId"`
}

type MatchFoundMsg struct {
	GameID          string      `json:"gameId"`
	GameType        string      `json:"gameType"`
	Players         interface{} `json:"players"`
	YourPlayerID    int64       `json:"yourPlayerId"`
	YourPlayerIndex int         `json:"yourPlayerIndex"`
}

type QueueTimeoutMsg struct {
	Message  string `json:"message"`
	Refunded bool   `json:"refunded"`
	EntryFee int64  `json:"entryFee"`
}

type GameStateMsg struct {
	GameID string      `json:"gameId"`
	State  interface{} `json:"state"`
}

type PlayerStatusUpdateMsg struct {
	PlayerID  int64  `json:"playerId"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

type MatchmakingErrorMsg struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
