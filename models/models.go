// models/models.go
package models

import (
	"time"
)

// PlayerData 玩家钱包数据
type PlayerData struct {
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Coins     int64     `json:"coins"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchRecord 对局记录
type MatchRecord struct {
	SessionID string       `json:"session_id"`
	GameKind  string       `json:"game_kind"`
	Stake     int64        `json:"stake"`
	BotFilled bool         `json:"bot_filled"`
	Players   []PlayerInfo `json:"players"`
	CreatedAt time.Time    `json:"created_at"`
}

// PlayerInfo 对局记录里的一个座位
type PlayerInfo struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Seat   int    `json:"seat"`
	IsBot  bool   `json:"is_bot"`
}
