// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/matchserver/models"
)

// Database 数据库接口
type Database interface {
	EnsurePlayer(userID int64, name string) error
	GetBalance(userID int64) (int64, error)
	// AdjustCoins applies delta atomically. A negative delta that would
	// take the balance below zero fails with ErrInsufficientCoins.
	AdjustCoins(userID int64, delta int64) error
	SaveMatchRecord(record *models.MatchRecord) error
	GetPlayerStats(userID int64) (map[string]interface{}, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound    = fmt.Errorf("record not found")
	ErrInsufficientCoins = fmt.Errorf("insufficient coins")
)
