// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormPlayer 玩家模型
type GormPlayer struct {
	gorm.Model
	UserID int64  `gorm:"uniqueIndex;not null"`
	Name   string `gorm:"not null"`
	Coins  int64  `gorm:"default:1000"`
}

// GormMatchRecord 对局记录模型
type GormMatchRecord struct {
	gorm.Model
	SessionID string                 `gorm:"uniqueIndex;not null"`
	GameKind  string                 `gorm:"not null"`
	Stake     int64                  `gorm:"default:0"`
	BotFilled bool                   `gorm:"default:false"`
	Players   map[string]interface{} `gorm:"type:jsonb"`
}
