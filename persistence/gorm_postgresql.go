// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/wfunc/matchserver/models"
)

// GormPostgreSQL 基于GORM的数据库实现
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.GormPlayer{}, &models.GormMatchRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (g *GormPostgreSQL) EnsurePlayer(userID int64, name string) error {
	player := models.GormPlayer{UserID: userID, Name: name}
	return g.db.Where(models.GormPlayer{UserID: userID}).
		Attrs(player).
		FirstOrCreate(&player).Error
}

func (g *GormPostgreSQL) GetBalance(userID int64) (int64, error) {
	var player models.GormPlayer
	if err := g.db.Where("user_id = ?", userID).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRecordNotFound
		}
		return 0, err
	}
	return player.Coins, nil
}

// AdjustCoins 原子更新金币数量
func (g *GormPostgreSQL) AdjustCoins(userID int64, delta int64) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.GormPlayer{}).
			Where("user_id = ? AND coins + ? >= 0", userID, delta).
			Update("coins", gorm.Expr("coins + ?", delta))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var player models.GormPlayer
			if err := tx.Where("user_id = ?", userID).First(&player).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRecordNotFound
				}
				return err
			}
			return ErrInsufficientCoins
		}
		return nil
	})
}

func (g *GormPostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	players := make(map[string]interface{}, len(record.Players))
	for _, p := range record.Players {
		players[fmt.Sprintf("%d", p.Seat)] = map[string]interface{}{
			"user_id": p.UserID,
			"name":    p.Name,
			"is_bot":  p.IsBot,
		}
	}

	return g.db.Create(&models.GormMatchRecord{
		SessionID: record.SessionID,
		GameKind:  record.GameKind,
		Stake:     record.Stake,
		BotFilled: record.BotFilled,
		Players:   players,
	}).Error
}

func (g *GormPostgreSQL) GetPlayerStats(userID int64) (map[string]interface{}, error) {
	var player models.GormPlayer
	if err := g.db.Where("user_id = ?", userID).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return map[string]interface{}{
		"user_id":    player.UserID,
		"name":       player.Name,
		"coins":      player.Coins,
		"created_at": player.CreatedAt,
	}, nil
}

func (g *GormPostgreSQL) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
