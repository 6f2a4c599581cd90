// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/matchserver/models"
)

// PostgreSQL 基于database/sql的数据库实现
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS players (
            id SERIAL PRIMARY KEY,
            user_id BIGINT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            coins BIGINT NOT NULL DEFAULT 1000,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS match_records (
            id SERIAL PRIMARY KEY,
            session_id TEXT UNIQUE NOT NULL,
            game_kind TEXT NOT NULL,
            stake BIGINT NOT NULL DEFAULT 0,
            bot_filled BOOLEAN NOT NULL DEFAULT FALSE,
            players JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	return err
}

func (p *PostgreSQL) EnsurePlayer(userID int64, name string) error {
	_, err := p.db.Exec(`
        INSERT INTO players (user_id, name) VALUES ($1, $2)
        ON CONFLICT (user_id) DO NOTHING`,
		userID, name)
	return err
}

func (p *PostgreSQL) GetBalance(userID int64) (int64, error) {
	var coins int64
	err := p.db.QueryRow(`SELECT coins FROM players WHERE user_id = $1`, userID).Scan(&coins)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrRecordNotFound
	}
	if err != nil {
		return 0, err
	}
	return coins, nil
}

func (p *PostgreSQL) AdjustCoins(userID int64, delta int64) error {
	result, err := p.db.Exec(`
        UPDATE players
        SET coins = coins + $2, updated_at = CURRENT_TIMESTAMP
        WHERE user_id = $1 AND coins + $2 >= 0`,
		userID, delta)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM players WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrRecordNotFound
		}
		return ErrInsufficientCoins
	}
	return nil
}

func (p *PostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
        INSERT INTO match_records (session_id, game_kind, stake, bot_filled, players)
        VALUES ($1, $2, $3, $4, $5)`,
		record.SessionID, record.GameKind, record.Stake, record.BotFilled, players)
	return err
}

func (p *PostgreSQL) GetPlayerStats(userID int64) (map[string]interface{}, error) {
	var name string
	var coins int64
	var createdAt time.Time
	err := p.db.QueryRow(`
        SELECT name, coins, created_at FROM players WHERE user_id = $1`,
		userID).Scan(&name, &coins, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"user_id":    userID,
		"name":       name,
		"coins":      coins,
		"created_at": createdAt,
	}, nil
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
