package main

import (
	"github.com/wfunc/matchserver/config"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/persistence"
	"github.com/wfunc/matchserver/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := persistence.NewGormPostgreSQL(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Initialize Match Server
	matchServer := server.NewGameServer(cfg, db)

	// Start Server
	logger.Log.Infof("Starting match server on %s", cfg.Server.HTTPAddress)
	if err := matchServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
