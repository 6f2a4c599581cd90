package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type MatchmakingConfig struct {
	// BotDeployDelay is how long an entry waits for human opponents
	// before bots are requested for the empty seats.
	BotDeployDelay time.Duration `mapstructure:"bot_deploy_delay"`
	// QueueTimeout is the hard ceiling; an entry never outlives it.
	QueueTimeout time.Duration `mapstructure:"queue_timeout"`
	// StartGrace is how long a WAITING session may sit before it is
	// force-started regardless of transport join confirmation.
	StartGrace time.Duration `mapstructure:"start_grace"`
	// CleanupInterval drives the registry/limiter sweep.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LimitConfig is one fixed-window ceiling handed to the rate limiter.
type LimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type LimitsConfig struct {
	JoinMatchmaking LimitConfig `mapstructure:"join_matchmaking"`
	MakeMove        LimitConfig `mapstructure:"make_move"`
	GetGameState    LimitConfig `mapstructure:"get_game_state"`
	PlayerStatus    LimitConfig `mapstructure:"player_status"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaults()
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

func setDefaults() {
	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9090")

	viper.SetDefault("matchmaking.bot_deploy_delay", 15*time.Second)
	viper.SetDefault("matchmaking.queue_timeout", 30*time.Second)
	viper.SetDefault("matchmaking.start_grace", 5*time.Second)
	viper.SetDefault("matchmaking.cleanup_interval", time.Minute)

	viper.SetDefault("limits.join_matchmaking.max_requests", 5)
	viper.SetDefault("limits.join_matchmaking.window", 10*time.Second)
	viper.SetDefault("limits.make_move.max_requests", 30)
	viper.SetDefault("limits.make_move.window", 10*time.Second)
	viper.SetDefault("limits.get_game_state.max_requests", 20)
	viper.SetDefault("limits.get_game_state.window", 10*time.Second)
	viper.SetDefault("limits.player_status.max_requests", 10)
	viper.SetDefault("limits.player_status.window", 10*time.Second)
}
