package config

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env    string
	DB     DB
	Server Server
	Logger Logger
	Sync   Sync
	Auth   Auth
}

type DB struct {
	DatabaseURI string
	Migrations  string
}

type Server struct {
	RunAddress string
}

type Logger struct {
	LogLevel string
}

// Sync bounds the synchronization engine: the admission quota per caller,
// the batch processing deadline, and pending-list limits.
type Sync struct {
	RateLimit      int
	RateWindow     time.Duration
	BatchTimeout   time.Duration
	PendingDefault int
	PendingMax     int
}

// Auth maps opaque API tokens to owner ids. A stand-in for the real
// identity service, which is outside this system's scope.
type Auth struct {
	Tokens map[string]int
}

func MustLoad() *Config {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	viper.AutomaticEnv()
	viper.SetDefault("run_address", ":8080")
	viper.SetDefault("migrations_path", "migrations")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("app_env", EnvLocal)
	viper.SetDefault("sync_rate_limit", 50)
	viper.SetDefault("sync_rate_window", time.Hour)
	viper.SetDefault("sync_batch_timeout", 30*time.Second)
	viper.SetDefault("sync_pending_default", 50)
	viper.SetDefault("sync_pending_max", 200)

	return &Config{
		Env: viper.GetString("app_env"),
		DB: DB{
			DatabaseURI: viper.GetString("database_uri"),
			Migrations:  viper.GetString("migrations_path"),
		},
		Server: Server{RunAddress: viper.GetString("run_address")},
		Logger: Logger{LogLevel: viper.GetString("log_level")},
		Sync: Sync{
			RateLimit:      viper.GetInt("sync_rate_limit"),
			RateWindow:     viper.GetDuration("sync_rate_window"),
			BatchTimeout:   viper.GetDuration("sync_batch_timeout"),
			PendingDefault: viper.GetInt("sync_pending_default"),
			PendingMax:     viper.GetInt("sync_pending_max"),
		},
		Auth: Auth{Tokens: ParseTokens(viper.GetString("api_tokens"))},
	}
}

// ParseTokens reads "token:ownerID" pairs separated by commas, e.g.
// "abc123:1,def456:2". Malformed pairs are skipped.
func ParseTokens(raw string) map[string]int {
	tokens := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		token, owner, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || token == "" {
			continue
		}
		id, err := strconv.Atoi(owner)
		if err != nil || id <= 0 {
			continue
		}
		tokens[token] = id
	}
	return tokens
}
