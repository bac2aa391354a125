package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Chain
	RPCURL            string
	ENSRPCURL         string
	ServerPrivateKey  string
	EscrowAddress     string
	SettlementAddress string
	SettlementEnabled bool

	// Match settings
	StaleMatchTimeoutMs   int
	MoveTimeoutMs         int
	DepositTimeoutMs      int
	QueueTicketTTLSeconds int
	WSTokenTTLSeconds     int
	HelloTimeoutSeconds   int
	CompletedEvictMinutes int

	// Security
	AdminSecret       string
	AuthWindowMinutes int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/dorkfun?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Chain
		RPCURL:            getEnv("RPC_URL", ""),
		ENSRPCURL:         getEnv("ENS_RPC_URL", ""),
		ServerPrivateKey:  getEnv("SERVER_PRIVATE_KEY", ""),
		EscrowAddress:     getEnv("ESCROW_ADDRESS", ""),
		SettlementAddress: getEnv("SETTLEMENT_ADDRESS", ""),
		SettlementEnabled: getEnvBool("SETTLEMENT_ENABLED", false),

		// Match settings
		StaleMatchTimeoutMs:   getEnvInt("STALE_MATCH_TIMEOUT_MS", 300000),
		MoveTimeoutMs:         getEnvInt("MOVE_TIMEOUT_MS", 600000),
		DepositTimeoutMs:      getEnvInt("DEPOSIT_TIMEOUT_MS", 300000),
		QueueTicketTTLSeconds: getEnvInt("QUEUE_TICKET_TTL_SECONDS", 30),
		WSTokenTTLSeconds:     getEnvInt("WS_TOKEN_TTL_SECONDS", 300),
		HelloTimeoutSeconds:   getEnvInt("HELLO_TIMEOUT_SECONDS", 10),
		CompletedEvictMinutes: getEnvInt("COMPLETED_EVICT_MINUTES", 30),

		// Security
		AdminSecret:       getEnv("ADMIN_SECRET", ""),
		AuthWindowMinutes: getEnvInt("AUTH_WINDOW_MINUTES", 5),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
