package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Bus      BusConfig
	Ledger   LedgerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
}

// BusConfig holds Kafka configuration for outbound ledger events
type BusConfig struct {
	Brokers    []string
	EventTopic string
	AlertTopic string
}

// SystemAccountIDs identifies the well-known system accounts of one currency
type SystemAccountIDs struct {
	LiquidityCr uuid.UUID
	LiquidityDr uuid.UUID
	FeesCr      uuid.UUID
}

// LedgerConfig holds the transaction-engine options
type LedgerConfig struct {
	SupportedCurrencies []string
	SchedulerTick       time.Duration
	LiquidityInterval   time.Duration
	AuditInterval       time.Duration
	StalePendingAfter   time.Duration
	SuspendOnViolation  bool
	QuoteTTL            time.Duration
	MaxScopeRetries     int
	SignerURL           string
	ExchangeURL         string
	RPCEndpoints        map[string]string
	FeesFloor           map[string]decimal.Decimal
	LiquidityFloor      map[string]decimal.Decimal
	SystemAccounts      map[string]SystemAccountIDs
}

// Load loads configuration from environment variables
func Load() *Config {
	currencies := getEnvAsList("SUPPORTED_CURRENCIES", []string{"ETH", "BTC"})

	rpc := make(map[string]string, len(currencies))
	feesFloor := make(map[string]decimal.Decimal, len(currencies))
	liquidityFloor := make(map[string]decimal.Decimal, len(currencies))
	systemAccounts := make(map[string]SystemAccountIDs, len(currencies))
	for _, cur := range currencies {
		rpc[cur] = getEnv("RPC_URL_"+cur, "")
		feesFloor[cur] = getEnvAsDecimal("FEES_FLOOR_"+cur, decimal.Zero)
		liquidityFloor[cur] = getEnvAsDecimal("LIQUIDITY_FLOOR_"+cur, decimal.Zero)
		systemAccounts[cur] = SystemAccountIDs{
			LiquidityCr: getEnvAsUUID("SYSTEM_LIQUIDITY_CR_" + cur),
			LiquidityDr: getEnvAsUUID("SYSTEM_LIQUIDITY_DR_" + cur),
			FeesCr:      getEnvAsUUID("SYSTEM_FEES_CR_" + cur),
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "walletledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Bus: BusConfig{
			Brokers:    getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			EventTopic: getEnv("KAFKA_EVENT_TOPIC", "ledger.events"),
			AlertTopic: getEnv("KAFKA_ALERT_TOPIC", "ledger.alerts"),
		},
		Ledger: LedgerConfig{
			SupportedCurrencies: currencies,
			SchedulerTick:       getEnvAsDuration("SCHEDULER_TICK", time.Second),
			LiquidityInterval:   getEnvAsDuration("LIQUIDITY_INTERVAL", 30*time.Second),
			AuditInterval:       getEnvAsDuration("AUDIT_INTERVAL", 5*time.Minute),
			StalePendingAfter:   getEnvAsDuration("STALE_PENDING_AFTER", 2*time.Hour),
			SuspendOnViolation:  getEnvAsBool("SUSPEND_ON_INVARIANT_VIOLATION", true),
			QuoteTTL:            getEnvAsDuration("QUOTE_TTL", 30*time.Second),
			MaxScopeRetries:     getEnvAsInt("MAX_SCOPE_RETRIES", 3),
			SignerURL:           getEnv("SIGNER_URL", "http://localhost:8090"),
			ExchangeURL:         getEnv("EXCHANGE_URL", "http://localhost:8091"),
			RPCEndpoints:        rpc,
			FeesFloor:           feesFloor,
			LiquidityFloor:      liquidityFloor,
			SystemAccounts:      systemAccounts,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsUUID(key string) uuid.UUID {
	if value := os.Getenv(key); value != "" {
		if id, err := uuid.Parse(value); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
