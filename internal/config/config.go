package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tradebot/internal/models"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Feed     FeedConfig
	Risk     RiskConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// EncryptionKey - 32 байта для AES-256 шифрования биржевых ключей
	EncryptionKey string

	// APIUser / APIPasswordHash - basic auth операторского API
	// (bcrypt хеш; пустой хеш отключает auth)
	APIUser         string
	APIPasswordHash string
}

// FeedConfig - настройки ленты рыночных данных
type FeedConfig struct {
	Exchange          string
	Symbols           []string
	Interval          string
	BackfillDepth     int
	PaginationCeiling time.Duration
	FailureThreshold  int

	// Реквизиты биржи (расшифрованные значения держит только шлюз)
	APIKey     string
	APISecret  string
	Passphrase string
}

// RiskConfig - настройки риск-менеджмента
type RiskConfig struct {
	Target         float64 // доля цели, (0,1)
	StopLoss       float64 // доля стоп-лосса, (0,1)
	EntryFraction  float64
	AddFraction    float64
	ExitFraction   float64
	OrderTimeout   time.Duration // потолок ожидания исполнения
	Cadence        time.Duration // пауза между проходами решений
	Lookback       int           // глубина серии для стратегии
	OrderType      string        // market или limit
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradebot"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:   getEnv("ENCRYPTION_KEY", ""),
			APIUser:         getEnv("API_USER", "operator"),
			APIPasswordHash: getEnv("API_PASSWORD_HASH", ""),
		},
		Feed: FeedConfig{
			Exchange:          getEnv("EXCHANGE", "paper"),
			Symbols:           getEnvAsList("SYMBOLS", []string{"BTC/USD"}),
			Interval:          getEnv("INTERVAL", "1h"),
			BackfillDepth:     getEnvAsInt("BACKFILL_DEPTH", 300),
			PaginationCeiling: getEnvAsDuration("PAGINATION_CEILING", 2*time.Minute),
			FailureThreshold:  getEnvAsInt("FAILURE_THRESHOLD", 3),
			APIKey:            getEnv("EXCHANGE_API_KEY", ""),
			APISecret:         getEnv("EXCHANGE_API_SECRET", ""),
			Passphrase:        getEnv("EXCHANGE_PASSPHRASE", ""),
		},
		Risk: RiskConfig{
			Target:        getEnvAsFloat("RISK_TARGET", 0.1),
			StopLoss:      getEnvAsFloat("RISK_STOP_LOSS", 0.2),
			EntryFraction: getEnvAsFloat("SIZE_ENTRY_FRACTION", 0.25),
			AddFraction:   getEnvAsFloat("SIZE_ADD_FRACTION", 0.5),
			ExitFraction:  getEnvAsFloat("SIZE_EXIT_FRACTION", 0.5),
			OrderTimeout:  getEnvAsDuration("ORDER_TIMEOUT", 120*time.Second),
			Cadence:       getEnvAsDuration("DECISION_CADENCE", time.Minute),
			Lookback:      getEnvAsInt("STRATEGY_LOOKBACK", 50),
			OrderType:     getEnv("ORDER_TYPE", models.OrderTypeMarket),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет критичные параметры
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// ENCRYPTION_KEY опционален (paper шлюз без ключей), но если
	// задан — строго 32 байта для AES-256
	if c.Security.EncryptionKey != "" && len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256, got %d", len(c.Security.EncryptionKey))
	}

	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("SYMBOLS must list at least one symbol")
	}
	if _, err := models.IntervalDuration(c.Feed.Interval); err != nil {
		return fmt.Errorf("INTERVAL: %w", err)
	}
	if c.Feed.BackfillDepth <= 0 {
		return fmt.Errorf("BACKFILL_DEPTH must be positive, got %d", c.Feed.BackfillDepth)
	}

	if c.Risk.Target <= 0 || c.Risk.Target >= 1 {
		return fmt.Errorf("RISK_TARGET must be in (0,1), got %v", c.Risk.Target)
	}
	if c.Risk.StopLoss <= 0 || c.Risk.StopLoss >= 1 {
		return fmt.Errorf("RISK_STOP_LOSS must be in (0,1), got %v", c.Risk.StopLoss)
	}
	if c.Risk.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %v", c.Risk.OrderTimeout)
	}
	if c.Risk.OrderType != models.OrderTypeMarket && c.Risk.OrderType != models.OrderTypeLimit {
		return fmt.Errorf("ORDER_TYPE must be market or limit, got %q", c.Risk.OrderType)
	}

	return nil
}

// Series возвращает ключи серий, которые должен вести процесс
func (c *Config) Series() []models.SeriesKey {
	keys := make([]models.SeriesKey, 0, len(c.Feed.Symbols))
	for _, symbol := range c.Feed.Symbols {
		keys = append(keys, models.SeriesKey{
			Exchange: c.Feed.Exchange,
			Symbol:   symbol,
			Interval: c.Feed.Interval,
		})
	}
	return keys
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля
// (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
