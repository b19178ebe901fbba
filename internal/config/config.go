package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Notifier Config (внешний шлюз доставки push/email/sms)
	NotifierURL        string        `env:"NOTIFIER_URL"`
	NotifierSecret     string        `env:"NOTIFIER_SECRET"`
	NotifierTimeout    time.Duration `env:"NOTIFIER_TIMEOUT" envDefault:"5s"`
	NotifierMaxRetries int           `env:"NOTIFIER_MAX_RETRIES" envDefault:"3"`
	NotifierBaseDelay  time.Duration `env:"NOTIFIER_BASE_DELAY" envDefault:"1s"`

	// Hub Config
	SubscriberBufferSize int `env:"SUBSCRIBER_BUFFER_SIZE" envDefault:"64"`
	SendBufferSize       int `env:"SEND_BUFFER_SIZE" envDefault:"256"`

	// Alert lifecycle Config
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`

	// Escort Config
	EscortAlertRadiusMeters int           `env:"ESCORT_ALERT_RADIUS_METERS" envDefault:"150"`
	SessionRetention        time.Duration `env:"SESSION_RETENTION" envDefault:"1h"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		HTTPPort:                getEnv("HTTP_PORT", "8080"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:               os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getEnvAsInt("REDIS_DB", 0),
		NotifierURL:             os.Getenv("NOTIFIER_URL"),
		NotifierSecret:          os.Getenv("NOTIFIER_SECRET"),
		NotifierTimeout:         getEnvAsDuration("NOTIFIER_TIMEOUT", 5*time.Second),
		NotifierMaxRetries:      getEnvAsInt("NOTIFIER_MAX_RETRIES", 3),
		NotifierBaseDelay:       getEnvAsDuration("NOTIFIER_BASE_DELAY", time.Second),
		SubscriberBufferSize:    getEnvAsInt("SUBSCRIBER_BUFFER_SIZE", 64),
		SendBufferSize:          getEnvAsInt("SEND_BUFFER_SIZE", 256),
		SweepInterval:           getEnvAsDuration("SWEEP_INTERVAL", 30*time.Second),
		EscortAlertRadiusMeters: getEnvAsInt("ESCORT_ALERT_RADIUS_METERS", 150),
		SessionRetention:        getEnvAsDuration("SESSION_RETENTION", time.Hour),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return cfg, nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
