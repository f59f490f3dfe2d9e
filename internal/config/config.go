package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment             string
	RemoteBaseURL           string
	RemoteAdminAccount      string
	RemoteAdminPassword     string
	MailDomain              string
	DBHost                  string
	DBPort                  string
	DBUsername              string
	DBPassword              string
	DBName                  string
	DBSSLMode               string
	SyncMaxCollisionRetries int
	SyncBatchSize           int
	SyncCycleTimeout        time.Duration
	SyncCron                string
	QueueSyncCron           string
	QueueMaxSize            int
	Timezone                string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MAILSYNC_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:             env,
		RemoteBaseURL:           os.Getenv("MAILSYNC_REMOTE_URL"),
		RemoteAdminAccount:      os.Getenv("MAILSYNC_REMOTE_ADMIN_ACCOUNT"),
		RemoteAdminPassword:     os.Getenv("MAILSYNC_REMOTE_ADMIN_PASSWORD"),
		MailDomain:              os.Getenv("MAILSYNC_MAIL_DOMAIN"),
		DBHost:                  getEnvOrDefault("MAILSYNC_DB_HOST", "localhost"),
		DBPort:                  getEnvOrDefault("MAILSYNC_DB_PORT", "5432"),
		DBUsername:              getEnvOrDefault("MAILSYNC_DB_USER", "mailsync"),
		DBPassword:              os.Getenv("MAILSYNC_DB_PASSWORD"),
		DBName:                  getEnvOrDefault("MAILSYNC_DB_NAME", "mailsync"),
		DBSSLMode:               getEnvOrDefault("MAILSYNC_DB_SSLMODE", "disable"),
		SyncMaxCollisionRetries: getEnvIntOrDefault("MAILSYNC_MAX_COLLISION_RETRIES", 50),
		SyncBatchSize:           getEnvIntOrDefault("MAILSYNC_BATCH_SIZE", 100),
		SyncCycleTimeout:        getEnvDurationOrDefault("MAILSYNC_CYCLE_TIMEOUT", 15*time.Minute),
		SyncCron:                getEnvOrDefault("MAILSYNC_SYNC_CRON", "*/15 * * * *"),
		QueueSyncCron:           getEnvOrDefault("MAILSYNC_QUEUE_SYNC_CRON", "*/5 * * * *"),
		QueueMaxSize:            getEnvIntOrDefault("MAILSYNC_QUEUE_MAX_SIZE", 1000),
		Timezone:                getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.RemoteBaseURL == "" {
		return fmt.Errorf("MAILSYNC_REMOTE_URL is required")
	}

	if c.RemoteAdminAccount == "" {
		return fmt.Errorf("MAILSYNC_REMOTE_ADMIN_ACCOUNT is required")
	}

	if c.RemoteAdminPassword == "" {
		return fmt.Errorf("MAILSYNC_REMOTE_ADMIN_PASSWORD is required")
	}

	if c.MailDomain == "" {
		return fmt.Errorf("MAILSYNC_MAIL_DOMAIN is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("MAILSYNC_DB_PASSWORD is required")
	}

	if c.QueueMaxSize <= 0 {
		return fmt.Errorf("MAILSYNC_QUEUE_MAX_SIZE must be positive")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		fmt.Printf("Warning: invalid value %q for %s, using default %d\n", value, key, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Printf("Warning: invalid value %q for %s, using default %s\n", value, key, defaultValue)
		return defaultValue
	}
	return d
}
