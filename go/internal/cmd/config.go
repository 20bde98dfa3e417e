package main

import (
	"fmt"
	"os"
	"strconv"
)

// Config carries everything the process needs, sourced from the environment.
type Config struct {
	Port         string
	StoreBackend string // "memory" or "postgres"
	Database     DatabaseConfig

	NATSEnabled bool
	NATSURL     string

	QuestionBankPath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func loadConfig() Config {
	return Config{
		Port:         getEnv("PORT", "8080"),
		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "retrolive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		NATSEnabled:      getEnvAsBool("NATS_ENABLED", false),
		NATSURL:          getEnv("NATS_URL", "nats://localhost:4222"),
		QuestionBankPath: getEnv("QUESTION_BANK_PATH", ""),
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
