package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Backend      string // Optional: user store backend (file, sqlite) (default: file)
	UserFile     string // Optional: path to the YAML user table for the file backend (default: ./users.yaml)
	DatabaseFile string // Optional: path to SQLite database file for the sqlite backend (default: ./gatehouse.db)

	SessionLifetime time.Duration // Optional: how long issued sessions stay valid (default: 24h)
	CookieName      string        // Optional: session cookie name (default: gatehouse_session)

	RegistrationEnabled bool   // Optional: allow self-registration (default: false)
	InvitationFile      string // Optional: path to invitation code list; empty means no code required
	InvitationDispose   bool   // Optional: remove invitation codes once used (default: true)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	LogFile             string        // Optional: log to a rotated file instead of stderr
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Backend:      getEnvOrDefault("GATEHOUSE_BACKEND", "file"),
		UserFile:     getEnvOrDefault("GATEHOUSE_USER_FILE", "users.yaml"),
		DatabaseFile: getEnvOrDefault("GATEHOUSE_DATABASE_FILE", "gatehouse.db"),

		SessionLifetime: getEnvDurationOrDefault("GATEHOUSE_SESSION_LIFETIME", 24*time.Hour),
		CookieName:      getEnvOrDefault("GATEHOUSE_COOKIE_NAME", "gatehouse_session"),

		RegistrationEnabled: getEnvBoolOrDefault("GATEHOUSE_REGISTRATION", false),
		InvitationFile:      os.Getenv("GATEHOUSE_INVITATION_FILE"), // Optional
		InvitationDispose:   getEnvBoolOrDefault("GATEHOUSE_INVITATION_DISPOSE", true),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		LogFile:             os.Getenv("LOG_FILE"), // Optional
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
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

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
