package config

import (
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables and .env file.
// DB_NAME is required; everything else falls back to a default.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}

	// A helper function to get a required env var. It will fail if the env var is not set.
	getEnv := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		log.Fatalf("Error: Required environment variable %s is not set.", key)
		return "" // This line is never reached
	}

	cfg := Config{
		DBName:        getEnv("DB_NAME"),
		MigrationsDir: getEnvDefault("MIGRATIONS_DIR", "./migrations"),
		Port:          getEnvDefault("PORT", "8080"),
		Slack: SlackConfig{
			Token:         getEnvDefault("SLACK_BOT_TOKEN", ""),
			ChannelID:     getEnvDefault("SLACK_CHANNEL_ID", ""),
			SigningSecret: getEnvDefault("SLACK_SIGNING_SECRET", ""),
			DryRun:        getBool("SLACK_DRY_RUN", false),
		},
		Turso: TursoConfig{
			PrimaryURL: getEnvDefault("TURSO_PRIMARY_URL", ""),
			AuthToken:  getEnvDefault("TURSO_AUTH_TOKEN", ""),
		},
		ProjectID: getEnvDefault("GCP_PROJECT", ""),
		Booking: BookingConfig{
			HoldWindow: getDuration("HOLD_WINDOW", 5*time.Minute),
		},
		Sweeper: SweeperConfig{
			HoldExpiry:       getDuration("SWEEP_HOLD_EXPIRY", time.Minute),
			TournamentStatus: getDuration("SWEEP_TOURNAMENT_STATUS", time.Minute),
			Reminders:        getDuration("SWEEP_REMINDERS", 5*time.Minute),
			Reconcile:        getDuration("SWEEP_RECONCILE", 15*time.Minute),
			ReminderLead:     getDuration("REMINDER_LEAD", time.Hour),
		},
		EventBuffer: getInt("EVENT_BUFFER", 1024),
	}
	return cfg
}

func getEnvDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Error: %s must be a duration like 90s or 5m, got %q", key, value)
	}
	return d
}

func getBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Fatalf("Error: %s must be true or false, got %q", key, value)
	}
	return b
}

func getInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Error: %s must be an integer, got %q", key, value)
	}
	return n
}
