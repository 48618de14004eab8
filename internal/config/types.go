package config

import "time"

// Config holds all configuration for the application.
type Config struct {
	DBName        string
	MigrationsDir string
	Port          string
	Slack         SlackConfig
	Turso         TursoConfig
	ProjectID     string
	Booking       BookingConfig
	Sweeper       SweeperConfig
	EventBuffer   int
}

type SlackConfig struct {
	Token         string
	ChannelID     string
	SigningSecret string
	DryRun        bool
}

// Enabled reports whether Slack delivery is configured.
func (s SlackConfig) Enabled() bool {
	return s.Token != ""
}

type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}

type BookingConfig struct {
	HoldWindow time.Duration
}

type SweeperConfig struct {
	HoldExpiry       time.Duration
	TournamentStatus time.Duration
	Reminders        time.Duration
	Reconcile        time.Duration
	ReminderLead     time.Duration
}
