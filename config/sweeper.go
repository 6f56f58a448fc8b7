package config

import "time"

// SessionConfig contains session lifetime and sweep configuration.
type SessionConfig struct {
	// TTL is how long a session remains valid after creation.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// SweepInterval is how often expired sessions are purged.
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`

	// SweepEnabled allows disabling the background sweeper (tests,
	// multi-instance deployments where one instance owns the sweep).
	SweepEnabled bool `env:"SESSION_SWEEP_ENABLED" envDefault:"true"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.TTL <= 0 {
		s.TTL = 24 * time.Hour
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = time.Hour
	}
}
