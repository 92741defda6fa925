package services

import (
	"math"
	"time"
)

// BackoffConfig describes a clamped exponential delay.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// MaxAttempt caps the exponent; later attempts reuse its delay.
	MaxAttempt int
}

// ReconnectBackoff is the channel reconnect schedule: 1s, 2s, 4s, 8s, 16s, then 30s.
var ReconnectBackoff = BackoffConfig{
	InitialDelay: time.Second,
	Multiplier:   2,
	MaxDelay:     30 * time.Second,
	MaxAttempt:   5,
}

// NextBackoffDelay returns the delay for a zero-based attempt.
func NextBackoffDelay(cfg BackoffConfig, attempt int) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if cfg.MaxAttempt > 0 && attempt > cfg.MaxAttempt {
		attempt = cfg.MaxAttempt
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// NextAttempt advances the attempt counter without passing the ceiling.
func NextAttempt(cfg BackoffConfig, attempt int) int {
	attempt++
	if cfg.MaxAttempt > 0 && attempt > cfg.MaxAttempt {
		return cfg.MaxAttempt
	}
	return attempt
}
