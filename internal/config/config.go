/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opswindow/opswindow/internal/policy"
)

// TriggerMode selects how the daemon schedules invocations.
type TriggerMode string

const (
	// TriggerInterval re-evaluates the policy on a fixed short cadence.
	TriggerInterval TriggerMode = "interval"
	// TriggerBoundary fires cron jobs at the window edges plus a slower
	// safety sweep.
	TriggerBoundary TriggerMode = "boundary"
)

// Config covers process level configuration read from environment variables.
// Malformed values fail Load immediately; nothing here is re-read later.
type Config struct {
	Environment string

	// Target instance. Supplied, never discovered.
	InstanceID string

	// Availability policy. Either the single-window env keys or a YAML
	// policy file (which wins when both are set).
	Policy     *policy.Policy
	PolicyFile string

	// AWS client construction inputs, explicit rather than ambient.
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSEndpoint        string

	TriggerMode       TriggerMode
	Interval          time.Duration
	InvocationTimeout time.Duration
	CallTimeout       time.Duration

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	HTTPBind string
	HTTPPort int

	HistorySize int
	AuditDSN    string // sqlite path; empty disables the audit store

	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("OPSWINDOW_ENV", "development"),
		InstanceID:  getEnv("OPSWINDOW_INSTANCE_ID", ""),
		PolicyFile:  getEnv("OPSWINDOW_POLICY_FILE", ""),

		AWSRegion:          getEnvAny([]string{"OPSWINDOW_AWS_REGION", "AWS_REGION"}, ""),
		AWSAccessKeyID:     getEnvAny([]string{"OPSWINDOW_AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		AWSSecretAccessKey: getEnvAny([]string{"OPSWINDOW_AWS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		AWSSessionToken:    getEnvAny([]string{"OPSWINDOW_AWS_SESSION_TOKEN", "AWS_SESSION_TOKEN"}, ""),
		AWSEndpoint:        getEnv("OPSWINDOW_AWS_ENDPOINT", ""),

		TriggerMode:       TriggerMode(getEnv("OPSWINDOW_TRIGGER_MODE", string(TriggerInterval))),
		Interval:          getEnvDuration("OPSWINDOW_INTERVAL", 2*time.Minute),
		InvocationTimeout: getEnvDuration("OPSWINDOW_INVOCATION_TIMEOUT", 60*time.Second),
		CallTimeout:       getEnvDuration("OPSWINDOW_CALL_TIMEOUT", 10*time.Second),

		RetryMaxAttempts:    getEnvInt("OPSWINDOW_RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff: getEnvDuration("OPSWINDOW_RETRY_INITIAL_BACKOFF", 500*time.Millisecond),
		RetryMaxBackoff:     getEnvDuration("OPSWINDOW_RETRY_MAX_BACKOFF", 5*time.Second),

		HTTPBind: getEnv("OPSWINDOW_HTTP_BIND", "0.0.0.0"),
		HTTPPort: getEnvInt("OPSWINDOW_HTTP_PORT", 8080),

		HistorySize: getEnvInt("OPSWINDOW_HISTORY_SIZE", 200),
		AuditDSN:    getEnv("OPSWINDOW_AUDIT_DSN", ""),

		TracingEnabled:    getEnvBool("OPSWINDOW_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("OPSWINDOW_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("OPSWINDOW_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.InstanceID == "" {
		return nil, fmt.Errorf("OPSWINDOW_INSTANCE_ID must be provided")
	}
	if cfg.AWSRegion == "" {
		return nil, fmt.Errorf("OPSWINDOW_AWS_REGION or AWS_REGION must be provided")
	}
	if cfg.TriggerMode != TriggerInterval && cfg.TriggerMode != TriggerBoundary {
		return nil, fmt.Errorf("unsupported trigger mode %q", cfg.TriggerMode)
	}
	if cfg.Interval < 30*time.Second {
		return nil, fmt.Errorf("OPSWINDOW_INTERVAL must be at least 30s, got %s", cfg.Interval)
	}

	p, err := loadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	cfg.Policy = p

	return cfg, nil
}

// loadPolicy builds the availability policy from the YAML file when
// configured, otherwise from the single-window env keys.
func loadPolicy(policyFile string) (*policy.Policy, error) {
	if policyFile != "" {
		return policy.LoadFile(policyFile)
	}

	days, err := policy.ParseDays(getEnv("OPSWINDOW_WINDOW_DAYS", "Mon-Fri"))
	if err != nil {
		return nil, fmt.Errorf("OPSWINDOW_WINDOW_DAYS: %w", err)
	}
	start, err := policy.ParseTimeOfDay(getEnv("OPSWINDOW_WINDOW_START", "09:00"))
	if err != nil {
		return nil, fmt.Errorf("OPSWINDOW_WINDOW_START: %w", err)
	}
	end, err := policy.ParseTimeOfDay(getEnv("OPSWINDOW_WINDOW_END", "18:00"))
	if err != nil {
		return nil, fmt.Errorf("OPSWINDOW_WINDOW_END: %w", err)
	}
	zone := getEnv("OPSWINDOW_WINDOW_TZ", "UTC")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("OPSWINDOW_WINDOW_TZ: invalid timezone %q: %w", zone, err)
	}
	return policy.Single(days, start, end, loc)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
