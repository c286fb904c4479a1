package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "http.addr")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ErrSecretRequired is returned by RequireSecret when auth.secret is unset.
var ErrSecretRequired = errors.New("auth.secret is required (set ROUTINEQUEST_AUTH_SECRET)")

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidEnvironments returns the list of valid environment names
func ValidEnvironments() []string {
	return []string{"development", "staging", "production"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidEnvironments(), c.Environment) {
		errs = append(errs, ValidationError{
			Field:   "environment",
			Value:   c.Environment,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidEnvironments(), ", ")),
		})
	}

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, ValidationError{Field: "data_dir", Value: c.DataDir, Message: "must not be empty"})
	}

	errs = append(errs, c.validateHTTP()...)
	errs = append(errs, c.validateAuth()...)

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errs
}

func (c *Config) validateHTTP() []ValidationError {
	var errs []ValidationError

	if c.HTTP.Addr == "" {
		errs = append(errs, ValidationError{Field: "http.addr", Value: c.HTTP.Addr, Message: "must not be empty"})
	}
	for _, origin := range c.HTTP.CORSOrigins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "http.cors_origins",
				Value:   origin,
				Message: "must be an absolute origin like http://localhost:3000",
			})
		}
	}
	if c.HTTP.ShutdownTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "http.shutdown_timeout",
			Value:   c.HTTP.ShutdownTimeout,
			Message: "must not be negative",
		})
	}
	return errs
}

func (c *Config) validateAuth() []ValidationError {
	var errs []ValidationError

	if c.Auth.TokenTTL < time.Minute {
		errs = append(errs, ValidationError{
			Field:   "auth.token_ttl",
			Value:   c.Auth.TokenTTL,
			Message: "must be at least 1m",
		})
	}
	if c.Environment == "production" && c.Auth.Secret != "" && len(c.Auth.Secret) < 32 {
		errs = append(errs, ValidationError{
			Field:   "auth.secret",
			Value:   "<redacted>",
			Message: "must be at least 32 characters in production",
		})
	}
	return errs
}

// RequireSecret reports ErrSecretRequired when no signing secret is set.
// Only commands that issue or verify tokens call it.
func (c *Config) RequireSecret() error {
	if c.Auth.Secret == "" {
		return ErrSecretRequired
	}
	return nil
}
