// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// StrategyExact matches equal concepts only.
	StrategyExact Strategy = "exact"
	// StrategyTaxonomic matches a concept against itself and its ancestors in
	// the catalog taxonomy.
	StrategyTaxonomic Strategy = "taxonomic"
	// StrategySimilarity matches concept names whose token similarity reaches
	// the configured threshold.
	StrategySimilarity Strategy = "similarity"

	// LogLevelDebug logs every discovery round.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs one summary per search.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidStrategy is the sentinel error wrapped by InvalidStrategyError.
	ErrInvalidStrategy = errors.New("invalid matching strategy")
	// ErrInvalidLogLevel is the sentinel error wrapped by InvalidLogLevelError.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidThreshold is the sentinel error wrapped by InvalidThresholdError.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")
	// ErrInvalidParallelism is the sentinel error wrapped by InvalidParallelismError.
	ErrInvalidParallelism = errors.New("invalid parallelism")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidLoadOptions is the sentinel error wrapped by InvalidLoadOptionsError.
	ErrInvalidLoadOptions = errors.New("invalid load options")
)

type (
	// Strategy names the set match function used by the engine.
	Strategy string

	// InvalidStrategyError is returned when a Strategy value is not recognized.
	InvalidStrategyError struct {
		Value Strategy
	}

	// LogLevel is the minimum level of emitted log records.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidThresholdError is returned when a similarity threshold is outside (0, 1].
	InvalidThresholdError struct {
		Value float64
	}

	// InvalidParallelismError is returned for a negative parallelism.
	InvalidParallelismError struct {
		Value int
	}

	// InvalidConfigError collects the field errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Discovery DiscoveryConfig `json:"discovery" mapstructure:"discovery"`
		Matching  MatchingConfig  `json:"matching" mapstructure:"matching"`
		Log       LogConfig       `json:"log" mapstructure:"log"`
	}

	// DiscoveryConfig configures the forward discoverer.
	DiscoveryConfig struct {
		// RelaxedMatch admits operations with some inputs matched.
		RelaxedMatch bool `json:"relaxed_match" mapstructure:"relaxed_match"`
		// Parallelism bounds concurrent candidate evaluation; 0 means GOMAXPROCS.
		Parallelism int `json:"parallelism" mapstructure:"parallelism"`
	}

	// MatchingConfig selects and tunes the set match function.
	MatchingConfig struct {
		Strategy Strategy `json:"strategy" mapstructure:"strategy"`
		// Threshold is the minimum similarity for StrategySimilarity.
		Threshold float64 `json:"threshold" mapstructure:"threshold"`
		// AllowSubsumes lets StrategyTaxonomic match more general concepts.
		AllowSubsumes bool `json:"allow_subsumes" mapstructure:"allow_subsumes"`
	}

	// LogConfig configures the logger handed to the discoverer.
	LogConfig struct {
		Level  LogLevel `json:"level" mapstructure:"level"`
		Prefix string   `json:"prefix" mapstructure:"prefix"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			RelaxedMatch: false,
			Parallelism:  0,
		},
		Matching: MatchingConfig{
			Strategy:  StrategyExact,
			Threshold: 0.5,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Prefix: AppName,
		},
	}
}

// String returns the string representation of the Strategy.
func (s Strategy) String() string { return string(s) }

// IsValid returns whether the Strategy is one of the defined strategies.
func (s Strategy) IsValid() (bool, []error) {
	switch s {
	case StrategyExact, StrategyTaxonomic, StrategySimilarity:
		return true, nil
	default:
		return false, []error{&InvalidStrategyError{Value: s}}
	}
}

// Error implements the error interface for InvalidStrategyError.
func (e *InvalidStrategyError) Error() string {
	return fmt.Sprintf("invalid matching strategy %q (valid: exact, taxonomic, similarity)", e.Value)
}

// Unwrap returns ErrInvalidStrategy for errors.Is() compatibility.
func (e *InvalidStrategyError) Unwrap() error { return ErrInvalidStrategy }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Error implements the error interface for InvalidThresholdError.
func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("invalid similarity threshold %g: must be in (0, 1]", e.Value)
}

// Unwrap returns ErrInvalidThreshold for errors.Is() compatibility.
func (e *InvalidThresholdError) Unwrap() error { return ErrInvalidThreshold }

// Error implements the error interface for InvalidParallelismError.
func (e *InvalidParallelismError) Error() string {
	return fmt.Sprintf("invalid parallelism %d: must not be negative", e.Value)
}

// Unwrap returns ErrInvalidParallelism for errors.Is() compatibility.
func (e *InvalidParallelismError) Unwrap() error { return ErrInvalidParallelism }

// IsValid returns whether the DiscoveryConfig has valid fields.
func (c DiscoveryConfig) IsValid() (bool, []error) {
	if c.Parallelism < 0 {
		return false, []error{&InvalidParallelismError{Value: c.Parallelism}}
	}
	return true, nil
}

// IsValid returns whether the MatchingConfig has valid fields. The threshold
// is only checked for StrategySimilarity.
func (c MatchingConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Strategy.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Strategy == StrategySimilarity && (c.Threshold <= 0 || c.Threshold > 1) {
		errs = append(errs, &InvalidThresholdError{Value: c.Threshold})
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the LogConfig has valid fields.
func (c LogConfig) IsValid() (bool, []error) {
	return c.Level.IsValid()
}

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, check := range []func() (bool, []error){c.Discovery.IsValid, c.Matching.IsValid, c.Log.IsValid} {
		if valid, fieldErrs := check(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Validate returns an *InvalidConfigError listing every invalid field, or nil.
func (c Config) Validate() error {
	if valid, errs := c.IsValid(); !valid {
		return errs[0]
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors, so that errors.Is
// matches the sentinel of any invalid field.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
