// SPDX-License-Identifier: MPL-2.0

// Package logging builds the slog loggers used across composit. Records are
// rendered by charmbracelet/log, so library code only depends on log/slog.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// ErrInvalidLevel is the sentinel error wrapped by InvalidLevelError.
var ErrInvalidLevel = errors.New("invalid log level")

type (
	// Options configures New.
	Options struct {
		// Level is one of debug, info, warn or error. Empty means info.
		Level string
		// Prefix is printed before every message.
		Prefix string
		// Writer receives the output. Defaults to os.Stderr.
		Writer io.Writer
		// Timestamps adds the time to every line.
		Timestamps bool
	}

	// InvalidLevelError is returned for a level name charmbracelet/log does
	// not know.
	InvalidLevelError struct {
		Value string
	}
)

// New returns a slog.Logger writing through a charmbracelet/log handler.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix:          opts.Prefix,
		Level:           level,
		ReportTimestamp: opts.Timestamps,
	})
	return slog.New(handler), nil
}

// ParseLevel maps a level name to a charmbracelet/log level. The empty
// string selects info.
func ParseLevel(name string) (log.Level, error) {
	if name == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		return 0, &InvalidLevelError{Value: name}
	}
	return level, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Error implements the error interface for InvalidLevelError.
func (e *InvalidLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLevel for errors.Is() compatibility.
func (e *InvalidLevelError) Unwrap() error { return ErrInvalidLevel }
