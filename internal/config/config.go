// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/composit/composit/internal/cueutil"
	"github.com/composit/composit/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "composit"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. COMPOSIT_LOG_LEVEL.
	EnvPrefix = "COMPOSIT"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the composit configuration directory inside the
// platform's user configuration directory.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// loadWithOptions loads the configuration and returns the path of the file it
// was read from, or "" when only defaults and the environment applied.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, explicit := opts.ConfigFilePath, true
	if path == "" {
		explicit = false
		dir := opts.ConfigDirPath
		if dir == "" {
			var err error
			if dir, err = ConfigDir(); err != nil {
				return nil, "", err
			}
		}
		path = filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	}

	resolved := ""
	switch exists, err := fileExists(path); {
	case err != nil:
		return nil, "", loadError(path, err)
	case !exists && explicit:
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			Wrap(fmt.Errorf("config file not found: %w", fs.ErrNotExist)).
			BuildError()
	case exists:
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", loadError(path, err)
		}
		resolved = path
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolved).
			WithSuggestion("Check the " + EnvPrefix + "_* environment variables").
			Wrap(err).
			BuildError()
	}
	return &cfg, resolved, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("discovery.relaxed_match", defaults.Discovery.RelaxedMatch)
	v.SetDefault("discovery.parallelism", defaults.Discovery.Parallelism)
	v.SetDefault("matching.strategy", defaults.Matching.Strategy)
	v.SetDefault("matching.threshold", defaults.Matching.Threshold)
	v.SetDefault("matching.allow_subsumes", defaults.Matching.AllowSubsumes)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.prefix", defaults.Log.Prefix)
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		Wrap(err).
		BuildError()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
// Fields stay optional (non-concrete) so defaults fill the gaps.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	configMap, err := cueutil.DecodeMap(configSchema, data, "#Config",
		cueutil.WithConcrete(false),
		cueutil.WithFilename(path),
	)
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return true, nil
}

// Save writes cfg as CUE to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE renders cfg as a CUE document accepted by the #Config schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// composit configuration file\n\n")

	sb.WriteString("discovery: {\n")
	fmt.Fprintf(&sb, "\trelaxed_match: %v\n", cfg.Discovery.RelaxedMatch)
	fmt.Fprintf(&sb, "\tparallelism: %d\n", cfg.Discovery.Parallelism)
	sb.WriteString("}\n")

	sb.WriteString("\nmatching: {\n")
	fmt.Fprintf(&sb, "\tstrategy: %q\n", cfg.Matching.Strategy)
	if cfg.Matching.Threshold > 0 {
		fmt.Fprintf(&sb, "\tthreshold: %s\n", formatNumber(cfg.Matching.Threshold))
	}
	fmt.Fprintf(&sb, "\tallow_subsumes: %v\n", cfg.Matching.AllowSubsumes)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tprefix: %q\n", cfg.Log.Prefix)
	sb.WriteString("}\n")

	return sb.String()
}

// formatNumber renders f so that CUE reads it back as a number, never an int
// literal that loses the fraction.
func formatNumber(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
