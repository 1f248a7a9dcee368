// SPDX-License-Identifier: MPL-2.0

// Package config handles composit configuration using Viper with CUE as the
// file format.
//
// Configuration is read from config.cue in the user configuration directory
// (os.UserConfigDir()/composit) or from an explicit path, validated against the
// embedded config_schema.cue, merged over the defaults and finally overridden
// by COMPOSIT_* environment variables (e.g. COMPOSIT_MATCHING_STRATEGY).
package config
