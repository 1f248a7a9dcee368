// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates and decodes CUE documents against embedded
// schemas.
//
// Every CUE input follows the same three steps:
//
//  1. Compile the embedded schema and look up its root definition
//  2. Compile the user data and unify it with that definition
//  3. Validate and decode into a Go value
//
// Values that arrive in other formats (YAML, TOML) are validated against the
// same schema with ValidateValue, so every format reports errors with the
// same field paths.
package cueutil
