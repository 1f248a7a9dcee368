// SPDX-License-Identifier: MPL-2.0

// Package issue wraps errors from loading configuration and catalog files
// with the operation, the file involved and hints for fixing it.
package issue
