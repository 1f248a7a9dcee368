// SPDX-License-Identifier: MPL-2.0

// Package testutil provides fixtures shared by the composition tests:
// compact operation builders (Op, Set), index helpers (MustMemoryIndex,
// RecordingIndex), deterministic random operation universes for property
// tests, and small file helpers.
package testutil
