// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for PGO profile generation.
// They cover the hot paths of a composition search:
//   - catalog decoding and schema validation (CUE, YAML, TOML)
//   - forward discovery over generated operation universes
//   - service match network construction
//   - the full engine pipeline from catalog file to result
//
// To generate a CPU profile for PGO, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
