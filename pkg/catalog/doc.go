// SPDX-License-Identifier: MPL-2.0

// Package catalog reads service catalogs: a concept taxonomy, the operations
// of the available services and a composition request.
//
// Catalogs are written in CUE, YAML or TOML. Every format is checked against
// the embedded catalog_schema.cue before semantic validation (unique
// operation names, declared parents, acyclic taxonomy), so errors carry the
// same field paths whatever the file format.
//
//	cat, err := catalog.Load("testdata/travel.yaml")
//	if err != nil {
//		return err
//	}
//	idx, err := index.NewMemory(cat.ModelOperations()...)
package catalog
