// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/composit/composit/pkg/index"
	"github.com/composit/composit/pkg/model"
)

// Op builds a regular operation from comma-separated input and output lists,
// e.g. Op("op1", "A,B", "C"). Empty lists yield empty sets.
func Op(name, inputs, outputs string) *model.Operation[string] {
	return model.MustOperation(name, split(inputs), split(outputs))
}

// Set builds a concept set from a comma-separated list.
func Set(concepts string) model.Set[string] {
	return model.NewSet(split(concepts)...)
}

// MustMemoryIndex indexes ops, failing the test on error.
func MustMemoryIndex(t testing.TB, ops ...*model.Operation[string]) *index.Memory[string] {
	t.Helper()
	idx, err := index.NewMemory(ops...)
	if err != nil {
		t.Fatalf("failed to build index: %v", err)
	}
	return idx
}

// Names returns the operation names in the given order.
func Names(ops []*model.Operation[string]) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Name()
	}
	return out
}

// SortedNames returns the operation names in lexical order.
func SortedNames(ops []*model.Operation[string]) []string {
	out := Names(ops)
	slices.Sort(out)
	return out
}

// SortedConcepts returns the members of s in lexical order.
func SortedConcepts(s model.Set[string]) []string {
	return s.Sorted(cmp.Compare[string])
}

// RandomUniverse generates n operations over concepts C0..C(concepts-1),
// each consuming one to three concepts and producing one to three concepts.
// The same seed always yields the same universe.
func RandomUniverse(seed uint64, n, concepts int) []*model.Operation[string] {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pick := func() []string {
		k := 1 + rng.IntN(3)
		out := make([]string, k)
		for i := range out {
			out[i] = fmt.Sprintf("C%d", rng.IntN(concepts))
		}
		return out
	}
	ops := make([]*model.Operation[string], n)
	for i := range ops {
		ops[i] = model.MustOperation(fmt.Sprintf("op%d", i), pick(), pick())
	}
	return ops
}

// WriteFile writes content to name inside dir and returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func split(list string) []string {
	var out []string
	for part := range strings.SplitSeq(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
