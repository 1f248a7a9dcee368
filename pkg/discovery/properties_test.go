// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/composit/composit/internal/testutil"
	"github.com/composit/composit/pkg/matcher"
	"github.com/composit/composit/pkg/model"
)

// closure returns every concept derivable from inputs by repeatedly invoking
// operations whose inputs are all available.
func closure(ops []*model.Operation[string], inputs model.Set[string]) model.Set[string] {
	avail := inputs.Clone()
	for changed := true; changed; {
		changed = false
		for _, op := range ops {
			if op.Inputs().IsSubsetOf(avail) && !op.Outputs().IsSubsetOf(avail) {
				avail.AddAll(op.Outputs())
				changed = true
			}
		}
	}
	return avail
}

func TestSearch_RandomUniverses(t *testing.T) {
	t.Parallel()

	for seed := range uint64(25) {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			t.Parallel()
			ops := testutil.RandomUniverse(seed, 60, 30)
			idx := testutil.MustMemoryIndex(t, ops...)
			req := model.NewRequest([]string{"C0", "C1", "C2"}, nil)

			strict := mustSearch(t, newExact(idx), req)
			relaxed := mustSearch(t, newExact(idx, WithRelaxedMatch(true)), req)
			net := strict.Network

			if limit := len(ops) + 1; strict.Rounds > limit {
				t.Errorf("Rounds = %d, want at most %d", strict.Rounds, limit)
			}

			// Every placed operation sits in exactly one level.
			placed := 0
			for i := range net.NumberOfLevels() {
				for _, op := range net.OperationsAtLevel(i) {
					placed++
					if lvl, _ := net.LevelOf(op); lvl != i {
						t.Errorf("%s reported at level %d but listed in level %d", op, lvl, i)
					}
				}
			}
			if placed != net.Len() {
				t.Errorf("levels hold %d operations, network has %d", placed, net.Len())
			}

			// Edges only point forward.
			for _, e := range net.Edges() {
				from, _ := net.LevelOf(e.From)
				to, _ := net.LevelOf(e.To)
				if from >= to {
					t.Errorf("edge %s -> %s goes from level %d to %d", e.From, e.To, from, to)
				}
			}
			if got := len(net.TopologicalOrder()); got != net.Len() {
				t.Errorf("TopologicalOrder() has %d operations, want %d", got, net.Len())
			}

			// Strict mode places exactly the operations whose inputs are derivable,
			// and the record of each candidate is what remains underivable.
			derivable := closure(ops, req.Inputs)
			for _, op := range ops {
				want := op.Inputs().IsSubsetOf(derivable)
				if got := net.Contains(op); got != want {
					t.Errorf("%s placed = %v, want %v", op, got, want)
				}
				if rest, ok := strict.UnmatchedInputs[op]; ok {
					if want := op.Inputs().Difference(derivable); !rest.Equal(want) {
						t.Errorf("record for %s = %v, want %v", op, rest, want)
					}
				}
			}

			// Relaxed mode never places fewer operations.
			for _, op := range net.Operations() {
				if !relaxed.Network.Contains(op) {
					t.Errorf("%s placed in strict mode but not in relaxed mode", op)
				}
			}
		})
	}
}

func TestSession_RecordsOnlyShrink(t *testing.T) {
	t.Parallel()

	for _, relaxed := range []bool{false, true} {
		t.Run(fmt.Sprintf("relaxed=%v", relaxed), func(t *testing.T) {
			t.Parallel()
			shrunk := 0
			for seed := range uint64(25) {
				ops := testutil.RandomUniverse(seed, 60, 30)
				var (
					mu      sync.Mutex
					targets []model.Set[string]
				)
				exact := matcher.Exact[string]()
				fn := matcher.SetFunc[string, matcher.Degree](func(source, target model.Set[string]) *matcher.Result[string, matcher.Degree] {
					mu.Lock()
					targets = append(targets, target.Clone())
					mu.Unlock()
					return exact.PartialMatch(source, target)
				})
				d := New(testutil.MustMemoryIndex(t, ops...), fn, WithRelaxedMatch(relaxed), WithLogger(quiet))
				s := newSession(d, model.NewRequest([]string{"C0", "C1", "C2"}, nil))

				previous := map[*model.Operation[string]]model.Set[string]{}
				for round := 0; ; round++ {
					if round > len(ops)+1 {
						t.Fatalf("seed %d: no convergence after %d rounds", seed, round)
					}
					stop, err := s.step(context.Background())
					if err != nil {
						t.Fatalf("seed %d: step: %v", seed, err)
					}
					for op, record := range s.unmatchedInputs {
						if !record.IsSubsetOf(op.Inputs()) {
							t.Errorf("seed %d round %d: record for %s = %v, outside its inputs", seed, round, op, record)
						}
						if before, ok := previous[op]; ok {
							if !record.IsSubsetOf(before) {
								t.Errorf("seed %d round %d: record for %s grew from %v to %v", seed, round, op, before, record)
							}
							if record.Len() < before.Len() {
								shrunk++
							}
						}
						previous[op] = record.Clone()
					}
					if stop {
						break
					}
				}

				for _, target := range targets {
					if target.IsEmpty() {
						t.Errorf("seed %d: a candidate with an empty record was matched again", seed)
					}
				}
			}
			if shrunk == 0 {
				t.Error("no record shrank after first candidacy; the universes do not exercise multi-round inputs")
			}
		})
	}
}

func TestSearch_ParallelismDoesNotChangeLevels(t *testing.T) {
	t.Parallel()
	ops := testutil.RandomUniverse(42, 80, 25)
	idx := testutil.MustMemoryIndex(t, ops...)
	req := model.NewRequest([]string{"C0", "C1"}, []string{"C20", "C21"})

	want := levelNames(mustSearch(t, newExact(idx, WithParallelism(1)), req))
	for _, p := range []int{2, 8, 32} {
		got := levelNames(mustSearch(t, newExact(idx, WithParallelism(p)), req))
		if !slices.EqualFunc(got, want, slices.Equal) {
			t.Errorf("parallelism %d: levels = %v, want %v", p, got, want)
		}
	}
}
