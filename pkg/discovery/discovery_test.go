// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/composit/composit/internal/logging"
	"github.com/composit/composit/internal/testutil"
	"github.com/composit/composit/pkg/index"
	"github.com/composit/composit/pkg/matcher"
	"github.com/composit/composit/pkg/model"
)

var quiet = logging.Discard()

func newExact(idx index.OperationIndex[string], opts ...Option) *ForwardDiscoverer[string, matcher.Degree] {
	return New(idx, matcher.Exact[string](), append([]Option{WithLogger(quiet)}, opts...)...)
}

func mustSearch(t *testing.T, d *ForwardDiscoverer[string, matcher.Degree], req model.Request[string]) *Result[string, matcher.Degree] {
	t.Helper()
	res, err := d.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	return res
}

// levelNames returns the sorted operation names of every level.
func levelNames(res *Result[string, matcher.Degree]) [][]string {
	out := make([][]string, res.Network.NumberOfLevels())
	for i := range out {
		out[i] = testutil.SortedNames(res.Network.OperationsAtLevel(i))
	}
	return out
}

func linearChain() []*model.Operation[string] {
	return []*model.Operation[string]{
		testutil.Op("op1", "A", "B"),
		testutil.Op("op2", "B", "C"),
		testutil.Op("op3", "C", "D"),
	}
}

func TestSearch_LinearChain(t *testing.T) {
	t.Parallel()
	idx := testutil.MustMemoryIndex(t, linearChain()...)
	res := mustSearch(t, newExact(idx), model.NewRequest([]string{"A"}, []string{"D"}))

	want := [][]string{{"source"}, {"op1"}, {"op2"}, {"op3"}, {"sink"}}
	if got := levelNames(res); !slices.EqualFunc(got, want, slices.Equal) {
		t.Errorf("levels = %v, want %v", got, want)
	}
	if !res.Satisfied() {
		t.Errorf("UnmatchedOutputs = %v, want none", res.UnmatchedOutputs)
	}
	if blocked := res.Blocked(); len(blocked) != 0 {
		t.Errorf("Blocked() = %v, want none", testutil.Names(blocked))
	}
	for op, rest := range res.UnmatchedInputs {
		if !rest.IsEmpty() {
			t.Errorf("record for %s = %v, want empty", op, rest)
		}
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("Diagnostics = %+v, want none", res.Diagnostics)
	}

	sink := res.Network.Sink()
	in := res.Network.IncomingEdges(sink)
	if len(in) != 1 || in[0].From.Name() != "op3" {
		t.Errorf("sink should be fed by op3 only, got %d edges", len(in))
	}
}

func TestSearch_UnreachableGoal(t *testing.T) {
	t.Parallel()
	idx := testutil.MustMemoryIndex(t, linearChain()...)
	res := mustSearch(t, newExact(idx), model.NewRequest([]string{"A"}, []string{"Z"}))

	if got := testutil.SortedConcepts(res.UnmatchedOutputs); !slices.Equal(got, []string{"Z"}) {
		t.Errorf("UnmatchedOutputs = %v, want [Z]", got)
	}
	if res.Satisfied() {
		t.Error("Satisfied() = true, want false")
	}
	if in := res.Network.IncomingEdges(res.Network.Sink()); len(in) != 0 {
		t.Errorf("sink has %d incoming edges, want 0", len(in))
	}
	if got := res.Network.UnsatisfiedInputs(res.Network.Sink()); !got.Equal(testutil.Set("Z")) {
		t.Errorf("UnsatisfiedInputs(sink) = %v", got)
	}
	// Three productive rounds and the empty one that ends the search.
	if res.Rounds != 4 {
		t.Errorf("Rounds = %d, want 4", res.Rounds)
	}
	if !hasDiagnostic(res.Diagnostics, CodeGoalUnreachable, "") {
		t.Errorf("Diagnostics = %+v, want goal_unreachable", res.Diagnostics)
	}
}

func TestSearch_StrictVersusRelaxed(t *testing.T) {
	t.Parallel()
	op4 := testutil.Op("op4", "A,X", "Y")
	idx := testutil.MustMemoryIndex(t, op4)
	req := model.NewRequest([]string{"A"}, nil)

	strict := mustSearch(t, newExact(idx), req)
	if strict.Network.Contains(op4) {
		t.Error("strict mode must not place op4")
	}
	if got := strict.UnmatchedInputs[op4]; !got.Equal(testutil.Set("X")) {
		t.Errorf("strict record for op4 = %v, want {X}", got)
	}
	if got := testutil.Names(strict.Blocked()); !slices.Equal(got, []string{"op4"}) {
		t.Errorf("Blocked() = %v, want [op4]", got)
	}
	if !hasDiagnostic(strict.Diagnostics, CodeOperationBlocked, "op4") {
		t.Errorf("Diagnostics = %+v, want operation_blocked for op4", strict.Diagnostics)
	}

	relaxedDiscoverer := newExact(idx, WithRelaxedMatch(true))
	if !relaxedDiscoverer.RelaxedMatch() {
		t.Fatal("RelaxedMatch() = false")
	}
	relaxed := mustSearch(t, relaxedDiscoverer, req)
	if lvl, ok := relaxed.Network.LevelOf(op4); !ok || lvl != 1 {
		t.Errorf("relaxed LevelOf(op4) = %d, %v; want level 1", lvl, ok)
	}
	if got := relaxed.UnmatchedInputs[op4]; !got.Equal(testutil.Set("X")) {
		t.Errorf("relaxed record for op4 = %v, want {X}", got)
	}
	if !hasDiagnostic(relaxed.Diagnostics, CodePartiallyMatched, "op4") {
		t.Errorf("Diagnostics = %+v, want partially_matched for op4", relaxed.Diagnostics)
	}
	if got := relaxed.Network.UnsatisfiedInputs(op4); !got.Equal(testutil.Set("X")) {
		t.Errorf("UnsatisfiedInputs(op4) = %v, want {X}", got)
	}
}

func TestSearch_RelaxedRecordShrinksAfterAdmission(t *testing.T) {
	t.Parallel()
	// op4 is admitted on A in round 0; X only arrives from op6 two rounds later.
	op4 := testutil.Op("op4", "A,X", "Y")
	op5 := testutil.Op("op5", "A", "B")
	op6 := testutil.Op("op6", "B", "X")
	idx := testutil.MustMemoryIndex(t, op4, op5, op6)
	req := model.NewRequest([]string{"A"}, nil)

	res := mustSearch(t, newExact(idx, WithRelaxedMatch(true)), req)

	want := [][]string{{"source"}, {"op4", "op5"}, {"op6"}, {"sink"}}
	if got := levelNames(res); !slices.EqualFunc(got, want, slices.Equal) {
		t.Fatalf("levels = %v, want %v", got, want)
	}
	if lvl, _ := res.Network.LevelOf(op4); lvl != 1 {
		t.Errorf("op4 moved to level %d after its record shrank", lvl)
	}
	if res.Rounds != 3 {
		t.Errorf("Rounds = %d, want 3", res.Rounds)
	}
	if got := res.UnmatchedInputs[op4]; !got.IsEmpty() {
		t.Errorf("record for op4 = %v, want empty once X is available", got)
	}

	var admitted *Diagnostic
	for i, d := range res.Diagnostics {
		if d.Code == CodePartiallyMatched && d.Operation == "op4" {
			admitted = &res.Diagnostics[i]
		}
	}
	if admitted == nil {
		t.Fatalf("Diagnostics = %+v, want partially_matched for op4", res.Diagnostics)
	}
	if !strings.Contains(admitted.Message, "[X]") {
		t.Errorf("partially_matched message = %q, want the inputs missing at admission", admitted.Message)
	}
	// The network only links earlier levels, so X stays unsatisfied there.
	if got := res.Network.UnsatisfiedInputs(op4); !got.Equal(testutil.Set("X")) {
		t.Errorf("UnsatisfiedInputs(op4) = %v, want {X}", got)
	}
}

func TestSearch_DiagnosticsAreOrdered(t *testing.T) {
	t.Parallel()
	idx := testutil.MustMemoryIndex(t, testutil.Op("op1", "A,Q,P,R", "B"))
	req := model.NewRequest([]string{"A"}, []string{"Z3", "Z1", "Z2", "Z0"})
	d := newExact(idx)

	first := mustSearch(t, d, req)
	var unreachable []string
	for _, diag := range first.Diagnostics {
		if diag.Code == CodeGoalUnreachable {
			unreachable = append(unreachable, diag.Message)
		}
	}
	if len(unreachable) != 4 || !slices.IsSorted(unreachable) {
		t.Errorf("goal_unreachable messages = %v, want 4 in sorted order", unreachable)
	}
	for _, diag := range first.Diagnostics {
		if diag.Code == CodeOperationBlocked && !strings.Contains(diag.Message, "[P Q R]") {
			t.Errorf("operation_blocked message = %q, want sorted inputs [P Q R]", diag.Message)
		}
	}

	for range 10 {
		again := mustSearch(t, d, req)
		if !slices.Equal(again.Diagnostics, first.Diagnostics) {
			t.Fatalf("Diagnostics differ between identical searches:\n%+v\n%+v", first.Diagnostics, again.Diagnostics)
		}
	}
}

func TestSearch_PlacesOperationOnce(t *testing.T) {
	t.Parallel()
	// K is produced in level 1 (by op1) and again in level 2 (by op2);
	// op3 consumes K and must only be placed in level 2.
	op1 := testutil.Op("op1", "A", "B,K")
	op2 := testutil.Op("op2", "B", "K")
	op3 := testutil.Op("op3", "K", "Z")
	rec := &testutil.RecordingIndex[string]{Inner: testutil.MustMemoryIndex(t, op1, op2, op3)}
	res := mustSearch(t, newExact(rec), model.NewRequest([]string{"A"}, nil))

	want := [][]string{{"source"}, {"op1"}, {"op2", "op3"}, {"sink"}}
	if got := levelNames(res); !slices.EqualFunc(got, want, slices.Equal) {
		t.Errorf("levels = %v, want %v", got, want)
	}
	queries := rec.Queries()
	if len(queries) != 3 || !queries[2].Contains("K") {
		t.Fatalf("queries = %v, want a third round querying K again", queries)
	}
}

func TestSearch_WaitsForEveryInput(t *testing.T) {
	t.Parallel()
	ops := []*model.Operation[string]{
		testutil.Op("makeB", "A", "B"),
		testutil.Op("makeC", "B", "C"),
		testutil.Op("makeD", "C", "D"),
		testutil.Op("join", "B,C,D", "E"),
	}
	idx := testutil.MustMemoryIndex(t, ops...)
	res := mustSearch(t, newExact(idx), model.NewRequest([]string{"A"}, []string{"E"}))

	if lvl, _ := res.Network.LevelOf(ops[3]); lvl != 4 {
		t.Errorf("join placed at level %d, want 4", lvl)
	}
	if !res.UnmatchedInputs[ops[3]].IsEmpty() {
		t.Errorf("record for join = %v, want empty", res.UnmatchedInputs[ops[3]])
	}
	// join receives one edge from each producer.
	if got := len(res.Network.IncomingEdges(ops[3])); got != 3 {
		t.Errorf("join has %d incoming edges, want 3", got)
	}
}

func TestSearch_StopsWhenGoalsCovered(t *testing.T) {
	t.Parallel()
	idx := testutil.MustMemoryIndex(t, linearChain()...)
	res := mustSearch(t, newExact(idx), model.NewRequest([]string{"A"}, []string{"B"}))

	want := [][]string{{"source"}, {"op1"}, {"sink"}}
	if got := levelNames(res); !slices.EqualFunc(got, want, slices.Equal) {
		t.Errorf("levels = %v, want %v", got, want)
	}
	if res.Rounds != 1 {
		t.Errorf("Rounds = %d, want 1", res.Rounds)
	}
}

func TestSearch_GoalAlreadyAvailable(t *testing.T) {
	t.Parallel()
	idx := testutil.MustMemoryIndex(t, linearChain()...)
	res := mustSearch(t, newExact(idx), model.NewRequest([]string{"A"}, []string{"A"}))

	if res.Rounds != 1 || !res.Satisfied() {
		t.Errorf("Rounds = %d, Satisfied = %v; want 1, true", res.Rounds, res.Satisfied())
	}
	if _, ok := res.Network.Edge(res.Network.Source(), res.Network.Sink()); !ok {
		t.Error("expected a direct source -> sink edge")
	}
}

func TestSearch_EmptyInputs(t *testing.T) {
	t.Parallel()
	rec := &testutil.RecordingIndex[string]{Inner: testutil.MustMemoryIndex(t, linearChain()...)}
	res := mustSearch(t, newExact(rec), model.NewRequest(nil, []string{"D"}))

	if res.Rounds != 1 || len(rec.Queries()) != 1 {
		t.Errorf("Rounds = %d, queries = %d; want 1, 1", res.Rounds, len(rec.Queries()))
	}
	if res.Network.NumberOfLevels() != 2 {
		t.Errorf("NumberOfLevels() = %d, want 2", res.Network.NumberOfLevels())
	}
	if !res.UnmatchedOutputs.Equal(testutil.Set("D")) {
		t.Errorf("UnmatchedOutputs = %v, want {D}", res.UnmatchedOutputs)
	}
	if !hasDiagnostic(res.Diagnostics, CodeEmptyInputs, "") || !hasDiagnostic(res.Diagnostics, CodeGoalUnreachable, "") {
		t.Errorf("Diagnostics = %+v", res.Diagnostics)
	}
}

func TestSearch_Exploratory(t *testing.T) {
	t.Parallel()
	ops := append(linearChain(), testutil.Op("orphan", "Q", "R"))
	idx := testutil.MustMemoryIndex(t, ops...)
	res := mustSearch(t, newExact(idx), model.NewRequest([]string{"A"}, nil))

	want := [][]string{{"source"}, {"op1"}, {"op2"}, {"op3"}, {"sink"}}
	if got := levelNames(res); !slices.EqualFunc(got, want, slices.Equal) {
		t.Errorf("levels = %v, want %v", got, want)
	}
	if !res.Network.Sink().Inputs().IsEmpty() {
		t.Error("exploratory sink must have no inputs")
	}
	if _, seen := res.UnmatchedInputs[ops[3]]; seen {
		t.Error("an operation never returned by the index must not get a record")
	}
}

func TestSearch_DuplicateResultsFromIndex(t *testing.T) {
	t.Parallel()
	rec := &testutil.RecordingIndex[string]{Inner: testutil.MustMemoryIndex(t, linearChain()...), Duplicate: true}
	res := mustSearch(t, newExact(rec), model.NewRequest([]string{"A"}, []string{"D"}))

	if res.Network.Len() != 5 {
		t.Errorf("Len() = %d, want 5", res.Network.Len())
	}
}

func TestSearch_DistinctOperationsWithEqualSignatures(t *testing.T) {
	t.Parallel()
	a := testutil.Op("twin", "A", "B")
	b := testutil.Op("twin", "A", "B")
	idx := testutil.MustMemoryIndex(t, a, b)
	res := mustSearch(t, newExact(idx), model.NewRequest([]string{"A"}, []string{"B"}))

	if got := len(res.Network.OperationsAtLevel(1)); got != 2 {
		t.Errorf("level 1 has %d operations, want 2", got)
	}
}

func TestSearch_TaxonomicMatching(t *testing.T) {
	t.Parallel()
	tax, err := matcher.NewTaxonomy(map[string][]string{
		"SportsCar": {"Car"},
		"Car":       {"Vehicle"},
		"Quote":     {"Document"},
	})
	if err != nil {
		t.Fatalf("NewTaxonomy: %v", err)
	}
	quote := testutil.Op("quote", "Vehicle", "Quote")
	archive := testutil.Op("archive", "Document", "ArchiveId")
	mem := testutil.MustMemoryIndex(t, quote, archive)
	fn := matcher.Taxonomic(tax)

	d := New(index.NewMatchBased(mem, fn), fn, WithLogger(quiet))
	res, err := d.Search(context.Background(), model.NewRequest([]string{"SportsCar"}, []string{"ArchiveId"}))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.Satisfied() || res.Network.NumberOfLevels() != 4 {
		t.Fatalf("levels = %d, unmatched = %v", res.Network.NumberOfLevels(), res.UnmatchedOutputs)
	}
	e, ok := res.Network.Edge(res.Network.Source(), quote)
	if !ok || len(e.Matches) != 1 || e.Matches[0].Score != matcher.DegreePlugin {
		t.Errorf("source -> quote edge = %+v, %v; want one plugin match", e, ok)
	}
}

func TestSearch_IndexFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("index offline")
	rec := &testutil.RecordingIndex[string]{
		Inner:      testutil.MustMemoryIndex(t, linearChain()...),
		FailOnCall: 2,
		FailWith:   boom,
	}
	res, err := newExact(rec).Search(context.Background(), model.NewRequest([]string{"A"}, []string{"D"}))
	if res != nil {
		t.Error("no partial result may be returned on index failure")
	}
	if !errors.Is(err, ErrIndex) || !errors.Is(err, boom) {
		t.Fatalf("error = %v, want ErrIndex wrapping the index error", err)
	}
	var idxErr *IndexError
	if !errors.As(err, &idxErr) || idxErr.Round != 1 {
		t.Errorf("error = %#v, want *IndexError for round 1", err)
	}
}

func TestSearch_ContractViolation(t *testing.T) {
	t.Parallel()
	bogus := matcher.SetFunc[string, matcher.Degree](func(source, target model.Set[string]) *matcher.Result[string, matcher.Degree] {
		r := matcher.NewResult[string, matcher.Degree]()
		for s := range source {
			r.Add(s, s+"?", matcher.DegreeExact)
		}
		return r
	})
	idx := testutil.MustMemoryIndex(t, linearChain()...)
	_, err := New(idx, bogus, WithLogger(quiet)).Search(context.Background(), model.NewRequest([]string{"A"}, []string{"D"}))
	if !errors.Is(err, matcher.ErrContractViolation) {
		t.Errorf("error = %v, want ErrContractViolation", err)
	}
}

func TestSearch_CancelledBetweenRounds(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := testutil.MustMemoryIndex(t, linearChain()...)
	calls := 0
	idx := index.Func[string](func(ctx context.Context, concepts model.Set[string]) ([]*model.Operation[string], error) {
		ops, err := mem.FindOperationsConsumingSome(ctx, concepts)
		calls++
		if calls == 2 {
			cancel()
		}
		return ops, err
	})

	_, err := newExact(idx, WithParallelism(1)).Search(ctx, model.NewRequest([]string{"A"}, []string{"D"}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 2 {
		t.Errorf("index called %d times, want 2 (round in progress completes, next one never starts)", calls)
	}
}

func TestSearch_ConcurrentSearchesAreIndependent(t *testing.T) {
	t.Parallel()
	idx := testutil.MustMemoryIndex(t, append(linearChain(), testutil.Op("op4", "A,X", "Y"))...)
	d := newExact(idx)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			goal := []string{"D"}
			if i%2 == 1 {
				goal = []string{"B"}
			}
			res, err := d.Search(context.Background(), model.NewRequest([]string{"A"}, goal))
			if err != nil {
				errs <- err
				return
			}
			wantLevels := 5
			if i%2 == 1 {
				wantLevels = 3
			}
			if res.Network.NumberOfLevels() != wantLevels {
				errs <- errors.New("unexpected number of levels")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSearch_LogsSummary(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	idx := testutil.MustMemoryIndex(t, linearChain()...)

	if _, err := New(idx, matcher.Exact[string](), WithLogger(logger)).Search(context.Background(), model.NewRequest([]string{"A"}, []string{"D"})); err != nil {
		t.Fatalf("Search: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"potential candidates selected", "operations selected for level", "forward discovery done", "levels=5"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func hasDiagnostic(diags []Diagnostic, code, operation string) bool {
	return slices.ContainsFunc(diags, func(d Diagnostic) bool {
		return d.Code == code && (operation == "" || d.Operation == operation)
	})
}
