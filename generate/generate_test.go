package generate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/crillab/pledge/classify"
	"github.com/crillab/pledge/distance"
	"github.com/crillab/pledge/fm"
	"github.com/crillab/pledge/oracle"
	"github.com/crillab/pledge/product"
	"github.com/crillab/pledge/progress"
)

func newOracle(t *testing.T, m *fm.Model, cap int) oracle.Oracle {
	t.Helper()
	o, err := oracle.New(m, oracle.Options{EnumerationCap: cap, Seed: 42})
	if err != nil {
		t.Fatalf("could not build oracle: %v", err)
	}
	return o
}

// freeModel has n unconstrained features.
func freeModel(n int) *fm.Model {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("f%d", i+1)
	}
	return fm.New("free", names, nil)
}

// mixedModel has a core feature 1, a dead feature 2, and free features 3 to 8, with 3 requiring 4.
func mixedModel() *fm.Model {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	return fm.New("mixed", names, [][]int{{1}, {-2}, {-3, 4}})
}

func valid(m *fm.Model, p *product.Product) bool {
	for _, clause := range m.Clauses {
		sat := false
		for _, lit := range clause {
			if p.Has(lit) {
				sat = true
				break
			}
		}
		if !sat {
			return false
		}
	}
	return p.Complete(m.NbFeatures())
}

func checkProducts(t *testing.T, m *fm.Model, res *Result, max int) {
	t.Helper()
	if len(res.Products) > max {
		t.Errorf("expected at most %d products, got %d", max, len(res.Products))
	}
	seen := make(map[string]bool)
	for _, p := range res.Products {
		if seen[p.Key()] {
			t.Errorf("product %v generated twice", p)
		}
		seen[p.Key()] = true
		if !valid(m, p) {
			t.Errorf("invalid product %v", p)
		}
	}
}

func TestUnpredictableSpaceCovered(t *testing.T) {
	m := fm.New("abc", []string{"A", "B", "C"}, [][]int{{1}, {-3}})
	res, err := Unpredictable{}.Generate(context.Background(), newOracle(t, m, 0), nil, Options{Count: 5})
	if err != nil {
		t.Fatalf("could not generate: %v", err)
	}
	checkProducts(t, m, res, 5)
	if len(res.Products) != 2 {
		t.Errorf("expected 2 products, got %d", len(res.Products))
	}
	if res.Status != StatusSpaceCovered {
		t.Errorf("expected status %v, got %v", StatusSpaceCovered, res.Status)
	}
	for _, p := range res.Products {
		if !p.Has(1) || !p.Has(-3) {
			t.Errorf("product %v should contain 1 and -3", p)
		}
	}
}

func TestUnpredictableRebuilds(t *testing.T) {
	m := freeModel(4)
	res, err := Unpredictable{}.Generate(context.Background(), newOracle(t, m, 3), nil, Options{Count: 10})
	if err != nil {
		t.Fatalf("could not generate: %v", err)
	}
	checkProducts(t, m, res, 10)
	if len(res.Products) != 10 || res.Status != StatusComplete {
		t.Errorf("expected 10 products and status complete, got %d and %v", len(res.Products), res.Status)
	}
	if res.Rebuilds < 3 {
		t.Errorf("expected at least 3 rebuilds, got %d", res.Rebuilds)
	}
}

func TestUnpredictableAll(t *testing.T) {
	m := freeModel(3)
	res, err := Unpredictable{}.Generate(context.Background(), newOracle(t, m, 2), nil, Options{Count: 100})
	if err != nil {
		t.Fatalf("could not generate: %v", err)
	}
	checkProducts(t, m, res, 8)
	if res.Status != StatusSpaceCovered && res.Status != StatusSaturated {
		t.Errorf("unexpected status %v", res.Status)
	}
	if res.Status == StatusSpaceCovered && len(res.Products) != 8 {
		t.Errorf("expected all 8 products, got %d", len(res.Products))
	}
}

func TestUnpredictableUnsat(t *testing.T) {
	m := fm.New("unsat", []string{"a"}, [][]int{{1}, {-1}})
	res, err := Unpredictable{}.Generate(context.Background(), newOracle(t, m, 0), nil, Options{Count: 3})
	if err != nil {
		t.Fatalf("could not generate: %v", err)
	}
	if res.Status != StatusUnsatisfiable || len(res.Products) != 0 {
		t.Errorf("expected empty unsatisfiable result, got %d products and status %v", len(res.Products), res.Status)
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, name := range Names() {
		s, err := Lookup(name)
		if err != nil {
			t.Fatalf("could not find strategy %q: %v", name, err)
		}
		res, err := s.Generate(ctx, newOracle(t, freeModel(5), 0), nil, Options{Count: 4})
		if err != nil {
			t.Fatalf("%s: expected partial result, got error %v", name, err)
		}
		if res.Status != StatusCancelled || len(res.Products) != 0 {
			t.Errorf("%s: expected empty cancelled result, got %d products and status %v", name, len(res.Products), res.Status)
		}
	}
}

func TestEvolutionary(t *testing.T) {
	m := mixedModel()
	o := newOracle(t, m, 0)
	c, err := classify.Classify(context.Background(), o, nil)
	if err != nil {
		t.Fatalf("could not classify: %v", err)
	}
	var events []progress.Event
	opts := Options{
		Count:    8,
		Metric:   distance.Jaccard,
		MaxStall: 50,
		Rand:     rand.New(rand.NewSource(1)),
		Report:   func(ev progress.Event) { events = append(events, ev) },
	}
	res, err := Evolutionary{}.Generate(context.Background(), o, c, opts)
	if err != nil {
		t.Fatalf("could not generate: %v", err)
	}
	checkProducts(t, m, res, 8)
	if len(res.Products) != 8 {
		t.Errorf("expected 8 products, got %d", len(res.Products))
	}
	if res.Status != StatusStalled {
		t.Errorf("expected status stalled, got %v", res.Status)
	}
	if res.Generations < opts.MaxStall {
		t.Errorf("expected at least %d generations, got %d", opts.MaxStall, res.Generations)
	}
	for _, p := range res.Products {
		if !p.Has(1) || !p.Has(-2) {
			t.Errorf("core or dead feature flipped in %v", p)
		}
	}
	seeding := false
	for i, ev := range events {
		if ev.Percent > 0 && ev.Percent <= seedShare {
			seeding = true
		}
		if i > 0 && ev.Percent < events[i-1].Percent {
			t.Errorf("progress went back from %d%% to %d%%", events[i-1].Percent, ev.Percent)
		}
	}
	if !seeding {
		t.Errorf("no progress reported while seeding: %v", events)
	}
	if len(events) == 0 || events[len(events)-1].Percent != 100 {
		t.Errorf("expected progress to end at 100%%, got %v", events)
	}
}

func TestEvolutionaryDeadline(t *testing.T) {
	m := freeModel(12)
	opts := Options{Count: 5, Budget: 50 * time.Millisecond, MaxStall: 1 << 30, Rand: rand.New(rand.NewSource(2))}
	res, err := Evolutionary{}.Generate(context.Background(), newOracle(t, m, 0), nil, opts)
	if err != nil {
		t.Fatalf("could not generate: %v", err)
	}
	checkProducts(t, m, res, 5)
	if res.Status != StatusDeadline {
		t.Errorf("expected status deadline, got %v", res.Status)
	}
}

// failingOracle fails all its queries.
type failingOracle struct{ rebuilds *int }

func (o failingOracle) NbFeatures() int { return 1 }

func (o failingOracle) Satisfiable([]int) (bool, error) {
	return false, &oracle.SolverError{Op: "satisfiable", Err: errors.New("boom")}
}

func (o failingOracle) NextModel() ([]int, error) {
	return nil, &oracle.SolverError{Op: "next model", Err: errors.New("boom")}
}

func (o failingOracle) Rebuild() (oracle.Oracle, error) {
	*o.rebuilds++
	return o, nil
}

func TestGenerationFailed(t *testing.T) {
	for _, name := range Names() {
		rebuilds := 0
		s, _ := Lookup(name)
		_, err := s.Generate(context.Background(), failingOracle{rebuilds: &rebuilds}, nil, Options{Count: 2})
		if !errors.Is(err, ErrGenerationFailed) {
			t.Errorf("%s: expected ErrGenerationFailed, got %v", name, err)
		}
		if rebuilds != 1 {
			t.Errorf("%s: expected exactly 1 rebuild, got %d", name, rebuilds)
		}
	}
}

func TestLookup(t *testing.T) {
	if got := Names(); !reflect.DeepEqual(got, []string{"evolutionary", "unpredictable"}) {
		t.Errorf("unexpected strategies %v", got)
	}
	if _, err := Lookup("Unpredictable"); err != nil {
		t.Errorf("lookup should be case insensitive: %v", err)
	}
	if _, err := Lookup("random"); err == nil {
		t.Errorf("expected error for unknown strategy")
	}
}

func ExampleStatus() {
	fmt.Println(StatusComplete, StatusDeadline, StatusSpaceCovered)
	// Output: complete deadline space-covered
}
