package oracle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/crillab/pledge/fm"
)

func abcModel() *fm.Model {
	// A is core, C is dead, B is free.
	return fm.New("abc", []string{"A", "B", "C"}, [][]int{{1}, {-3}})
}

// satisfies is true iff model satisfies all clauses of m.
func satisfies(m *fm.Model, model []int) bool {
	vals := make(map[int]bool)
	for _, lit := range model {
		vals[lit] = true
	}
	for _, clause := range m.Clauses {
		sat := false
		for _, lit := range clause {
			if vals[lit] {
				sat = true
				break
			}
		}
		if !sat {
			return false
		}
	}
	return true
}

func enumerateAll(t *testing.T, o Oracle) map[string]bool {
	t.Helper()
	seen := make(map[string]bool)
	for {
		model, err := o.NextModel()
		if errors.Is(err, ErrNoMoreModels) {
			return seen
		}
		if err != nil {
			t.Fatalf("unexpected error while enumerating: %v", err)
		}
		key := fmt.Sprint(model)
		if seen[key] {
			t.Fatalf("model %s enumerated twice", key)
		}
		seen[key] = true
	}
}

func TestSatisfiable(t *testing.T) {
	for _, backend := range Backends() {
		o, err := New(abcModel(), Options{Backend: backend, Seed: 7})
		if err != nil {
			t.Fatalf("%s: could not build oracle: %v", backend, err)
		}
		tests := []struct {
			assumptions []int
			expected    bool
		}{
			{nil, true},
			{[]int{-1}, false},
			{[]int{1}, true},
			{[]int{2}, true},
			{[]int{-2}, true},
			{[]int{3}, false},
			{[]int{1, 2, -3}, true},
			{[]int{1, -2, 3}, false},
		}
		for _, test := range tests {
			sat, err := o.Satisfiable(test.assumptions)
			if err != nil {
				t.Errorf("%s: unexpected error for %v: %v", backend, test.assumptions, err)
			} else if sat != test.expected {
				t.Errorf("%s: expected %t for assumptions %v, got %t", backend, test.expected, test.assumptions, sat)
			}
		}
		// Assumptions must not persist across calls.
		if sat, _ := o.Satisfiable([]int{-2}); !sat {
			t.Errorf("%s: assumption leaked from a previous call", backend)
		}
		if _, err := o.Satisfiable([]int{4}); err == nil {
			t.Errorf("%s: expected error for out of range assumption", backend)
		}
	}
}

func TestEnumerate(t *testing.T) {
	for _, backend := range Backends() {
		m := abcModel()
		o, err := New(m, Options{Backend: backend, Seed: 3})
		if err != nil {
			t.Fatalf("%s: could not build oracle: %v", backend, err)
		}
		seen := enumerateAll(t, o)
		if len(seen) != 2 {
			t.Errorf("%s: expected 2 models, got %v", backend, seen)
		}
		for key := range seen {
			if key != "[1 2 -3]" && key != "[1 -2 -3]" {
				t.Errorf("%s: unexpected model %s", backend, key)
			}
		}
		if _, err := o.NextModel(); !errors.Is(err, ErrNoMoreModels) {
			t.Errorf("%s: expected ErrNoMoreModels after enumeration, got %v", backend, err)
		}
	}
}

func TestEnumerateUnconstrained(t *testing.T) {
	m := fm.New("free", []string{"root", "x", "y"}, [][]int{{1}})
	for _, backend := range Backends() {
		o, err := New(m, Options{Backend: backend})
		if err != nil {
			t.Fatalf("%s: could not build oracle: %v", backend, err)
		}
		seen := enumerateAll(t, o)
		if len(seen) != 4 {
			t.Errorf("%s: expected 4 models, got %d", backend, len(seen))
		}
	}
}

func TestEnumerateValid(t *testing.T) {
	m := fm.New("chain", []string{"a", "b", "c", "d", "e"}, [][]int{{1}, {-2, 1}, {-3, 2}, {-4, -5}, {4, 5, 3}})
	for _, backend := range Backends() {
		o, err := New(m, Options{Backend: backend, Seed: 11})
		if err != nil {
			t.Fatalf("%s: could not build oracle: %v", backend, err)
		}
		for {
			model, err := o.NextModel()
			if errors.Is(err, ErrNoMoreModels) {
				break
			}
			if err != nil {
				t.Fatalf("%s: %v", backend, err)
			}
			if !satisfies(m, model) {
				t.Errorf("%s: invalid model %v", backend, model)
			}
		}
	}
}

func TestExhaustedAndRebuild(t *testing.T) {
	o, err := New(abcModel(), Options{EnumerationCap: 1, Seed: 5})
	if err != nil {
		t.Fatalf("could not build oracle: %v", err)
	}
	if _, err := o.NextModel(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.NextModel(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	o2, err := o.Rebuild()
	if err != nil {
		t.Fatalf("could not rebuild oracle: %v", err)
	}
	if h := o2.(*Handle); h.Builds() != 2 {
		t.Errorf("expected 2 builds, got %d", h.Builds())
	}
	if _, err := o2.NextModel(); err != nil {
		t.Errorf("rebuilt oracle should enumerate again, got %v", err)
	}
}

func TestUnsatisfiable(t *testing.T) {
	m := fm.New("unsat", []string{"a"}, [][]int{{1}, {-1}})
	for _, backend := range Backends() {
		o, err := New(m, Options{Backend: backend})
		if err != nil {
			t.Fatalf("%s: could not build oracle: %v", backend, err)
		}
		if sat, err := o.Satisfiable(nil); err != nil || sat {
			t.Errorf("%s: expected unsat, got %t (%v)", backend, sat, err)
		}
		if _, err := o.NextModel(); !errors.Is(err, ErrNoMoreModels) {
			t.Errorf("%s: expected ErrNoMoreModels, got %v", backend, err)
		}
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := New(abcModel(), Options{Backend: "minisat"}); err == nil {
		t.Errorf("expected error for unknown backend")
	}
}

type failingEngine struct{}

func (failingEngine) Solve([]int) (bool, error) { panic("corrupted solver") }
func (failingEngine) Value(int) bool            { return false }
func (failingEngine) AddClause([]int) error     { return nil }

func TestSolverError(t *testing.T) {
	Register("failing", func(int, [][]int) (Engine, error) { return failingEngine{}, nil })
	defer delete(backends, "failing")
	o, err := New(abcModel(), Options{Backend: "failing"})
	if err != nil {
		t.Fatalf("could not build oracle: %v", err)
	}
	var serr *SolverError
	if _, err := o.Satisfiable(nil); !errors.As(err, &serr) {
		t.Errorf("expected SolverError, got %v", err)
	}
	if _, err := o.NextModel(); !errors.As(err, &serr) {
		t.Errorf("expected SolverError, got %v", err)
	}
}
