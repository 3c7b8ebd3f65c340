package oracle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crillab/gophersat/solver"
	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
)

// DefaultBackend is the backend used when none is specified.
const DefaultBackend = "gophersat"

// An Engine is a SAT solver instance, working on DIMACS literals.
type Engine interface {
	// Solve solves the problem under the given assumptions, that only hold for this call.
	Solve(assumptions []int) (bool, error)
	// Value returns the binding of var v in the last model found.
	Value(v int) bool
	// AddClause adds a clause to the problem.
	AddClause(lits []int) error
}

// A Factory creates an engine for a problem over nbVars vars.
type Factory func(nbVars int, clauses [][]int) (Engine, error)

var backends = map[string]Factory{
	"gophersat": newGophersat,
	"gini":      newGini,
}

// Register makes a backend available under the given name.
// It panics if the name is already taken.
func Register(name string, f Factory) {
	if _, ok := backends[name]; ok {
		panic(fmt.Sprintf("backend %q already registered", name))
	}
	backends[name] = f
}

// Backends lists the registered backends.
func Backends() []string {
	res := make([]string, 0, len(backends))
	for name := range backends {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// CheckBackend returns an error if no backend is registered under the given name.
func CheckBackend(name string) error {
	_, err := lookup(name)
	return err
}

func lookup(name string) (Factory, error) {
	if name == "" {
		name = DefaultBackend
	}
	f, ok := backends[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %s)", name, strings.Join(Backends(), ", "))
	}
	return f, nil
}

// gophersatEngine solves each query from scratch with a new gophersat solver.
// Learned clauses are lost between calls, but assumptions and added clauses
// never interfere with the solver's internal state.
type gophersatEngine struct {
	clauses [][]int
	model   []bool
}

func newGophersat(nbVars int, clauses [][]int) (Engine, error) {
	cp := make([][]int, len(clauses))
	copy(cp, clauses)
	return &gophersatEngine{clauses: cp}, nil
}

func (e *gophersatEngine) Solve(assumptions []int) (bool, error) {
	cnf := make([][]int, len(e.clauses), len(e.clauses)+len(assumptions))
	copy(cnf, e.clauses)
	for _, lit := range assumptions {
		cnf = append(cnf, []int{lit})
	}
	pb := solver.ParseSlice(cnf)
	s := solver.New(pb)
	switch s.Solve() {
	case solver.Sat:
		e.model = s.Model()
		return true, nil
	case solver.Unsat:
		return false, nil
	default:
		return false, fmt.Errorf("indeterminate status")
	}
}

func (e *gophersatEngine) Value(v int) bool {
	if v < 1 || v > len(e.model) {
		return false
	}
	return e.model[v-1]
}

func (e *gophersatEngine) AddClause(lits []int) error {
	cp := make([]int, len(lits))
	copy(cp, lits)
	e.clauses = append(e.clauses, cp)
	return nil
}

// giniEngine is an incremental gini solver.
type giniEngine struct {
	g *gini.Gini
}

func newGini(nbVars int, clauses [][]int) (Engine, error) {
	e := &giniEngine{g: gini.New()}
	for _, clause := range clauses {
		if err := e.AddClause(clause); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *giniEngine) Solve(assumptions []int) (bool, error) {
	if len(assumptions) > 0 {
		lits := make([]z.Lit, len(assumptions))
		for i, lit := range assumptions {
			lits[i] = z.Dimacs2Lit(lit)
		}
		e.g.Assume(lits...)
	}
	switch e.g.Solve() {
	case 1:
		return true, nil
	case -1:
		return false, nil
	default:
		return false, fmt.Errorf("unknown status")
	}
}

func (e *giniEngine) Value(v int) bool {
	return e.g.Value(z.Dimacs2Lit(v))
}

func (e *giniEngine) AddClause(lits []int) error {
	for _, lit := range lits {
		if lit == 0 {
			return fmt.Errorf("null literal in clause")
		}
		e.g.Add(z.Dimacs2Lit(lit))
	}
	e.g.Add(z.LitNull)
	return nil
}
