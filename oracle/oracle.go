// Package oracle answers satisfiability queries and enumerates models of a feature model.
//
// An oracle is built from an fm.Model and one of the registered SAT backends
// ("gophersat", the default, or "gini"). Every build relabels the variables of the model
// with a random permutation and random polarities, so that the models enumerated by
// the backend, which are biased by its default decision heuristics, are unpredictable
// from one build to another.
//
// An oracle caps the number of models it enumerates. Once the cap is reached, NextModel
// returns ErrExhausted and the caller is expected to Rebuild the oracle. When the whole
// solution space was enumerated, NextModel returns ErrNoMoreModels.
//
// Oracles are not safe for concurrent use.
package oracle

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/crillab/pledge/fm"
	"github.com/crillab/pledge/metrics"
)

// DefaultEnumerationCap is the number of models an oracle enumerates before being exhausted.
const DefaultEnumerationCap = 256

var (
	// ErrExhausted is returned by NextModel when the oracle reached its enumeration cap.
	ErrExhausted = errors.New("oracle enumeration capacity exhausted")
	// ErrNoMoreModels is returned by NextModel when all models were enumerated.
	ErrNoMoreModels = errors.New("no more models")
)

// A SolverError is an internal failure of a backend.
type SolverError struct {
	Op  string
	Err error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver error during %s: %v", e.Op, e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }

// An Oracle is a satisfiability and model enumeration service over a feature model.
type Oracle interface {
	// NbFeatures is the number of features of the model.
	NbFeatures() int
	// Satisfiable indicates whether the model is satisfiable when the given literals are assumed.
	// Assumptions only hold for this call.
	Satisfiable(assumptions []int) (bool, error)
	// NextModel returns a model not returned before by this oracle, as a literal for each feature.
	NextModel() ([]int, error)
	// Rebuild returns a fresh oracle over the same model.
	Rebuild() (Oracle, error)
}

// Options configure an oracle.
type Options struct {
	Backend        string // Name of the backend. Empty means DefaultBackend.
	EnumerationCap int    // Number of models enumerated before ErrExhausted. 0 means DefaultEnumerationCap.
	Seed           int64  // Seed of the relabeling. 0 means a time-based seed.
	Metrics        *metrics.Metrics
}

// Handle is the Oracle built on a registered backend.
type Handle struct {
	model    *fm.Model
	opts     Options
	factory  Factory
	rng      *rand.Rand
	perm     []int  // perm[v] is the internal var of model var v
	flip     []bool // flip[v] is true iff v is negated internally
	query    Engine
	enum     Engine
	nbModels int
	done     bool
	builds   int
}

// New builds an oracle for m.
func New(m *fm.Model, opts Options) (*Handle, error) {
	factory, err := lookup(opts.Backend)
	if err != nil {
		return nil, err
	}
	if opts.EnumerationCap <= 0 {
		opts.EnumerationCap = DefaultEnumerationCap
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	h := &Handle{
		model:   m,
		opts:    opts,
		factory: factory,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		builds:  1,
	}
	if err := h.build(); err != nil {
		return nil, err
	}
	return h, nil
}

// build relabels the model and creates the backend engines.
func (h *Handle) build() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SolverError{Op: "build", Err: fmt.Errorf("%v", r)}
		}
	}()
	nbVars := h.model.NbVars
	h.perm = make([]int, nbVars+2)
	h.flip = make([]bool, nbVars+2)
	for i, p := range h.rng.Perm(nbVars) {
		h.perm[i+1] = p + 1
		h.flip[i+1] = h.rng.Intn(2) == 0
	}
	// Variables absent from all clauses are made known to the backend through
	// a clause with a dummy variable, which leaves them unconstrained.
	dummy := nbVars + 1
	h.perm[dummy] = dummy
	used := make([]bool, nbVars+1)
	clauses := make([][]int, 0, len(h.model.Clauses)+1)
	for _, clause := range h.model.Clauses {
		lits := make([]int, len(clause))
		for i, lit := range clause {
			used[abs(lit)] = true
			lits[i] = h.internal(lit)
		}
		clauses = append(clauses, lits)
	}
	for v := 1; v <= nbVars; v++ {
		if !used[v] {
			clauses = append(clauses, []int{h.internal(v), dummy})
		}
	}
	total := nbVars
	if len(clauses) > len(h.model.Clauses) {
		total = dummy
	}
	if h.query, err = h.factory(total, clauses); err != nil {
		return &SolverError{Op: "build", Err: err}
	}
	if h.enum, err = h.factory(total, clauses); err != nil {
		return &SolverError{Op: "build", Err: err}
	}
	h.nbModels = 0
	h.done = false
	return nil
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// internal converts a model literal to its relabeled counterpart.
func (h *Handle) internal(lit int) int {
	v := abs(lit)
	res := h.perm[v]
	if h.flip[v] {
		res = -res
	}
	if lit < 0 {
		return -res
	}
	return res
}

// NbFeatures is the number of features of the model.
func (h *Handle) NbFeatures() int { return h.model.NbFeatures() }

// Model returns the feature model the oracle was built from.
func (h *Handle) Model() *fm.Model { return h.model }

// Builds is the number of times the oracle was built, including rebuilds that led to h.
func (h *Handle) Builds() int { return h.builds }

// Satisfiable indicates whether the model is satisfiable under the given assumptions.
func (h *Handle) Satisfiable(assumptions []int) (sat bool, err error) {
	h.opts.Metrics.OracleCall("satisfiable")
	lits := make([]int, len(assumptions))
	for i, lit := range assumptions {
		if lit == 0 || abs(lit) > h.model.NbVars {
			return false, fmt.Errorf("invalid assumption %d for model with %d vars", lit, h.model.NbVars)
		}
		lits[i] = h.internal(lit)
	}
	defer func() {
		if r := recover(); r != nil {
			err = &SolverError{Op: "satisfiable", Err: fmt.Errorf("%v", r)}
		}
	}()
	sat, err = h.query.Solve(lits)
	if err != nil {
		return false, &SolverError{Op: "satisfiable", Err: err}
	}
	return sat, nil
}

// NextModel returns the next model of the enumeration.
// The returned literals are the features 1..NbFeatures, in order.
func (h *Handle) NextModel() (model []int, err error) {
	if h.done {
		return nil, ErrNoMoreModels
	}
	if h.nbModels >= h.opts.EnumerationCap {
		return nil, ErrExhausted
	}
	h.opts.Metrics.OracleCall("next")
	defer func() {
		if r := recover(); r != nil {
			model = nil
			err = &SolverError{Op: "next model", Err: fmt.Errorf("%v", r)}
		}
	}()
	sat, err := h.enum.Solve(nil)
	if err != nil {
		return nil, &SolverError{Op: "next model", Err: err}
	}
	if !sat {
		h.done = true
		return nil, ErrNoMoreModels
	}
	nbFeatures := h.model.NbFeatures()
	model = make([]int, nbFeatures)
	block := make([]int, nbFeatures)
	for f := 1; f <= nbFeatures; f++ {
		iv := h.perm[f]
		val := h.enum.Value(iv)
		if h.flip[f] {
			val = !val
		}
		if val {
			model[f-1] = f
		} else {
			model[f-1] = -f
		}
		// The blocking clause forbids the current projection on features.
		block[f-1] = -h.internal(model[f-1])
	}
	if err := h.enum.AddClause(block); err != nil {
		return nil, &SolverError{Op: "next model", Err: err}
	}
	h.nbModels++
	return model, nil
}

// Rebuild returns a new oracle over the same model, with a fresh relabeling.
func (h *Handle) Rebuild() (Oracle, error) {
	h.opts.Metrics.Rebuild()
	opts := h.opts
	opts.Seed = h.rng.Int63() | 1
	res, err := New(h.model, opts)
	if err != nil {
		return nil, err
	}
	res.builds = h.builds + 1
	return res, nil
}
