package classify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crillab/gophersat/explain"
	"github.com/crillab/gophersat/solver"

	"github.com/crillab/pledge/fm"
)

// ErrNotForced is returned by Explain when the literal to explain can actually hold.
var ErrNotForced = errors.New("literal is not forced by the model")

// Explain returns a minimal subset of the clauses of m explaining why lit can never hold.
// To know why feature f is core, call Explain(m, -f); to know why it is dead, call Explain(m, f).
// Removing any clause from the result would make lit possible.
func Explain(m *fm.Model, lit int) ([][]int, error) {
	if lit == 0 || abs(lit) > m.NbVars {
		return nil, fmt.Errorf("invalid literal %d", lit)
	}
	clauses := make([][]int, 0, len(m.Clauses)+1)
	clauses = append(clauses, m.Clauses...)
	clauses = append(clauses, []int{lit})
	if solver.New(solver.ParseSlice(clauses)).Solve() == solver.Sat {
		return nil, fmt.Errorf("%w: %d", ErrNotForced, lit)
	}
	pb, err := explain.ParseCNF(strings.NewReader(dimacs(m.NbVars, clauses)))
	if err != nil {
		return nil, fmt.Errorf("could not build explanation problem: %v", err)
	}
	mus, err := pb.MUS()
	if err != nil || len(mus.Clauses) == 0 {
		// Conflicting units are refuted at parse time, without a certificate to extract a subset from.
		if mus, err = pb.MUSMaxSat(); err != nil {
			return nil, fmt.Errorf("could not compute explanation: %v", err)
		}
	}
	in := make(map[string]bool, len(mus.Clauses))
	for _, clause := range mus.Clauses {
		in[clauseKey(clause)] = true
	}
	var res [][]int
	for _, clause := range m.Clauses {
		if in[clauseKey(clause)] {
			res = append(res, clause)
		}
	}
	return res, nil
}

func clauseKey(clause []int) string {
	return fmt.Sprint(clause)
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

func dimacs(nbVars int, clauses [][]int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "p cnf %d %d\n", nbVars, len(clauses))
	for _, clause := range clauses {
		for _, lit := range clause {
			fmt.Fprintf(&sb, "%d ", lit)
		}
		sb.WriteString("0\n")
	}
	return sb.String()
}

// Describe formats clauses using the feature names of m, e.g. "!gui | cli".
func Describe(m *fm.Model, clauses [][]int) []string {
	res := make([]string, len(clauses))
	for i, clause := range clauses {
		lits := make([]string, len(clause))
		for j, lit := range clause {
			if lit < 0 {
				lits[j] = "!" + m.FeatureName(lit)
			} else {
				lits[j] = m.FeatureName(lit)
			}
		}
		res[i] = strings.Join(lits, " | ")
	}
	return res
}
