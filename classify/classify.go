// Package classify partitions the features of a model into core, dead and free features.
//
// A feature is core if it is selected in every valid product, dead if it is never
// selected, and free otherwise. The classification of N features requires 2N
// calls to the oracle, each one with a single assumption.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/crillab/pledge/oracle"
	"github.com/crillab/pledge/progress"
)

var (
	// ErrClassificationFailed is returned when the oracle failed, even after being rebuilt.
	ErrClassificationFailed = errors.New("classification failed")
	// ErrUnsatisfiable is returned when the model has no valid product at all.
	ErrUnsatisfiable = errors.New("feature model is unsatisfiable")
)

// Kind is the kind of a feature.
type Kind byte

const (
	// Free features are selected in some valid products, deselected in others.
	Free = Kind(iota)
	// Core features are selected in all valid products.
	Core
	// Dead features are never selected.
	Dead
)

func (k Kind) String() string {
	switch k {
	case Free:
		return "Free"
	case Core:
		return "Core"
	case Dead:
		return "Dead"
	default:
		panic("invalid feature kind")
	}
}

// A Classification associates each feature with its kind.
// It is read-only once computed.
type Classification struct {
	kinds []Kind // kinds[f-1] is the kind of feature f
}

// New returns a classification from the kinds of features 1..len(kinds).
func New(kinds []Kind) *Classification {
	cp := make([]Kind, len(kinds))
	copy(cp, kinds)
	return &Classification{kinds: cp}
}

// NbFeatures is the number of classified features.
func (c *Classification) NbFeatures() int { return len(c.kinds) }

// Kinds returns the kinds of features 1..NbFeatures.
func (c *Classification) Kinds() []Kind {
	res := make([]Kind, len(c.kinds))
	copy(res, c.kinds)
	return res
}

// Kind returns the kind of feature f.
// Features out of range are considered free.
func (c *Classification) Kind(f int) Kind {
	if f < 0 {
		f = -f
	}
	if f < 1 || f > len(c.kinds) {
		return Free
	}
	return c.kinds[f-1]
}

func (c *Classification) features(k Kind) []int {
	var res []int
	for i, kind := range c.kinds {
		if kind == k {
			res = append(res, i+1)
		}
	}
	return res
}

// Core returns the core features, in increasing order.
func (c *Classification) Core() []int { return c.features(Core) }

// Dead returns the dead features, in increasing order.
func (c *Classification) Dead() []int { return c.features(Dead) }

// Free returns the free features, in increasing order.
func (c *Classification) Free() []int { return c.features(Free) }

// Classify classifies the features of the model behind o.
// report, if not nil, is called after each feature.
// If the oracle fails, it is rebuilt once and the failing query is retried.
func Classify(ctx context.Context, o oracle.Oracle, report progress.Func) (*Classification, error) {
	retried := false
	query := func(lits ...int) (bool, error) {
		sat, err := o.Satisfiable(lits)
		var serr *oracle.SolverError
		if err == nil || !errors.As(err, &serr) {
			return sat, err
		}
		if retried {
			return false, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
		}
		retried = true
		if o, err = o.Rebuild(); err != nil {
			return false, fmt.Errorf("%w: could not rebuild oracle: %v", ErrClassificationFailed, err)
		}
		if sat, err = o.Satisfiable(lits); err != nil {
			return false, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
		}
		return sat, nil
	}
	sat, err := query()
	if err != nil {
		return nil, err
	}
	if !sat {
		return nil, ErrUnsatisfiable
	}
	n := o.NbFeatures()
	kinds := make([]Kind, n)
	report.Report(progress.Classify, 0)
	for f := 1; f <= n; f++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		canBeDeselected, err := query(-f)
		if err != nil {
			return nil, fmt.Errorf("could not classify feature %d: %w", f, err)
		}
		canBeSelected, err := query(f)
		if err != nil {
			return nil, fmt.Errorf("could not classify feature %d: %w", f, err)
		}
		switch {
		case !canBeDeselected:
			kinds[f-1] = Core
		case !canBeSelected:
			kinds[f-1] = Dead
		default:
			kinds[f-1] = Free
		}
		report.Ratio(progress.Classify, f, n)
	}
	return &Classification{kinds: kinds}, nil
}
