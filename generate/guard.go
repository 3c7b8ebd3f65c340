package generate

import (
	"errors"
	"fmt"

	"github.com/crillab/pledge/oracle"
	"github.com/crillab/pledge/product"
)

// guard wraps an oracle, rebuilding it when it is exhausted or when it fails.
// A failure is retried once on a rebuilt oracle; the next one is fatal.
type guard struct {
	o        oracle.Oracle
	retried  bool
	rebuilds int
}

func (g *guard) rebuild() error {
	o, err := g.o.Rebuild()
	if err != nil {
		return err
	}
	g.o = o
	g.rebuilds++
	return nil
}

// call runs fn, and runs it again on a rebuilt oracle if it failed with a SolverError.
func (g *guard) call(fn func() error) error {
	err := fn()
	var serr *oracle.SolverError
	if err == nil || !errors.As(err, &serr) {
		return err
	}
	if g.retried {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	g.retried = true
	if err := g.rebuild(); err != nil {
		return fmt.Errorf("%w: could not rebuild oracle: %v", ErrGenerationFailed, err)
	}
	if err := fn(); err != nil {
		if errors.As(err, &serr) {
			return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		return err
	}
	return nil
}

func (g *guard) satisfiable(lits []int) (bool, error) {
	var sat bool
	err := g.call(func() (err error) {
		sat, err = g.o.Satisfiable(lits)
		return err
	})
	return sat, err
}

// next returns the next product of the current enumeration.
// Exhaustion errors are returned as is.
func (g *guard) next() (*product.Product, error) {
	var model []int
	err := g.call(func() (err error) {
		model, err = g.o.NextModel()
		return err
	})
	if err != nil {
		return nil, err
	}
	return product.New(model)
}

// draw returns a valid product, rebuilding the oracle whenever its enumeration is over.
// The model must be satisfiable.
func (g *guard) draw() (*product.Product, error) {
	for {
		p, err := g.next()
		if errors.Is(err, oracle.ErrExhausted) || errors.Is(err, oracle.ErrNoMoreModels) {
			if err := g.rebuild(); err != nil {
				return nil, fmt.Errorf("%w: could not rebuild oracle: %v", ErrGenerationFailed, err)
			}
			continue
		}
		return p, err
	}
}
