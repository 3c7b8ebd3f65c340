// Package distance provides normalized set-based distances between products.
//
// All distances are computed on the literal sets of the products.
// Given I the number of literals both products share, and U the number of
// features bound in at least one of them, the distance with weight w is
//
//	1 - I / (I + w * (U - I))
//
// A weight of 1 gives the Jaccard distance, 0.5 the Dice (Gower-Legendre) distance
// and 2 the Anti-Dice (Sokal-Sneath) distance.
// The result is symmetric, in [0, 1], and 0 iff both products have the same literals.
package distance

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/crillab/pledge/product"
)

// ErrDomain is returned when a distance cannot be computed on its input.
var ErrDomain = errors.New("distance undefined")

// A Metric is a named set-based distance.
type Metric struct {
	Name   string
	Weight float64
}

// Predefined metrics.
var (
	Jaccard  = Metric{Name: "jaccard", Weight: 1}
	Dice     = Metric{Name: "dice", Weight: 0.5}
	AntiDice = Metric{Name: "anti-dice", Weight: 2}
)

var metrics = map[string]Metric{
	Jaccard.Name:  Jaccard,
	Dice.Name:     Dice,
	AntiDice.Name: AntiDice,
}

// Lookup returns the predefined metric with the given name.
func Lookup(name string) (Metric, error) {
	m, ok := metrics[strings.ToLower(name)]
	if !ok {
		return Metric{}, fmt.Errorf("unknown distance %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return m, nil
}

// Names lists the names of the predefined metrics.
func Names() []string {
	res := make([]string, 0, len(metrics))
	for name := range metrics {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Distance computes the distance between p1 and p2.
func (m Metric) Distance(p1, p2 *product.Product) (float64, error) {
	return Weighted(p1, p2, m.Weight)
}

func (m Metric) String() string { return m.Name }

// Weighted computes the set-based distance between p1 and p2 with the given weight.
// It fails with ErrDomain if weight is not positive, or if both products are empty.
func Weighted(p1, p2 *product.Product, weight float64) (float64, error) {
	if weight <= 0 {
		return 0, fmt.Errorf("%w: weight %v is not positive", ErrDomain, weight)
	}
	inter := float64(p1.Intersection(p2))
	union := float64(p1.Union(p2))
	if union == 0 {
		return 0, fmt.Errorf("%w: both products are empty", ErrDomain)
	}
	return 1.0 - inter/(inter+weight*(union-inter)), nil
}
