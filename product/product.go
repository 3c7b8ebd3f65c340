// Package product defines the Product type: a fully-assigned configuration of a feature model.
//
// A product is a set of literals: +i means feature i is selected, -i means it is deselected.
// Once fully assigned, a product holds exactly one literal per feature.
// Products are compared by content, never by identity.
package product

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// A Product is a set of feature literals, plus a coverage score.
// Literals are kept sorted by variable, so that two products with the same
// literals always have the same representation.
type Product struct {
	lits []int
	// Coverage is a score written by the algorithm currently handling the product.
	// It is not part of the product's identity.
	Coverage float64
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// New returns a product made of the given literals.
// The slice is copied. It returns an error if a literal is 0 or if a variable appears twice.
func New(lits []int) (*Product, error) {
	cp := make([]int, len(lits))
	copy(cp, lits)
	sort.Slice(cp, func(i, j int) bool { return abs(cp[i]) < abs(cp[j]) })
	for i, lit := range cp {
		if lit == 0 {
			return nil, fmt.Errorf("invalid null literal in product")
		}
		if i > 0 && abs(cp[i-1]) == abs(lit) {
			return nil, fmt.Errorf("feature %d appears twice in product", abs(lit))
		}
	}
	return &Product{lits: cp}, nil
}

// FromModel builds a product from a binding of features 1..len(model).
func FromModel(model []bool) *Product {
	lits := make([]int, len(model))
	for i, b := range model {
		if b {
			lits[i] = i + 1
		} else {
			lits[i] = -(i + 1)
		}
	}
	return &Product{lits: lits}
}

// Literals returns a copy of the literals of p, sorted by variable.
func (p *Product) Literals() []int {
	res := make([]int, len(p.lits))
	copy(res, p.lits)
	return res
}

// Len is the number of literals in p.
func (p *Product) Len() int { return len(p.lits) }

// Has indicates whether lit belongs to p.
func (p *Product) Has(lit int) bool {
	v := abs(lit)
	i := sort.Search(len(p.lits), func(i int) bool { return abs(p.lits[i]) >= v })
	return i < len(p.lits) && p.lits[i] == lit
}

// Selected returns the indices of the selected features of p, in increasing order.
func (p *Product) Selected() []int {
	var res []int
	for _, lit := range p.lits {
		if lit > 0 {
			res = append(res, lit)
		}
	}
	return res
}

// NbSelected is the number of selected features.
func (p *Product) NbSelected() int {
	n := 0
	for _, lit := range p.lits {
		if lit > 0 {
			n++
		}
	}
	return n
}

// Complete is true iff p binds every feature of 1..nbFeatures, and no other.
func (p *Product) Complete(nbFeatures int) bool {
	if len(p.lits) != nbFeatures {
		return false
	}
	for i, lit := range p.lits {
		if abs(lit) != i+1 {
			return false
		}
	}
	return true
}

// Flip returns a copy of p where the polarity of each given feature is reversed.
// Features that are not bound in p are ignored.
func (p *Product) Flip(features ...int) *Product {
	res := &Product{lits: p.Literals()}
	for _, f := range features {
		v := abs(f)
		i := sort.Search(len(res.lits), func(i int) bool { return abs(res.lits[i]) >= v })
		if i < len(res.lits) && abs(res.lits[i]) == v {
			res.lits[i] = -res.lits[i]
		}
	}
	return res
}

// Clone returns a deep copy of p, including its coverage.
func (p *Product) Clone() *Product {
	return &Product{lits: p.Literals(), Coverage: p.Coverage}
}

// Equal is true iff p and other contain the same literals. Coverage is ignored.
func (p *Product) Equal(other *Product) bool {
	if len(p.lits) != len(other.lits) {
		return false
	}
	for i := range p.lits {
		if p.lits[i] != other.lits[i] {
			return false
		}
	}
	return true
}

// Key returns a string uniquely identifying the literal set of p.
// Two products have the same key iff they are Equal.
func (p *Product) Key() string {
	return p.String()
}

// String returns the literals of p, separated by ';'.
func (p *Product) String() string {
	strs := make([]string, len(p.lits))
	for i, lit := range p.lits {
		strs[i] = strconv.Itoa(lit)
	}
	return strings.Join(strs, ";")
}

// Intersection returns the number of literals p and other have in common.
// Both literal lists are sorted by variable, so this is a linear merge.
func (p *Product) Intersection(other *Product) int {
	i, j, n := 0, 0, 0
	for i < len(p.lits) && j < len(other.lits) {
		vi, vj := abs(p.lits[i]), abs(other.lits[j])
		switch {
		case vi < vj:
			i++
		case vi > vj:
			j++
		default:
			if p.lits[i] == other.lits[j] {
				n++
			}
			i++
			j++
		}
	}
	return n
}

// Union returns the number of distinct features bound in p or other.
// A feature bound with opposite polarities in both products is counted once.
func (p *Product) Union(other *Product) int {
	i, j, n := 0, 0, 0
	for i < len(p.lits) && j < len(other.lits) {
		vi, vj := abs(p.lits[i]), abs(other.lits[j])
		switch {
		case vi < vj:
			i++
		case vi > vj:
			j++
		default:
			i++
			j++
		}
		n++
	}
	return n + (len(p.lits) - i) + (len(other.lits) - j)
}
