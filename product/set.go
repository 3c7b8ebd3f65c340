package product

// A Set indexes products by content, so duplicates can be detected in constant time.
// The zero value is not usable; call NewSet.
type Set struct {
	keys     map[string]int
	products []*Product
}

// NewSet returns an empty set with room for n products.
func NewSet(n int) *Set {
	return &Set{keys: make(map[string]int, n), products: make([]*Product, 0, n)}
}

// Add adds p to s, unless an equal product is already there.
// It returns true iff p was added.
func (s *Set) Add(p *Product) bool {
	k := p.Key()
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = len(s.products)
	s.products = append(s.products, p)
	return true
}

// Contains is true iff a product equal to p belongs to s.
func (s *Set) Contains(p *Product) bool {
	_, ok := s.keys[p.Key()]
	return ok
}

// Replace replaces the i-th product with p.
// It returns false, and does nothing, if a product equal to p is already in s at another position.
func (s *Set) Replace(i int, p *Product) bool {
	k := p.Key()
	if j, ok := s.keys[k]; ok {
		return j == i
	}
	delete(s.keys, s.products[i].Key())
	s.keys[k] = i
	s.products[i] = p
	return true
}

// Len is the number of products in s.
func (s *Set) Len() int { return len(s.products) }

// At returns the i-th product added to s.
func (s *Set) At(i int) *Product { return s.products[i] }

// Products returns the products of s, in insertion order.
// The returned slice is a fresh copy; s can still be modified without affecting it.
func (s *Set) Products() []*Product {
	res := make([]*Product, len(s.products))
	copy(res, s.products)
	return res
}
