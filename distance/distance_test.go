package distance

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/crillab/pledge/product"
)

const epsilon = 1e-9

func prod(t *testing.T, lits ...int) *product.Product {
	t.Helper()
	p, err := product.New(lits)
	if err != nil {
		t.Fatalf("could not create product: %v", err)
	}
	return p
}

func randomProduct(r *rand.Rand, n int) *product.Product {
	model := make([]bool, n)
	for i := range model {
		model[i] = r.Intn(2) == 0
	}
	return product.FromModel(model)
}

func TestJaccardExample(t *testing.T) {
	p1 := prod(t, 1, 2, -3)
	p2 := prod(t, 1, -2, -3)
	d, err := Jaccard.Distance(p1, p2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(d-1.0/3) > epsilon {
		t.Errorf("expected distance 1/3, got %v", d)
	}
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		p1 := randomProduct(r, 8)
		p2 := randomProduct(r, 8)
		for _, m := range []Metric{Jaccard, Dice, AntiDice} {
			self, err := m.Distance(p1, p1)
			if err != nil || self != 0 {
				t.Errorf("%s: distance of %v to itself is %v (err %v)", m, p1, self, err)
			}
			d12, _ := m.Distance(p1, p2)
			d21, _ := m.Distance(p2, p1)
			if d12 != d21 {
				t.Errorf("%s is not symmetric on %v, %v: %v vs %v", m, p1, p2, d12, d21)
			}
			if d12 < 0 || d12 > 1 {
				t.Errorf("%s out of range on %v, %v: %v", m, p1, p2, d12)
			}
		}
		if p1.Equal(p2) {
			continue
		}
		dice, _ := Dice.Distance(p1, p2)
		jac, _ := Jaccard.Distance(p1, p2)
		anti, _ := AntiDice.Distance(p1, p2)
		if dice > jac+epsilon || jac > anti+epsilon {
			t.Errorf("expected dice <= jaccard <= anti-dice for %v, %v, got %v, %v, %v", p1, p2, dice, jac, anti)
		}
	}
}

func TestDomainErrors(t *testing.T) {
	empty := prod(t)
	if _, err := Jaccard.Distance(empty, empty); !errors.Is(err, ErrDomain) {
		t.Errorf("expected ErrDomain for empty products, got %v", err)
	}
	p := prod(t, 1)
	if _, err := Weighted(p, p, 0); !errors.Is(err, ErrDomain) {
		t.Errorf("expected ErrDomain for null weight, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"jaccard", "Dice", "anti-dice"} {
		if _, err := Lookup(name); err != nil {
			t.Errorf("could not find metric %q: %v", name, err)
		}
	}
	if _, err := Lookup("hamming"); err == nil {
		t.Errorf("expected error for unknown metric")
	}
}

func ExampleMetric_Distance() {
	p1, _ := product.New([]int{1, 2, -3})
	p2, _ := product.New([]int{1, -2, -3})
	for _, m := range []Metric{Dice, Jaccard, AntiDice} {
		d, _ := m.Distance(p1, p2)
		fmt.Printf("%s: %.3f\n", m, d)
	}
	// Output:
	// dice: 0.200
	// jaccard: 0.333
	// anti-dice: 0.500
}
