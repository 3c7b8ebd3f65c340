// Package generate samples diverse sets of valid products from a feature model.
//
// Two strategies are provided: "unpredictable", which draws products from the
// randomized enumeration of an oracle, and "evolutionary", a (1+1) evolutionary
// search that improves the pairwise diversity of an initial sample by mutating
// one product at a time.
//
// Strategies never return an error when they run out of time: they return the
// products found so far, along with a Status explaining why they stopped.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/crillab/pledge/classify"
	"github.com/crillab/pledge/distance"
	"github.com/crillab/pledge/metrics"
	"github.com/crillab/pledge/oracle"
	"github.com/crillab/pledge/product"
	"github.com/crillab/pledge/progress"
)

// ErrGenerationFailed is returned when the oracle failed, even after being rebuilt.
var ErrGenerationFailed = errors.New("generation failed")

// DefaultMaxStall is the number of non-improving generations after which the evolutionary search stops.
const DefaultMaxStall = 1000

// DefaultMaxFlips is the maximum number of features flipped by a mutation.
const DefaultMaxFlips = 3

// Status explains why a generation stopped.
type Status byte

const (
	// StatusComplete means the requested number of products was generated.
	StatusComplete = Status(iota)
	// StatusDeadline means the time budget elapsed.
	StatusDeadline
	// StatusCancelled means the context was cancelled.
	StatusCancelled
	// StatusStalled means the evolutionary search stopped improving.
	StatusStalled
	// StatusSpaceCovered means every valid product was generated.
	StatusSpaceCovered
	// StatusSaturated means several fresh enumerations in a row brought no new product.
	StatusSaturated
	// StatusUnsatisfiable means the model has no valid product.
	StatusUnsatisfiable
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusDeadline:
		return "deadline"
	case StatusCancelled:
		return "cancelled"
	case StatusStalled:
		return "stalled"
	case StatusSpaceCovered:
		return "space-covered"
	case StatusSaturated:
		return "saturated"
	case StatusUnsatisfiable:
		return "unsatisfiable"
	default:
		panic("invalid generation status")
	}
}

// Options configure a generation.
type Options struct {
	Count    int             // Maximum number of products
	Budget   time.Duration   // Time budget. 0 means no deadline.
	Metric   distance.Metric // Metric used to evaluate diversity. Zero value means Jaccard.
	MaxStall int             // Number of non-improving generations before stopping. 0 means DefaultMaxStall.
	MaxFlips int             // Maximum number of features flipped per mutation. 0 means DefaultMaxFlips.
	Rand     *rand.Rand      // Source of randomness. nil means a time-based source.
	Report   progress.Func
	Metrics  *metrics.Metrics
}

func (opts Options) withDefaults() Options {
	if opts.Metric.Name == "" {
		opts.Metric = distance.Jaccard
	}
	if opts.MaxStall <= 0 {
		opts.MaxStall = DefaultMaxStall
	}
	if opts.MaxFlips <= 0 {
		opts.MaxFlips = DefaultMaxFlips
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return opts
}

// Result is the outcome of a generation.
type Result struct {
	Products    []*product.Product
	Status      Status
	Rebuilds    int     // Number of times the oracle was rebuilt
	Generations int     // Number of generations of the evolutionary search
	Fitness     float64 // Sum of the pairwise distances between products
}

// A Strategy generates pairwise-distinct valid products.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, o oracle.Oracle, c *classify.Classification, opts Options) (*Result, error)
}

var strategies = map[string]Strategy{}

// Register makes a strategy available through Lookup.
// It panics if a strategy with the same name was already registered.
func Register(s Strategy) {
	if _, ok := strategies[s.Name()]; ok {
		panic(fmt.Sprintf("generation strategy %q already registered", s.Name()))
	}
	strategies[s.Name()] = s
}

// Lookup returns the strategy with the given name.
func Lookup(name string) (Strategy, error) {
	s, ok := strategies[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown generation strategy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names lists the registered strategies.
func Names() []string {
	res := make([]string, 0, len(strategies))
	for name := range strategies {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

func init() {
	Register(Unpredictable{})
	Register(Evolutionary{})
}

// stopStatus returns the status corresponding to a done context.
func stopStatus(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusDeadline
	}
	return StatusCancelled
}

// withBudget derives a context that expires once the budget elapsed.
func withBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}

// fitness returns the sum of pairwise distances between products.
// Undefined distances count as 0.
func fitness(products []*product.Product, metric distance.Metric, m *metrics.Metrics) float64 {
	sum := 0.0
	for i := range products {
		for j := i + 1; j < len(products); j++ {
			sum += dist(metric, products[i], products[j], m)
		}
	}
	return sum
}

func dist(metric distance.Metric, p1, p2 *product.Product, m *metrics.Metrics) float64 {
	d, err := metric.Distance(p1, p2)
	if err != nil {
		m.Skip(1)
		return 0
	}
	return d
}
