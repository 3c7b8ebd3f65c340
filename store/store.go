// Package store archives pipeline runs and caches feature classifications in a bbolt database.
//
// Runs are kept in the "runs" bucket, keyed by a random UUID. Classifications are
// kept in the "classifications" bucket, keyed by the digest of the feature model they
// were computed from, so that a model that did not change is never classified twice.
// Values are JSON documents.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/crillab/pledge/classify"
	"github.com/crillab/pledge/product"
	"github.com/crillab/pledge/productset"
)

var (
	bucketRuns            = []byte("runs")
	bucketClassifications = []byte("classifications")
)

var kindsByName = map[string]classify.Kind{
	classify.Free.String(): classify.Free,
	classify.Core.String(): classify.Core,
	classify.Dead.String(): classify.Dead,
}

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// A Run is the archived outcome of a pipeline run.
type Run struct {
	ID                   string        `json:"id"`
	Created              time.Time     `json:"created"`
	Duration             time.Duration `json:"duration"`
	Model                string        `json:"model"`
	Digest               string        `json:"digest"`
	Backend              string        `json:"backend"`
	Generator            string        `json:"generator"`
	Prioritizer          string        `json:"prioritizer,omitempty"`
	Metric               string        `json:"metric"`
	GenerationStatus     string        `json:"generation_status"`
	PrioritizationStatus string        `json:"prioritization_status,omitempty"`
	Rebuilds             int           `json:"rebuilds"`
	FitnessSum           float64       `json:"fitness_sum"`
	Features             []string      `json:"features"`
	Products             [][]int       `json:"products"`
	Coverages            []float64     `json:"coverages,omitempty"`
}

// SetProducts stores the literals and coverages of products in r.
func (r *Run) SetProducts(products []*product.Product) {
	r.Products = make([][]int, len(products))
	r.Coverages = make([]float64, len(products))
	for i, p := range products {
		r.Products[i] = p.Literals()
		r.Coverages[i] = p.Coverage
	}
}

// Record returns the product set of r.
func (r *Run) Record() (*productset.Record, error) {
	rec := &productset.Record{Features: r.Features, Products: make([]*product.Product, len(r.Products))}
	for i, lits := range r.Products {
		p, err := product.New(lits)
		if err != nil {
			return nil, fmt.Errorf("invalid product %d in run %s: %w", i+1, r.ID, err)
		}
		if i < len(r.Coverages) {
			p.Coverage = r.Coverages[i]
		}
		rec.Products[i] = p
	}
	return rec, nil
}

// Store is a bbolt-backed archive.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRuns, bucketClassifications} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun archives run. If run has no ID, a new one is assigned.
// It returns the ID of the run.
func (s *Store) SaveRun(run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Created.IsZero() {
		run.Created = time.Now()
	}
	data, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("marshal run: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(run.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("could not save run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

// Run returns the run with the given ID.
func (s *Store) Run(id string) (*Run, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketRuns).Get([]byte(id)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", id, err)
	}
	return &run, nil
}

// Runs returns all archived runs, oldest first.
func (s *Store) Runs() ([]*Run, error) {
	var runs []*Run
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", k, err)
			}
			runs = append(runs, &run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Created.Before(runs[j].Created) })
	return runs, nil
}

// DeleteRun removes the run with the given ID.
func (s *Store) DeleteRun(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}

// SaveClassification caches the classification of the model with the given digest.
func (s *Store) SaveClassification(digest string, c *classify.Classification) error {
	kinds := c.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClassifications).Put([]byte(digest), data)
	})
}

// Classification returns the cached classification of the model with the given digest.
// The boolean is false if nothing was cached.
func (s *Store) Classification(digest string) (*classify.Classification, bool, error) {
	var names []string
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketClassifications).Get([]byte(digest))
		if v == nil {
			return nil
		}
		found = true
		// json.Unmarshal copies what it needs, v is not retained.
		return json.Unmarshal(v, &names)
	})
	if err != nil {
		return nil, false, fmt.Errorf("could not read classification: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	kinds := make([]classify.Kind, len(names))
	for i, name := range names {
		k, ok := kindsByName[name]
		if !ok {
			return nil, false, fmt.Errorf("invalid feature kind %q in cached classification", name)
		}
		kinds[i] = k
	}
	return classify.New(kinds), true, nil
}
