package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crillab/pledge/classify"
	"github.com/crillab/pledge/product"
)

// newTestStore creates a temporary store for testing.
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pledge.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func testRun(t *testing.T) *Run {
	t.Helper()
	p1, err := product.New([]int{1, -2, 3})
	require.NoError(t, err)
	p2, err := product.New([]int{1, 2, -3})
	require.NoError(t, err)
	p2.Coverage = 0.5
	run := &Run{
		Model:            "phone.xml",
		Digest:           "abcd",
		Backend:          "gophersat",
		Generator:        "unpredictable",
		Prioritizer:      "greedy",
		Metric:           "jaccard",
		GenerationStatus: "complete",
		Features:         []string{"Phone", "Camera", "GPS"},
	}
	run.SetProducts([]*product.Product{p1, p2})
	return run
}

func TestSaveAndLoadRun(t *testing.T) {
	s, _ := newTestStore(t)
	run := testRun(t)
	id, err := s.SaveRun(run)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, run.ID)
	assert.False(t, run.Created.IsZero())

	got, err := s.Run(id)
	require.NoError(t, err)
	assert.Equal(t, run.Model, got.Model)
	assert.Equal(t, run.Products, got.Products)
	assert.Equal(t, run.Coverages, got.Coverages)

	rec, err := got.Record()
	require.NoError(t, err)
	require.Len(t, rec.Products, 2)
	assert.Equal(t, "1;2;-3", rec.Products[1].String())
	assert.Equal(t, 0.5, rec.Products[1].Coverage)
	assert.Equal(t, []string{"Phone", "Camera", "GPS"}, rec.Features)
}

func TestRunNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Run("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteRun("missing"), ErrNotFound)
}

func TestRunsOrderAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now()
	for i := 0; i < 3; i++ {
		run := testRun(t)
		run.Created = now.Add(-time.Duration(i) * time.Hour)
		_, err := s.SaveRun(run)
		require.NoError(t, err)
	}
	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].Created.Before(runs[1].Created))
	assert.True(t, runs[1].Created.Before(runs[2].Created))

	require.NoError(t, s.DeleteRun(runs[0].ID))
	runs, err = s.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestPersistence(t *testing.T) {
	s, path := newTestStore(t)
	id, err := s.SaveRun(testRun(t))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	run, err := s2.Run(id)
	require.NoError(t, err)
	assert.Equal(t, "unpredictable", run.Generator)
}

func TestClassificationCache(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok, err := s.Classification("digest")
	require.NoError(t, err)
	assert.False(t, ok)

	c := classify.New([]classify.Kind{classify.Core, classify.Free, classify.Dead})
	require.NoError(t, s.SaveClassification("digest", c))
	got, ok, err := s.Classification("digest")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c.Kinds(), got.Kinds())

	require.NoError(t, s.SaveClassification("empty", classify.New(nil)))
	got, ok, err = s.Classification("empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, got.NbFeatures())
}
