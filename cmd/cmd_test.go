package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crillab/pledge/classify"
	"github.com/crillab/pledge/config"
	"github.com/crillab/pledge/fm"
	"github.com/crillab/pledge/productset"
	"github.com/crillab/pledge/store"
)

const phone = `<feature_model name="Phone">
<feature_tree>
:r Phone (phone)
	:m Calls (calls)
	:o Camera (camera)
	:o GPS (gps)
	:o Radio (radio)
</feature_tree>
<constraints>
c1: ~gps or camera
</constraints>
</feature_model>
`

func writeModel(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "phone.xml")
	require.NoError(t, os.WriteFile(path, []byte(phone), 0o644))
	return path
}

func execute(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(args)
	require.NoError(t, Execute())
}

func TestPrintClassification(t *testing.T) {
	color.NoColor = true
	m := fm.New("abc", []string{"A", "B", "C"}, [][]int{{1}, {-3}})
	c := classify.New([]classify.Kind{classify.Core, classify.Free, classify.Dead})
	var buf bytes.Buffer
	printClassification(&buf, m, c)
	out := buf.String()
	assert.Contains(t, out, "abc: 3 features")
	assert.Regexp(t, `1 A\s+Core`, out)
	assert.Regexp(t, `3 C\s+Dead`, out)
	assert.Contains(t, out, "core 1, dead 1, free 1")
}

func TestGenerateAndPrioritizeCommands(t *testing.T) {
	dir := t.TempDir()
	model := writeModel(t, dir)
	db := filepath.Join(dir, "pledge.db")
	generated := filepath.Join(dir, "generated.txt")
	prioritized := filepath.Join(dir, "prioritized.txt")

	execute(t, "generate", model, "-n", "4", "--seed", "5", "--store", db, "-o", generated)
	rec, err := productset.Load(generated)
	require.NoError(t, err)
	assert.Len(t, rec.Products, 4)
	assert.Equal(t, []string{"Phone", "Calls", "Camera", "GPS", "Radio"}, rec.Features)

	execute(t, "prioritize", generated, "--strategy", "near-optimal", "--metric", "dice", "--store", db, "-o", prioritized)
	out, err := productset.Load(prioritized)
	require.NoError(t, err)
	assert.Len(t, out.Products, 4)
}

func TestRunAndExportCommands(t *testing.T) {
	dir := t.TempDir()
	model := writeModel(t, dir)
	db := filepath.Join(dir, "pledge.db")

	execute(t, "run", model, "-n", "3", "--generator", "evolutionary", "--max-stall", "10", "--seed", "3", "--store", db)
	s, err := store.Open(db)
	require.NoError(t, err)
	runs, err := s.Runs()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.Len(t, runs, 1)
	assert.Equal(t, "evolutionary", runs[0].Generator)

	configs := filepath.Join(dir, "configs")
	execute(t, "export", runs[0].ID, configs, "--store", db)
	for j := 1; j <= 3; j++ {
		content, err := os.ReadFile(filepath.Join(configs, fmt.Sprintf("product_%d.config", j)))
		require.NoError(t, err)
		assert.Contains(t, string(content), "Phone\nCalls\n")
	}
}

func TestFlagsDoNotCarryOver(t *testing.T) {
	dir := t.TempDir()
	model := writeModel(t, dir)
	first := filepath.Join(dir, "first.txt")
	execute(t, "generate", model, "-n", "2", "--strategy", "evolutionary", "-o", first)
	assert.Equal(t, first, outPath)

	resetFlags(rootCmd)
	assert.Empty(t, outPath)
	assert.Zero(t, count)
	assert.Empty(t, genStrategy)
	assert.False(t, generateCmd.Flags().Changed("count"))
	assert.Equal(t, "auto", format)

	// Without -o, the second run must not overwrite the first file.
	before, err := os.ReadFile(first)
	require.NoError(t, err)
	second := filepath.Join(dir, "second.txt")
	execute(t, "run", model, "-n", "3", "--store", filepath.Join(dir, "pledge.db"), "-o", second)
	after, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	rec, err := productset.Load(second)
	require.NoError(t, err)
	assert.Len(t, rec.Products, 3)
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my.yaml")
	execute(t, "init", "--config", path)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	rootCmd.SetArgs([]string{"init", "--config", path})
	assert.Error(t, Execute(), "an existing file must not be overwritten")

	execute(t, "init", "--config", path, "--force")
	// The new file is then used by the other commands.
	dir := filepath.Dir(path)
	execute(t, "generate", writeModel(t, dir), "-n", "1", "--config", path,
		"--store", filepath.Join(dir, "pledge.db"), "-o", filepath.Join(dir, "out.txt"))
}

func TestStoreClosedOnFailure(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "pledge.db")
	rootCmd.SetArgs([]string{"generate", filepath.Join(dir, "missing.cnf"), "--store", db})
	require.Error(t, Execute())
	assert.Nil(t, archive)
	s, err := store.Open(db)
	require.NoError(t, err, "the store must be released after a failed command")
	require.NoError(t, s.Close())
}

func TestWatchFile(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()
	path := writeModel(t, dir)
	fw, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer fw.Close()
	require.NoError(t, fw.Add(dir))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	changed := make(chan struct{}, 1)
	done := make(chan error)
	go func() {
		done <- watchFile(ctx, fw, path, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()
	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(phone+"\n"), 0o644))
	select {
	case <-changed:
	case <-ctx.Done():
		t.Fatal("change was not detected")
	}
	cancel()
	assert.NoError(t, <-done)
}
