// Package fm loads feature models and exposes them as a set of clauses over named features.
//
// A feature model is described by a list of features, indexed from 1 to N,
// and a CNF formula over those features (and, possibly, auxiliary variables
// numbered after N). Two input formats are supported:
//
// 1. DIMACS CNF files, where features are named by leading comment lines:
//
//	c 1 root
//	c 2 gui
//	c 3$ cli
//	p cnf 3 2
//	1 0
//	-2 -3 0
//
// 2. SPLOT (SXFM) XML files, whose feature tree and cross-tree constraints are
// translated into clauses.
package fm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Format is the format of a feature model source.
type Format int

const (
	// Auto means the format is guessed from the file extension.
	Auto = Format(iota)
	// DIMACS is a CNF file with named features in comments.
	DIMACS
	// SPLOT is an SXFM XML feature model.
	SPLOT
)

func (f Format) String() string {
	switch f {
	case Auto:
		return "auto"
	case DIMACS:
		return "dimacs"
	case SPLOT:
		return "splot"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat returns the format associated with the given name.
// An empty name means Auto.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return Auto, nil
	case "dimacs", "cnf":
		return DIMACS, nil
	case "splot", "sxfm", "xml":
		return SPLOT, nil
	default:
		return Auto, fmt.Errorf("unknown feature model format %q", name)
	}
}

// FormatOf guesses the format of a file from its extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".sxfm", ".splot":
		return SPLOT
	default:
		return DIMACS
	}
}

// A Model is a feature model as a CNF formula.
type Model struct {
	Name     string
	Path     string // Where the model was loaded from, if any.
	Format   Format
	Features []string // Features[i] is the name of feature i+1.
	NbVars   int      // Total number of variables, >= len(Features). Extra vars are auxiliary.
	Clauses  [][]int
	indices  map[string]int
}

// New returns a model made of the given features and clauses.
// The number of variables is computed from the clauses.
func New(name string, features []string, clauses [][]int) *Model {
	m := &Model{Name: name, Features: features, Clauses: clauses, NbVars: len(features)}
	for _, clause := range clauses {
		for _, lit := range clause {
			if v := abs(lit); v > m.NbVars {
				m.NbVars = v
			}
		}
	}
	m.index()
	return m
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

func (m *Model) index() {
	m.indices = make(map[string]int, len(m.Features))
	for i, name := range m.Features {
		m.indices[name] = i + 1
	}
}

// NbFeatures is the number of named features of the model.
func (m *Model) NbFeatures() int { return len(m.Features) }

// Index returns the index of the feature with the given name.
func (m *Model) Index(name string) (int, bool) {
	if m.indices == nil {
		m.index()
	}
	i, ok := m.indices[name]
	return i, ok
}

// FeatureName returns the name of the feature associated with lit, whatever its sign.
func (m *Model) FeatureName(lit int) string {
	v := abs(lit)
	if v < 1 || v > len(m.Features) {
		return strconv.Itoa(v)
	}
	return m.Features[v-1]
}

// Literal converts a signed feature name ("gui", "-gui", "!gui", "~gui") into a literal.
func (m *Model) Literal(name string) (int, error) {
	sign := 1
	trimmed := name
	if len(trimmed) > 0 && strings.ContainsRune("-!~", rune(trimmed[0])) {
		sign = -1
		trimmed = trimmed[1:]
	}
	if i, ok := m.Index(trimmed); ok {
		return sign * i, nil
	}
	if i, err := strconv.Atoi(name); err == nil && i != 0 && abs(i) <= len(m.Features) {
		return i, nil
	}
	return 0, fmt.Errorf("unknown feature %q", name)
}

// Digest returns a hash identifying the features and clauses of the model.
// Two models with the same digest have the same semantics.
func (m *Model) Digest() string {
	h := sha256.New()
	for _, name := range m.Features {
		fmt.Fprintf(h, "%s\n", name)
	}
	fmt.Fprintf(h, "p %d %d\n", m.NbVars, len(m.Clauses))
	for _, clause := range m.Clauses {
		for _, lit := range clause {
			fmt.Fprintf(h, "%d ", lit)
		}
		fmt.Fprintln(h, "0")
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CNF returns a DIMACS representation of the model, features being named in comments.
// Parsing the result with ParseDIMACS yields an equivalent model.
func (m *Model) CNF() string {
	var sb strings.Builder
	for i, name := range m.Features {
		fmt.Fprintf(&sb, "c %d %s\n", i+1, name)
	}
	fmt.Fprintf(&sb, "p cnf %d %d\n", m.NbVars, len(m.Clauses))
	for _, clause := range m.Clauses {
		for _, lit := range clause {
			fmt.Fprintf(&sb, "%d ", lit)
		}
		sb.WriteString("0\n")
	}
	return sb.String()
}

// Load loads a feature model from the given file.
// If format is Auto, the format is guessed from the file extension.
func Load(path string, format Format) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %q: %w", path, err)
	}
	defer f.Close()
	if format == Auto {
		format = FormatOf(path)
	}
	var m *Model
	switch format {
	case DIMACS:
		m, err = ParseDIMACS(f)
	case SPLOT:
		m, err = ParseSPLOT(f)
	default:
		return nil, fmt.Errorf("invalid file format for %q", path)
	}
	if err != nil {
		return nil, fmt.Errorf("could not parse %q: %w", path, err)
	}
	m.Path = path
	m.Format = format
	if m.Name == "" {
		base := filepath.Base(path)
		m.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return m, nil
}
