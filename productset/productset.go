// Package productset reads and writes product sets.
//
// A product set file starts with one "index->name" line per feature, followed by
// one line per product, made of the product's literals separated by ';'.
//
//	1->Phone
//	2->Camera
//	1;-2
//	1;2
//
// Coverage scores are not saved.
package productset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/crillab/pledge/product"
)

// A Record is a product set, along with the names of the features its literals refer to.
type Record struct {
	Features []string // Features[i] is the name of feature i+1.
	Products []*product.Product
}

// Write writes the record to w.
func Write(w io.Writer, rec *Record) error {
	bw := bufio.NewWriter(w)
	for i, name := range rec.Features {
		if _, err := fmt.Fprintf(bw, "%d->%s\n", i+1, name); err != nil {
			return fmt.Errorf("could not write feature %d: %w", i+1, err)
		}
	}
	for i, p := range rec.Products {
		if _, err := fmt.Fprintln(bw, p.String()); err != nil {
			return fmt.Errorf("could not write product %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}

// Save writes the record to the file at path, creating or truncating it.
func Save(path string, rec *Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create product file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("could not close product file: %w", cerr)
		}
	}()
	return Write(f, rec)
}

// Read reads a record from r.
// Trailing ';' at the end of product lines and blank lines are accepted.
func Read(r io.Reader) (*Record, error) {
	var rec Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNb := 0
	for sc.Scan() {
		lineNb++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if idx := strings.Index(line, "->"); idx >= 0 {
			if len(rec.Products) > 0 {
				return nil, fmt.Errorf("line %d: feature declared after products", lineNb)
			}
			i, err := strconv.Atoi(strings.TrimSpace(line[:idx]))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid feature index: %v", lineNb, err)
			}
			if i != len(rec.Features)+1 {
				return nil, fmt.Errorf("line %d: expected feature %d, got %d", lineNb, len(rec.Features)+1, i)
			}
			rec.Features = append(rec.Features, line[idx+2:])
			continue
		}
		p, err := parseProduct(line, len(rec.Features))
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", lineNb, err)
		}
		rec.Products = append(rec.Products, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("could not read product set: %w", err)
	}
	return &rec, nil
}

func parseProduct(line string, nbFeatures int) (*product.Product, error) {
	fields := strings.Split(line, ";")
	lits := make([]int, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		lit, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid literal %q: %v", field, err)
		}
		if nbFeatures > 0 && (lit > nbFeatures || -lit > nbFeatures) {
			return nil, fmt.Errorf("literal %d refers to an unknown feature", lit)
		}
		lits = append(lits, lit)
	}
	return product.New(lits)
}

// Load reads the record in the file at path.
func Load(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open product file: %w", err)
	}
	defer f.Close()
	rec, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("could not load %q: %w", path, err)
	}
	return rec, nil
}

// ExportConfigs writes one file per product in dir, named product_<j>.config with j starting at 1.
// Each file lists the names of the features selected in the product, one per line.
// It returns the paths of the created files.
func ExportConfigs(dir string, rec *Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create export directory: %w", err)
	}
	paths := make([]string, 0, len(rec.Products))
	for j, p := range rec.Products {
		var sb strings.Builder
		for _, f := range p.Selected() {
			if f > len(rec.Features) {
				return paths, fmt.Errorf("product %d selects unknown feature %d", j+1, f)
			}
			sb.WriteString(rec.Features[f-1])
			sb.WriteByte('\n')
		}
		path := filepath.Join(dir, fmt.Sprintf("product_%d.config", j+1))
		if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
			return paths, fmt.Errorf("could not export product %d: %w", j+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
