package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/crillab/pledge/classify"
	"github.com/crillab/pledge/fm"
	"github.com/crillab/pledge/productset"
)

var (
	coreStyle    = color.New(color.FgGreen, color.Bold)
	deadStyle    = color.New(color.FgRed, color.Bold)
	freeStyle    = color.New(color.FgWhite)
	featureStyle = color.New(color.FgCyan)
	headerStyle  = color.New(color.FgYellow, color.Bold)
)

func kindStyle(k classify.Kind) *color.Color {
	switch k {
	case classify.Core:
		return coreStyle
	case classify.Dead:
		return deadStyle
	default:
		return freeStyle
	}
}

// printClassification prints the kind of each feature, then a summary.
func printClassification(w io.Writer, m *fm.Model, c *classify.Classification) {
	headerStyle.Fprintf(w, "%s: %d features\n", m.Name, m.NbFeatures())
	for f := 1; f <= m.NbFeatures(); f++ {
		k := c.Kind(f)
		featureStyle.Fprintf(w, "%6d %-30s ", f, m.FeatureName(f))
		kindStyle(k).Fprintln(w, k)
	}
	fmt.Fprintf(w, "%s %d, %s %d, %s %d\n",
		coreStyle.Sprint("core"), len(c.Core()),
		deadStyle.Sprint("dead"), len(c.Dead()),
		freeStyle.Sprint("free"), len(c.Free()))
}

// writeRecord writes rec to path, or to stdout if path is empty.
func writeRecord(path string, rec *productset.Record) error {
	if path == "" {
		return productset.Write(os.Stdout, rec)
	}
	return productset.Save(path, rec)
}
