package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crillab/pledge/productset"
)

// exportCmd: pledge export (PRODUCTS|RUN) DIR
var exportCmd = &cobra.Command{
	Use:   "export (PRODUCTS|RUN) DIR",
	Short: "Write one configuration file per product",
	Long: `Writes product_<j>.config files in DIR, listing the features selected in the j-th product.
The products are read from a product file or, if no such file exists, from an archived run.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := loadRecord(args[0])
		if err != nil {
			return err
		}
		paths, err := productset.ExportConfigs(args[1], rec)
		if err != nil {
			return err
		}
		fmt.Printf("%d configurations written to %s\n", len(paths), args[1])
		return nil
	},
}

// loadRecord reads the product file at src, or the archived run whose ID is src.
func loadRecord(src string) (*productset.Record, error) {
	if _, err := os.Stat(src); err == nil {
		return productset.Load(src)
	}
	s, err := openStore(true)
	if err != nil {
		return nil, fmt.Errorf("%q is not a product file, and no run archive is available: %w", src, err)
	}
	run, err := s.Run(src)
	if err != nil {
		return nil, err
	}
	return run.Record()
}
