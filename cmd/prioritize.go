package cmd

import (
	"github.com/spf13/cobra"

	"github.com/crillab/pledge/productset"
)

// prioritizeCmd: pledge prioritize PRODUCTS
var prioritizeCmd = &cobra.Command{
	Use:   "prioritize PRODUCTS",
	Short: "Order a product file so that dissimilar products come first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := productset.Load(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := interruptible()
		defer cancel()
		p, stop := newPipeline()
		res, err := p.Prioritize(ctx, rec.Products)
		stop()
		if err != nil {
			return err
		}
		return writeRecord(outPath, &productset.Record{Features: rec.Features, Products: res.Products})
	},
}

func init() {
	addPrioritizationFlags(prioritizeCmd, "strategy")
	addMetricFlag(prioritizeCmd)
	prioritizeCmd.Flags().StringVarP(&outPath, "output", "o", "", "output product file (default stdout)")
}
