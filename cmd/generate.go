package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crillab/pledge/productset"
)

// generateCmd: pledge generate MODEL
var generateCmd = &cobra.Command{
	Use:   "generate MODEL",
	Short: "Generate a diverse set of valid products",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ft, err := modelFormat()
		if err != nil {
			return err
		}
		ctx, cancel := interruptible()
		defer cancel()
		p, stop := newPipeline()
		m, err := p.Load(args[0], ft)
		if err != nil {
			stop()
			return err
		}
		res, err := p.Generate(ctx)
		stop()
		if err != nil {
			return err
		}
		logger.Debug("Generation done", zap.Float64("fitness", res.Fitness))
		return writeRecord(outPath, &productset.Record{Features: m.Features, Products: res.Products})
	},
}

func init() {
	addGenerationFlags(generateCmd, "strategy")
	addMetricFlag(generateCmd)
	generateCmd.Flags().StringVarP(&outPath, "output", "o", "", "output product file (default stdout)")
}
