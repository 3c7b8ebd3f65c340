package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crillab/pledge/productset"
)

// runCmd: pledge run MODEL
var runCmd = &cobra.Command{
	Use:   "run MODEL",
	Short: "Classify, generate and prioritize, and archive the run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ft, err := modelFormat()
		if err != nil {
			return err
		}
		ctx, cancel := interruptible()
		defer cancel()
		p, stop := newPipeline()
		run, err := p.Run(ctx, args[0], ft)
		stop()
		if err != nil {
			return err
		}
		rec, err := run.Record()
		if err != nil {
			return err
		}
		if outPath != "" {
			if err := productset.Save(outPath, rec); err != nil {
				return err
			}
		}
		if run.ID != "" {
			fmt.Printf("run %s: %d products (%s), fitness %.3f\n", run.ID, len(run.Products), run.GenerationStatus, run.FitnessSum)
		} else if outPath == "" {
			return productset.Write(cmd.OutOrStdout(), rec)
		}
		return nil
	},
}

func init() {
	addGenerationFlags(runCmd, "generator")
	addPrioritizationFlags(runCmd, "prioritizer")
	addMetricFlag(runCmd)
	runCmd.Flags().StringVarP(&outPath, "output", "o", "", "output product file")
}
