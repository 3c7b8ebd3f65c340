package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crillab/pledge/classify"
)

// explainCmd: pledge explain MODEL FEATURE
var explainCmd = &cobra.Command{
	Use:   "explain MODEL FEATURE",
	Short: "Explain why a feature is core or dead",
	Long: `Prints a minimal set of constraints of the model forcing the given feature.
Removing any of them would make the feature free, or change its kind.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ft, err := modelFormat()
		if err != nil {
			return err
		}
		ctx, cancel := interruptible()
		defer cancel()
		p, stop := newPipeline()
		defer stop()
		if _, err := p.Load(args[0], ft); err != nil {
			return err
		}
		kind, why, err := p.Explain(ctx, args[1])
		if err != nil {
			return err
		}
		if kind == classify.Free {
			fmt.Printf("%s is free\n", featureStyle.Sprint(args[1]))
			return nil
		}
		fmt.Printf("%s is %s because of:\n", featureStyle.Sprint(args[1]), kindStyle(kind).Sprint(kind))
		for _, clause := range why {
			fmt.Printf("  %s\n", clause)
		}
		return nil
	},
}
