package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// classifyCmd: pledge classify MODEL
var classifyCmd = &cobra.Command{
	Use:   "classify MODEL",
	Short: "Classify the features of a model as core, dead or free",
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
		c, err := p.Classify(ctx)
		stop()
		if err != nil {
			return err
		}
		printClassification(os.Stdout, m, c)
		return nil
	},
}
