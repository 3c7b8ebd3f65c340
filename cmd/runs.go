package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteRun string

// runsCmd: pledge runs
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(true)
		if err != nil {
			return err
		}
		if deleteRun != "" {
			return s.DeleteRun(deleteRun)
		}
		runs, err := s.Runs()
		if err != nil {
			return err
		}
		for _, run := range runs {
			headerStyle.Printf("%s ", run.ID)
			fmt.Printf("%s %-20s %s/%s/%s %3d products %-13s fitness %.3f\n",
				run.Created.Format("2006-01-02 15:04:05"),
				run.Model,
				run.Generator, orNone(run.Prioritizer), run.Metric,
				len(run.Products),
				run.GenerationStatus,
				run.FitnessSum)
		}
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func init() {
	runsCmd.Flags().StringVar(&deleteRun, "delete", "", "delete the run with the given ID")
}
