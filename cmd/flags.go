package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

// Flags shared by the commands running the generation and prioritization stages.
var (
	count        int
	budget       time.Duration
	genStrategy  string
	prioStrategy string
	metricName   string
	maxStall     int
	maxFlips     int
	prioTimeout  time.Duration
	outPath      string
)

func addGenerationFlags(cmd *cobra.Command, strategyFlag string) {
	fs := cmd.Flags()
	fs.IntVarP(&count, "count", "n", 0, "maximum number of products")
	fs.DurationVarP(&budget, "time", "t", 0, "generation time budget, e.g. 60s")
	fs.StringVar(&genStrategy, strategyFlag, "", "generation strategy (unpredictable, evolutionary)")
	fs.IntVar(&maxStall, "max-stall", 0, "non-improving generations before the evolutionary search stops")
	fs.IntVar(&maxFlips, "max-flips", 0, "maximum number of features flipped per mutation")
}

func addPrioritizationFlags(cmd *cobra.Command, strategyFlag string) {
	fs := cmd.Flags()
	fs.StringVar(&prioStrategy, strategyFlag, "", "prioritization strategy (greedy, near-optimal)")
	fs.DurationVar(&prioTimeout, "timeout", 0, "prioritization timeout, 0 means none")
}

func addMetricFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&metricName, "metric", "", "distance metric (jaccard, dice, anti-dice)")
}

// applyStageFlags overrides the configuration with the stage flags set on the command line.
func applyStageFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	changed := func(name string) bool {
		return fs.Lookup(name) != nil && fs.Changed(name)
	}
	if changed("count") {
		cfg.Generation.Count = count
	}
	if changed("time") {
		cfg.Generation.Budget = budget
	}
	if changed("max-stall") {
		cfg.Generation.MaxStall = maxStall
	}
	if changed("max-flips") {
		cfg.Generation.MaxFlips = maxFlips
	}
	if changed("metric") {
		cfg.Metric = metricName
	}
	if changed("timeout") {
		cfg.Prioritization.Timeout = prioTimeout
	}
	switch cmd.Name() {
	case "generate":
		if changed("strategy") {
			cfg.Generation.Strategy = genStrategy
		}
	case "prioritize":
		if changed("strategy") {
			cfg.Prioritization.Strategy = prioStrategy
		}
	case "run":
		if changed("generator") {
			cfg.Generation.Strategy = genStrategy
		}
		if changed("prioritizer") {
			cfg.Prioritization.Strategy = prioStrategy
		}
	}
}
