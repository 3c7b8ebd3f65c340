// Package cmd implements the pledge command line.
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/crillab/pledge/config"
	"github.com/crillab/pledge/fm"
	"github.com/crillab/pledge/metrics"
	"github.com/crillab/pledge/pipeline"
	"github.com/crillab/pledge/progress"
	"github.com/crillab/pledge/store"
)

var (
	cfgFile     string
	verbose     bool
	backend     string
	storePath   string
	metricsAddr string
	seed        int64
	format      string

	cfg     *config.Config
	logger  *zap.Logger
	met     *metrics.Metrics
	metSrv  *http.Server
	archive *store.Store
)

var rootCmd = &cobra.Command{
	Use:           "pledge",
	Short:         "pledge - sampling and prioritization of product line configurations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := newLogger(); err != nil {
			return err
		}
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("backend") {
			cfg.Backend = backend
		}
		if flags.Changed("store") {
			cfg.Store = storePath
		}
		if flags.Changed("metrics-addr") {
			cfg.MetricsAddr = metricsAddr
		}
		if flags.Changed("seed") {
			cfg.Seed = seed
		}
		applyStageFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		reg := prometheus.NewRegistry()
		met = metrics.New(reg)
		if cfg.MetricsAddr != "" {
			serveMetrics(reg, cfg.MetricsAddr)
		}
		return nil
	},
}

// Execute runs the command line.
func Execute() error {
	resetFlags(rootCmd)
	err := rootCmd.Execute()
	if err != nil {
		if logger != nil {
			logger.Error("Command failed", zap.Error(err))
		} else {
			rootCmd.PrintErrln("Error:", err)
		}
	}
	cleanup()
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "configuration file (default "+config.DefaultPath+" if present)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	pf.StringVar(&backend, "backend", "", "SAT backend (gophersat, gini)")
	pf.StringVar(&storePath, "store", "", "run archive database")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "address serving prometheus metrics, e.g. :9090")
	pf.Int64Var(&seed, "seed", 0, "random seed (0 means time-based)")
	pf.StringVar(&format, "format", "auto", "feature model format (auto, dimacs, splot)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(prioritizeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(watchCmd)
}

func newLogger() error {
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	return err
}

// cleanup releases what the command acquired. It runs whether the command failed or not.
func cleanup() {
	if archive != nil {
		if err := archive.Close(); err != nil && logger != nil {
			logger.Warn("Could not close store", zap.Error(err))
		}
		archive = nil
	}
	if metSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		metSrv.Shutdown(ctx)
		metSrv = nil
	}
	if logger != nil {
		logger.Sync()
	}
}

// resetFlags restores the default value of every flag, so that the command line can run again in the same process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func serveMetrics(reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", addr))
}

// openStore opens the run archive. If required is false, a failure is only logged.
func openStore(required bool) (*store.Store, error) {
	if archive != nil {
		return archive, nil
	}
	if cfg.Store == "" {
		if required {
			return nil, errors.New("no store configured")
		}
		return nil, nil
	}
	s, err := store.Open(cfg.Store)
	if err != nil {
		if required {
			return nil, err
		}
		logger.Warn("Running without store", zap.String("path", cfg.Store), zap.Error(err))
		return nil, nil
	}
	archive = s
	return s, nil
}

// newPipeline returns a pipeline, and a function to call once it is not used anymore.
func newPipeline() (*pipeline.Pipeline, func()) {
	stream := progress.NewStream()
	opts := []pipeline.Option{pipeline.WithMetrics(met), pipeline.WithProgress(stream)}
	if s, _ := openStore(false); s != nil {
		opts = append(opts, pipeline.WithStore(s))
	}
	stop := showProgress(stream)
	return pipeline.New(cfg, logger, opts...), stop
}

func modelFormat() (fm.Format, error) {
	return fm.ParseFormat(format)
}

// interruptible returns a context cancelled on interrupt, so that stages can return partial results.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
