package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const debounceInterval = 200 * time.Millisecond

// watchCmd: pledge watch MODEL
var watchCmd = &cobra.Command{
	Use:   "watch MODEL",
	Short: "Reclassify a model each time its file changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ft, err := modelFormat()
		if err != nil {
			return err
		}
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := interruptible()
		defer cancel()
		p, stop := newPipeline()
		defer stop()
		reload := func() {
			m, err := p.Load(path, ft)
			if err != nil {
				logger.Error("Could not load model", zap.String("path", path), zap.Error(err))
				return
			}
			c, err := p.Classify(ctx)
			if err != nil {
				logger.Error("Could not classify model", zap.Error(err))
				return
			}
			printClassification(os.Stdout, m, c)
		}
		reload()
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer fw.Close()
		// Editors often replace files rather than write them, so the directory is watched.
		if err := fw.Add(filepath.Dir(path)); err != nil {
			return err
		}
		logger.Info("Watching model", zap.String("path", path))
		return watchFile(ctx, fw, path, reload)
	},
}

// watchFile calls onChange after each burst of writes to path, until ctx is done.
func watchFile(ctx context.Context, fw *fsnotify.Watcher, path string, onChange func()) error {
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer = time.After(debounceInterval)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))
		case <-timer:
			timer = nil
			onChange()
		}
	}
}
