package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crillab/pledge/config"
)

var force bool

// initCmd: pledge init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Args:  cobra.NoArgs,
	// The file to create does not exist yet: nothing is loaded.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return newLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath
		}
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite it", path)
		}
		if err := config.Default().Write(path); err != nil {
			return err
		}
		fmt.Printf("Configuration file created: %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")
}
