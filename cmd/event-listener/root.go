package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "event-listener",
		Short: "Watch an EVM contract for log events and forward them to console, file, or webhook",
	}
)

func init() {
	cobra.EnableCommandSorting = false

	// -c belongs to run's --contract.
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to an optional YAML config file")

	rootCmd.AddCommand(
		versionCmd,
		initCmd,
		validateCmd,
		runCmd,
		chainsCmd,
		stateCmd,
		exportCmd,
	)
}

// Execute runs the root command tree.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
