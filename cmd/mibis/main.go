// Command mibis conditions the bits of an entropy source with the MiBiS&XOR
// method. It writes conditioned bit files or runs as a service that feeds
// a random number generator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safing/mibis/config"
	"github.com/safing/mibis/info"
	"github.com/safing/mibis/log"
)

var (
	// Version is the version of the binary.
	Version = ""

	configFile string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "mibis",
		Short: "Condition entropy with MiBiS&XOR",
		Long: `mibis extracts bits from samples of an entropy source, reorders them with the
MiBiS midpoint mixer and compresses them by XOR of adjacent pairs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.SetInitialLevel(logLevel)
			if configFile != "" {
				if err := registerAllConfig(); err != nil {
					return err
				}
				if err := config.LoadFile(configFile); err != nil {
					return fmt.Errorf("failed to load config file %s: %w", configFile, err)
				}
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "load options from a json or yaml config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "set log level to [trace|debug|info|warning|error|critical]")
}

func main() {
	info.Set("mibis", Version, "GPLv3")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
