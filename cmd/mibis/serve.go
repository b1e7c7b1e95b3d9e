package main

import (
	"github.com/spf13/cobra"

	"github.com/safing/mibis/api"
	"github.com/safing/mibis/run"
	"github.com/safing/mibis/trng"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conditioner as a service",
	Long: `Runs the conditioner continuously. Its output reseeds a Fortuna RNG, which is
served over HTTP together with the status of the conditioner, prometheus
metrics and a websocket stream of the conditioned bits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := registerAllConfig(); err != nil {
			return err
		}
		overrides := map[string]string{
			"listen": api.CfgListenAddressKey,
			"input":  trng.CfgSourceKey,
			"store":  trng.CfgStorePathKey,
		}
		for name, key := range overrides {
			if !cmd.Flags().Changed(name) {
				continue
			}
			if err := setFromFlag(cmd.Flags().Lookup(name), key); err != nil {
				return err
			}
		}

		exitCode = run.Run()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("listen", api.DefaultListenAddress, "address the api listens on")
	flags.StringP("input", "i", trng.SourceJitter, `sample source: a .wav or raw pcm file, or "jitter"`)
	flags.String("store", "", "keep the conditioned bits and run reports in this database")
	flags.BoolVar(&run.PrintStackOnExit, "print-stack-on-exit", false, "print the stack of all goroutines before exiting")
}
