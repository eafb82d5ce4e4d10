// Easyip is a discovery and tracking utility for i-PRO network
// cameras and recorders.
//
// It broadcasts the Easy IP search protocol on the local subnet,
// classifies the responses, and maintains a persistent inventory of
// every device ever seen, including per-device IP address history.
//
// Usage:
//
//	easyip [command] [flags]
//
// Running without arguments performs a discovery scan.
// See 'easyip --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Rickardjd/Easy-IP/internal/logging"
	"github.com/Rickardjd/Easy-IP/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "easyip",
	Short: "i-PRO device discovery and tracking utility",
	Long: `A utility for discovering and tracking i-PRO network cameras and
recorders over the Easy IP broadcast protocol.

Devices are identified by hardware address, so a camera keeps its
history across DHCP renewals and network reconfigurations.

If no command is specified, a discovery scan is performed.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: scan when no subcommand provided
		return runDiscover(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("easyip %s (commit: %s)\n", version.Version, version.Commit)
	},
}
