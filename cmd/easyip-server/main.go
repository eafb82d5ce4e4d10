// Easyip-server exposes the device inventory over HTTP.
//
// It serves a JSON API for listing, scanning, and exporting tracked
// i-PRO devices, pushes scan results to WebSocket subscribers, and can
// run scheduled background scans to keep the inventory current.
//
// Usage:
//
//	easyip-server serve [flags]
//
// See 'easyip-server serve --help' for available options.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rickardjd/Easy-IP/internal/config"
	"github.com/Rickardjd/Easy-IP/internal/discovery"
	"github.com/Rickardjd/Easy-IP/internal/logging"
	"github.com/Rickardjd/Easy-IP/internal/registry"
	"github.com/Rickardjd/Easy-IP/internal/server"
	"github.com/Rickardjd/Easy-IP/internal/store"
	"github.com/Rickardjd/Easy-IP/internal/tracker"
	"github.com/Rickardjd/Easy-IP/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "easyip-server",
	Short: "Device inventory web server",
	Long: `A web server for the i-PRO device inventory.

Serves the tracked device list, statistics, and IP histories over a
JSON API, broadcasts scan results to WebSocket subscribers, and
optionally runs scheduled background scans.

Note: for one-shot scans and terminal output, use the 'easyip'
utility instead.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	listenAddr       string
	logLevel         string
	autoScan         bool
	autoScanInterval string
	scanTimeout      int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inventory web server",
	Long: `Start the inventory web server.

Storage backend and discovery settings come from the configuration
file; flags override the listen address and scan schedule.`,
	Example: `  # Start with configured defaults
  easyip-server serve

  # Custom port with debug logging
  easyip-server serve --listen :9090 --log-level debug

  # Scan every minute
  easyip-server serve --auto-scan-interval 1m

  # Disable background scanning
  easyip-server serve --auto-scan=false`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (empty = configured default)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&autoScan, "auto-scan", true, "Run scheduled background scans")
	serveCmd.Flags().StringVar(&autoScanInterval, "auto-scan-interval", "", "Scan schedule period, e.g. 5m (empty = configured default)")
	serveCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (0 = configured default)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dataPath, err := cfg.DataPath()
	if err != nil {
		return err
	}

	var st registry.Store
	if cfg.Storage != nil && cfg.Storage.Backend == config.BackendSQLite {
		sq, err := store.NewSQLiteStore(dataPath)
		if err != nil {
			return err
		}
		defer sq.Close()
		st = sq
	} else {
		st = store.NewJSONStore(dataPath)
	}

	reg, err := registry.Open(st, cfg.MissingThreshold())
	if err != nil {
		return err
	}

	session := discovery.NewSession()
	session.Timeout = cfg.Timeout()
	if cfg.Discovery != nil && cfg.Discovery.Interface != "" {
		session.Interface = cfg.Discovery.Interface
	}
	if scanTimeout > 0 {
		session.Timeout = time.Duration(scanTimeout) * time.Second
	}

	srvCfg := &server.Config{
		ListenAddr:       cfg.Server.ListenAddr,
		AutoScan:         autoScan && cfg.Server.AutoScan,
		AutoScanInterval: cfg.Server.AutoScanInterval,
	}
	if listenAddr != "" {
		srvCfg.ListenAddr = listenAddr
	}
	if autoScanInterval != "" {
		srvCfg.AutoScanInterval = autoScanInterval
	}
	if cmd.Flags().Changed("auto-scan") {
		srvCfg.AutoScan = autoScan
	}

	srv, err := server.New(srvCfg, tracker.New(reg, session))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("easyip-server %s (commit: %s)\n", version.Version, version.Commit)
	},
}
