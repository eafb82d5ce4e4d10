package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rickardjd/Easy-IP/internal/config"
	"github.com/Rickardjd/Easy-IP/internal/discovery"
	"github.com/Rickardjd/Easy-IP/internal/registry"
	"github.com/Rickardjd/Easy-IP/internal/store"
	"github.com/Rickardjd/Easy-IP/internal/tracker"
	"github.com/Rickardjd/Easy-IP/internal/tui"
)

// Command flags
var (
	scanTimeout   int
	bindInterface string
	outputFormat  string
	sortKey       string
	activeOnly    bool
	missingHours  int
	outputPath    string
	sweepTimeout  int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format (table, json, csv)")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// openTracker builds the full stack from the on-disk configuration:
// store, registry, discovery session, tracker. The returned cleanup
// must run before exit.
func openTracker() (*tracker.Tracker, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	dataPath, err := cfg.DataPath()
	if err != nil {
		return nil, nil, err
	}

	var st registry.Store
	cleanup := func() {}
	if cfg.Storage != nil && cfg.Storage.Backend == config.BackendSQLite {
		sq, err := store.NewSQLiteStore(dataPath)
		if err != nil {
			return nil, nil, err
		}
		st = sq
		cleanup = func() { sq.Close() }
	} else {
		st = store.NewJSONStore(dataPath)
	}

	threshold := cfg.MissingThreshold()
	if missingHours > 0 {
		threshold = time.Duration(missingHours) * time.Hour
	}
	reg, err := registry.Open(st, threshold)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	session := discovery.NewSession()
	session.Timeout = cfg.Timeout()
	if cfg.Discovery != nil && cfg.Discovery.Interface != "" {
		session.Interface = cfg.Discovery.Interface
	}
	if scanTimeout > 0 {
		session.Timeout = time.Duration(scanTimeout) * time.Second
	}
	if bindInterface != "" {
		session.Interface = bindInterface
	}

	return tracker.New(reg, session), cleanup, nil
}

// discoverCmd scans the network and reconciles the results
var discoverCmd = &cobra.Command{
	Use:     "discover",
	Aliases: []string{"scan"},
	Short:   "Scan the local network for devices",
	Long: `Broadcast an Easy IP search request and collect responses.

Discovered devices are folded into the persistent inventory: new
devices are recorded, known devices get their last-seen time and IP
history updated.`,
	Example: `  # Scan with the default 3-second window
  easyip discover

  # Longer window for sluggish networks
  easyip discover --timeout 10

  # Scan via a specific local interface address
  easyip discover --interface 192.168.0.5`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (0 = configured default)")
	discoverCmd.Flags().StringVar(&bindInterface, "interface", "", "Local IP address to scan from")
	discoverCmd.Flags().StringVar(&sortKey, "sort", "last_seen", "Sort key (last_seen, first_seen, ip, mac, name)")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	tr, cleanup, err := openTracker()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if outputFormat == "table" {
		fmt.Println("Scanning for devices...")
	}

	report, err := tr.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	reg := tr.Registry()
	now := time.Now()
	inScan := make(map[string]bool, report.DeviceCount)
	for _, mac := range append(append([]string{}, report.Summary.New...), report.Summary.Updated...) {
		inScan[mac] = true
	}
	for _, ch := range report.Summary.IPChanged {
		inScan[ch.MAC] = true
	}
	scanned := make([]*registry.DeviceRecord, 0, report.DeviceCount)
	for _, rec := range reg.List(registry.SortKey(sortKey)) {
		if inScan[rec.MAC] {
			scanned = append(scanned, rec)
		}
	}

	if outputFormat != "table" {
		return writeDevices(os.Stdout, reg, scanned, now, outputFormat)
	}

	if report.DeviceCount == 0 {
		fmt.Println("No devices found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Devices only answer broadcasts from their own subnet")
		fmt.Println("  - Check that UDP ports 10669/10670 are not filtered")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Factory-fresh devices may still be waiting for an address")
		return nil
	}

	fmt.Printf("\nFound %d device(s) in %s", report.DeviceCount, report.Elapsed.Round(time.Millisecond))
	if report.DecodeErrors > 0 {
		fmt.Printf(" (%d undecodable responses ignored)", report.DecodeErrors)
	}
	fmt.Print("\n\n")
	if err := writeDevices(os.Stdout, reg, scanned, now, "table"); err != nil {
		return err
	}

	fmt.Printf("\n%d new, %d updated, %d changed IP\n",
		len(report.Summary.New), len(report.Summary.Updated), len(report.Summary.IPChanged))
	for _, ch := range report.Summary.IPChanged {
		fmt.Printf("  %s moved %s -> %s\n", ch.MAC, ch.PreviousIP, ch.CurrentIP)
	}
	return nil
}

// listCmd shows the persisted inventory
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known devices",
	Long: `List every device ever recorded, with its derived status.

Devices absent from the latest scan show as offline, and as missing
once unseen for longer than the configured threshold.`,
	Example: `  # List by last-seen time (default)
  easyip list

  # List by IP address
  easyip list --sort ip

  # Only devices answering the latest scan
  easyip list --active-only

  # Machine-readable output
  easyip list --format json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&sortKey, "sort", "last_seen", "Sort key (last_seen, first_seen, ip, mac, name)")
	listCmd.Flags().BoolVar(&activeOnly, "active-only", false, "Only show devices present in the latest scan")
	listCmd.Flags().IntVar(&missingHours, "missing-hours", 0, "Hours before an unseen device counts as missing (0 = configured default)")
}

func runList(cmd *cobra.Command, args []string) error {
	tr, cleanup, err := openTracker()
	if err != nil {
		return err
	}
	defer cleanup()

	reg := tr.Registry()
	now := time.Now()
	records := reg.List(registry.SortKey(sortKey))
	if activeOnly {
		kept := records[:0]
		for _, rec := range records {
			switch reg.StatusOf(rec, now) {
			case registry.StatusActive, registry.StatusIPChanged:
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	if len(records) == 0 && outputFormat == "table" {
		if activeOnly {
			fmt.Println("No devices in the latest scan.")
		} else {
			fmt.Println("No devices recorded yet. Run 'easyip discover' first.")
		}
		return nil
	}
	return writeDevices(os.Stdout, reg, records, now, outputFormat)
}

// historyCmd shows per-device IP history
var historyCmd = &cobra.Command{
	Use:   "history <mac>",
	Short: "Show the IP address history of a device",
	Example: `  easyip history 00:80:45:12:34:56
  easyip history 00:80:45:12:34:56 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	tr, cleanup, err := openTracker()
	if err != nil {
		return err
	}
	defer cleanup()

	rec, err := tr.Registry().Get(args[0])
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec.IPHistory)
	}

	fmt.Printf("%s (%s, %s)\n", rec.DeviceName, rec.ModelName, rec.MAC)
	fmt.Printf("First seen %s, discovered %d times\n\n",
		rec.FirstSeen.Local().Format("2006-01-02 15:04:05"), rec.TotalDiscoveries)
	for _, entry := range rec.IPHistory {
		when := entry.Timestamp.Local().Format("2006-01-02 15:04:05")
		if entry.PreviousIP == nil {
			fmt.Printf("  %s  %-15s  (first address)\n", when, entry.IP)
		} else {
			fmt.Printf("  %s  %-15s  (was %s)\n", when, entry.IP, *entry.PreviousIP)
		}
	}
	return nil
}

// statsCmd shows inventory aggregates
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show inventory statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	tr, cleanup, err := openTracker()
	if err != nil {
		return err
	}
	defer cleanup()

	stats := tr.Registry().Stats(time.Now())
	if outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Devices:   %d (%d cameras, %d recorders)\n", stats.Total, stats.Cameras, stats.Recorders)
	fmt.Printf("Active:    %d\n", stats.ByStatus[registry.StatusActive])
	fmt.Printf("IP moved:  %d\n", stats.ByStatus[registry.StatusIPChanged])
	fmt.Printf("Offline:   %d\n", stats.ByStatus[registry.StatusOffline])
	fmt.Printf("Missing:   %d\n", stats.ByStatus[registry.StatusMissing])
	fmt.Printf("\nDiscoveries: %d total, %.1f per device\n", stats.TotalDiscoveries, stats.AvgDiscoveries)
	fmt.Printf("Devices that changed IP: %d\n", stats.DevicesWithIPChanges)
	if len(stats.IPConflicts) > 0 {
		fmt.Println("\nIP conflicts:")
		for ip, macs := range stats.IPConflicts {
			fmt.Printf("  %s claimed by %v\n", ip, macs)
		}
	}
	return nil
}

// exportCmd dumps the inventory to a file or stdout
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the device inventory",
	Example: `  # JSON to stdout
  easyip export --format json

  # CSV to a file
  easyip export --format csv --output devices.csv`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&outputPath, "output", "", "Write to file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	tr, cleanup, err := openTracker()
	if err != nil {
		return err
	}
	defer cleanup()

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	reg := tr.Registry()
	format := outputFormat
	if format == "table" {
		format = "json" // exports are machine-readable
	}
	records := reg.List(registry.SortByMAC)
	if err := writeDevices(out, reg, records, time.Now(), format); err != nil {
		return err
	}
	if outputPath != "" {
		fmt.Printf("Exported %d devices to %s\n", len(records), outputPath)
	}
	return nil
}

// sweepCmd runs the mDNS diagnostic sweep
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Browse mDNS for HTTP services (diagnostic)",
	Long: `Browse the local network for mDNS-advertised HTTP services.

This is a diagnostic fallback for segments where the broadcast
protocol is filtered. Results carry no hardware address and are not
recorded in the inventory.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().IntVar(&sweepTimeout, "timeout", 10, "Sweep timeout in seconds")
}

func runSweep(cmd *cobra.Command, args []string) error {
	fmt.Printf("Browsing mDNS for HTTP services (timeout: %ds)...\n\n", sweepTimeout)

	sweeper := discovery.NewSweeper()
	sweeper.Timeout = time.Duration(sweepTimeout) * time.Second

	entries, err := sweeper.Sweep(context.Background())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No services found.")
		return nil
	}

	fmt.Printf("Found %d service(s):\n\n", len(entries))
	for i, entry := range entries {
		fmt.Printf("%d. %s\n", i+1, entry.Instance)
		fmt.Printf("   Host: %s\n", entry.Hostname)
		fmt.Printf("   IP:   %s:%d\n", entry.IP, entry.Port)
		if len(entry.Metadata) > 0 {
			fmt.Printf("   TXT:  %v\n", entry.Metadata)
		}
		fmt.Println()
	}
	return nil
}

// dashboardCmd launches the interactive TUI
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Launch the interactive dashboard",
	Long: `Launch a terminal dashboard showing the device inventory with live
status, with on-demand scanning.`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	tr, cleanup, err := openTracker()
	if err != nil {
		return err
	}
	defer cleanup()

	return tui.Run(tr)
}
