package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Rickardjd/Easy-IP/internal/registry"
)

var statusColors = map[registry.Status]lipgloss.Style{
	registry.StatusActive:    lipgloss.NewStyle().Foreground(lipgloss.Color("#43BF6D")),
	registry.StatusIPChanged: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
	registry.StatusOffline:   lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")),
	registry.StatusMissing:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")),
}

// writeDevices renders records in the requested format. Table output
// colors the status column when writing to a terminal.
func writeDevices(out io.Writer, reg *registry.Registry, records []*registry.DeviceRecord, now time.Time, format string) error {
	switch format {
	case "json":
		type deviceView struct {
			*registry.DeviceRecord
			Status registry.Status `json:"status"`
		}
		views := make([]deviceView, 0, len(records))
		for _, rec := range records {
			views = append(views, deviceView{DeviceRecord: rec, Status: reg.StatusOf(rec, now)})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)

	case "csv":
		w := csv.NewWriter(out)
		header := []string{"mac", "status", "kind", "name", "model", "serial", "firmware", "ip", "subnet_mask", "gateway", "http_port", "network_mode", "first_seen", "last_seen", "total_discoveries"}
		if err := w.Write(header); err != nil {
			return err
		}
		for _, rec := range records {
			row := []string{
				rec.MAC,
				string(reg.StatusOf(rec, now)),
				string(rec.Kind),
				rec.DeviceName,
				rec.ModelName,
				rec.SerialNumber,
				rec.Firmware,
				rec.IP,
				rec.SubnetMask,
				rec.Gateway,
				strconv.Itoa(rec.HTTPPort),
				string(rec.Mode),
				rec.FirstSeen.UTC().Format(time.RFC3339),
				rec.LastSeen.UTC().Format(time.RFC3339),
				strconv.Itoa(rec.TotalDiscoveries),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()

	case "table":
		colorize := out == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STATUS\tNAME\tMODEL\tKIND\tMAC\tIP\tLAST SEEN")
		for _, rec := range records {
			status := reg.StatusOf(rec, now)
			label := string(status)
			if colorize {
				if style, ok := statusColors[status]; ok {
					label = style.Render(label)
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				label, rec.DeviceName, rec.ModelName, rec.Kind, rec.MAC, rec.IP,
				rec.LastSeen.Local().Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unknown output format %q (use table, json, or csv)", format)
	}
}
