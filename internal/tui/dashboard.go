// Package tui implements the interactive terminal dashboard: a live
// device table with on-demand scanning.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rickardjd/Easy-IP/internal/registry"
	"github.com/Rickardjd/Easy-IP/internal/tracker"
)

type scanDoneMsg struct {
	report *tracker.Report
	err    error
}

type tickMsg time.Time

// Model is the dashboard Bubble Tea model.
type Model struct {
	tracker  *tracker.Tracker
	table    table.Model
	scanning bool
	lastErr  error
	width    int
	height   int
}

// NewModel creates a dashboard over tr.
func NewModel(tr *tracker.Tracker) Model {
	columns := []table.Column{
		{Title: " ", Width: 2},
		{Title: "Name", Width: 18},
		{Title: "Model", Width: 14},
		{Title: "Kind", Width: 9},
		{Title: "MAC", Width: 18},
		{Title: "IP", Width: 16},
		{Title: "Mode", Width: 14},
		{Title: "Last Seen", Width: 20},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(PrimaryColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(TextColor).
		Background(PrimaryColor).
		Bold(false)
	t.SetStyles(styles)

	m := Model{tracker: tr, table: t}
	m.refreshRows()
	return m
}

// Run starts the dashboard and blocks until the user quits.
func Run(tr *tracker.Tracker) error {
	p := tea.NewProgram(NewModel(tr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			if !m.scanning {
				m.scanning = true
				m.lastErr = nil
				return m, m.scanCmd()
			}
		case "r":
			m.refreshRows()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 8; h > 4 {
			m.table.SetHeight(h)
		}

	case scanDoneMsg:
		m.scanning = false
		m.lastErr = msg.err
		m.refreshRows()
		return m, nil

	case tickMsg:
		m.refreshRows()
		return m, tick()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m Model) View() string {
	reg := m.tracker.Registry()
	stats := reg.Stats(time.Now())

	title := titleStyle.Render("Easy IP Device Tracker")
	summary := statusBarStyle.Render(fmt.Sprintf(
		"%d devices  •  %d cameras  •  %d recorders  •  %d active",
		stats.Total, stats.Cameras, stats.Recorders,
		stats.ByStatus[registry.StatusActive],
	))

	status := ""
	switch {
	case m.scanning:
		status = scanningStyle.Render("Scanning...")
	case m.lastErr != nil:
		status = errorStyle.Render("Scan failed: " + m.lastErr.Error())
	case m.tracker.LastReport() != nil:
		r := m.tracker.LastReport()
		status = statusBarStyle.Render(fmt.Sprintf(
			"Last scan: %s  (%d new, %d updated, %d moved)",
			r.StartedAt.Format("15:04:05"),
			len(r.Summary.New), len(r.Summary.Updated), len(r.Summary.IPChanged),
		))
	}

	help := helpStyle.Render("s scan  •  r refresh  •  ↑/↓ navigate  •  q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		summary,
		"",
		tableBorderStyle.Render(m.table.View()),
		status,
		help,
	)
}

func (m *Model) refreshRows() {
	reg := m.tracker.Registry()
	now := time.Now()

	rows := make([]table.Row, 0)
	for _, rec := range reg.List(registry.SortByLastSeen) {
		rows = append(rows, table.Row{
			statusGlyph(string(reg.StatusOf(rec, now))),
			rec.DeviceName,
			rec.ModelName,
			string(rec.Kind),
			rec.MAC,
			rec.IP,
			string(rec.Mode),
			rec.LastSeen.Format("2006-01-02 15:04:05"),
		})
	}
	m.table.SetRows(rows)
}

func (m Model) scanCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		report, err := m.tracker.Scan(ctx)
		return scanDoneMsg{report: report, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
