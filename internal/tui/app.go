// Package tui provides the interactive Bubble Tea dashboard for ocburn.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ocburn/internal/analysis"
	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/tui/components"
	"github.com/theirongolddev/ocburn/internal/tui/theme"
)

// DefaultRefresh is the dashboard reload interval.
const DefaultRefresh = 30 * time.Second

const (
	tabHistory = iota
	tabBudget
	tabQuota
)

const (
	loadTimeout     = 30 * time.Second
	historyOverhead = 16 // tab bar, metric cards, sparkline card, status bar
	minTableHeight  = 3
	maxContentWidth = 160
	barLabelWidth   = 9
	quotaLabelWidth = 24
)

// snapshotMsg carries the result of one Loader call.
type snapshotMsg struct {
	snap Snapshot
	err  error
}

// refreshTickMsg fires every refresh interval.
type refreshTickMsg time.Time

// Options configures the dashboard.
type Options struct {
	// Refresh is the reload interval; zero uses DefaultRefresh.
	Refresh time.Duration
	// Days is the history window shown in titles.
	Days int
	// Context bounds every load; nil uses context.Background.
	Context context.Context
}

// App is the root Bubble Tea model.
type App struct {
	load    Loader
	ctx     context.Context
	refresh time.Duration
	days    int

	snap    Snapshot
	loaded  bool
	loading bool
	err     error

	width     int
	height    int
	activeTab int

	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewApp returns a dashboard reading its data from load.
func NewApp(load Loader, opts Options) App {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	return App{
		load:    load,
		ctx:     opts.Context,
		refresh: opts.Refresh,
		days:    opts.Days,
		loading: true,
		table:   newSessionTable(),
		spinner: sp,
		help:    help.New(),
		keys:    defaultKeys(),
	}
}

func newSessionTable() table.Model {
	t := theme.Active
	tbl := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 12},
			{Title: "Session", Width: 16},
			{Title: "Project", Width: 16},
			{Title: "Tokens", Width: 10},
			{Title: "Cost", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(minTableHeight),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.Border).
		BorderBottom(true).
		Foreground(t.TextMuted).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(t.TextPrimary).
		Background(t.SurfaceHover).
		Bold(false)
	tbl.SetStyles(s)
	return tbl
}

// Init starts the first load and the refresh timer.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.loadCmd(), a.tickCmd())
}

func (a App) loadCmd() tea.Cmd {
	load, parent := a.load, a.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, loadTimeout)
		defer cancel()
		snap, err := load(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (a App) tickCmd() tea.Cmd {
	return tea.Tick(a.refresh, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

// startRefresh begins a reload unless one is running.
func (a App) startRefresh() (App, tea.Cmd) {
	if a.loading {
		return a, nil
	}
	a.loading = true
	return a, tea.Batch(a.spinner.Tick, a.loadCmd())
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.help.Width = msg.Width
		a.resizeTable()
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && msg.Y == 0 {
			if idx := components.TabAtX(msg.X); idx >= 0 {
				a.activeTab = idx
			}
		}
		return a, nil

	case snapshotMsg:
		a.loading = false
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.err = nil
		a.snap = msg.snap
		a.loaded = true
		a.table.SetRows(sessionRows(msg.snap.Records))
		return a, nil

	case refreshTickMsg:
		next, cmd := a.startRefresh()
		return next, tea.Batch(cmd, next.tickCmd())

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Refresh):
		return a.startRefresh()
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil
	case key.Matches(msg, a.keys.NextTab):
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	case key.Matches(msg, a.keys.PrevTab):
		a.activeTab = (a.activeTab + len(components.Tabs) - 1) % len(components.Tabs)
		return a, nil
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		if idx := components.TabIdxByKey(msg.Runes[0]); idx >= 0 {
			a.activeTab = idx
			return a, nil
		}
	}

	if a.activeTab == tabHistory {
		var cmd tea.Cmd
		a.table, cmd = a.table.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) resizeTable() {
	a.table.SetWidth(a.contentWidth())
	a.table.SetHeight(max(minTableHeight, a.height-historyOverhead))
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func sessionRows(records []model.SessionRecord) []table.Row {
	rows := make([]table.Row, len(records))
	for i, r := range records {
		project := r.ProjectID
		if project == "" {
			project = "-"
		}
		rows[i] = table.Row{
			r.Time().Format("01-02 15:04"),
			r.SessionID,
			project,
			cli.FormatTokens(r.Totals.Total),
			cli.FormatCost(r.Cost),
		}
	}
	return rows
}

// View renders the dashboard.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if !a.loaded {
		return a.viewLoading()
	}

	w := a.contentWidth()
	var b strings.Builder
	b.WriteString(components.RenderTabBar(a.activeTab, w))
	b.WriteString("\n\n")

	switch a.activeTab {
	case tabBudget:
		b.WriteString(a.viewBudget(w))
	case tabQuota:
		b.WriteString(a.viewQuota(w))
	default:
		b.WriteString(a.viewHistory(w))
	}
	b.WriteString("\n")

	if a.help.ShowAll {
		b.WriteString(a.help.View(a.keys))
		b.WriteString("\n")
	}
	b.WriteString(a.statusBar(w))
	return b.String()
}

func (a App) viewLoading() string {
	t := theme.Active
	msg := a.spinner.View() + " Loading usage history..."
	if a.err != nil {
		msg = lipgloss.NewStyle().Foreground(t.Red).Render("Error: "+a.err.Error()) +
			"\n\n" + lipgloss.NewStyle().Foreground(t.TextMuted).Render("[r]etry  [q]uit")
	}
	return lipgloss.Place(a.width, max(1, a.height), lipgloss.Center, lipgloss.Center, msg)
}

func (a App) viewHistory(w int) string {
	s := a.snap
	avg := 0.0
	if len(s.Daily) > 0 {
		avg = s.Cost / float64(len(s.Daily))
	}

	var b strings.Builder
	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "Cost", Value: cli.FormatCost(s.Cost)},
		{Label: "Tokens", Value: cli.FormatTokens(s.Tokens)},
		{Label: "Sessions", Value: cli.FormatNumber(int64(len(s.Records)))},
		{Label: "Avg / Active Day", Value: cli.FormatCost(avg)},
	}, w))
	b.WriteString("\n")

	title := fmt.Sprintf("Daily Cost (%dd)", a.days)
	body := components.CostSparkline(s.Daily, components.CardInnerWidth(w))
	if body == "" {
		body = cli.Muted("No sessions in range")
	}
	if s.Trends.WeekOverWeek != 0 {
		body += "\n" + cli.Muted("Week over week: "+cli.FormatPercent(s.Trends.WeekOverWeek))
	}
	b.WriteString(components.ContentCard(title, body, w))
	b.WriteString("\n")

	b.WriteString(a.table.View())
	return b.String()
}

func (a App) viewBudget(w int) string {
	if len(a.snap.Budget) == 0 {
		return components.ContentCard("Budget", cli.Muted("No budget configured. Run `ocburn setup` to add limits."), w)
	}
	inner := components.CardInnerWidth(w)
	barW := max(10, inner-barLabelWidth-24)

	lines := make([]string, len(a.snap.Budget))
	for i, s := range a.snap.Budget {
		lines[i] = components.BudgetBar(analysis.PeriodLabel(s.Period), s, barLabelWidth, barW)
	}
	return components.ContentCard("Budget", strings.Join(lines, "\n"), w)
}

func (a App) viewQuota(w int) string {
	if len(a.snap.Quotas) == 0 {
		return components.ContentCard("Quota", cli.Muted("No quota data found."), w)
	}
	inner := components.CardInnerWidth(w)
	barW := max(10, inner-quotaLabelWidth-24)

	lines := make([]string, len(a.snap.Quotas))
	for i, q := range a.snap.Quotas {
		lines[i] = components.QuotaBar(q, a.snap.LoadedAt, quotaLabelWidth, barW)
	}
	return components.ContentCard("Quota (remaining)", strings.Join(lines, "\n"), w)
}

func (a App) statusBar(w int) string {
	left := a.help.ShortHelpView(a.keys.ShortHelp())
	right := "Updated " + a.snap.LoadedAt.Format("15:04:05")
	switch {
	case a.loading:
		right = a.spinner.View() + " refreshing"
	case a.err != nil:
		right = "refresh failed: " + a.err.Error()
	}
	return components.RenderStatusBar(w, left, right)
}
