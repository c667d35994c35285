package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// usageFetcher returns a fresh snapshot; the dashboard calls it on start,
// on every tick and on manual refresh.
type usageFetcher func(ctx context.Context) (*UsageSnapshot, error)

// messages

type usageFetchedMsg struct {
	usage *UsageSnapshot
	err   error
}

type tickMsg time.Time

const (
	refreshInterval = 5 * time.Minute
	refreshDebounce = 10 * time.Second
	fetchTimeout    = 30 * time.Second
)

// styles

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	labelColor = lipgloss.Color("252")

	resetColor = lipgloss.Color("243")

	percentStyle = lipgloss.NewStyle().
			Width(9).
			Align(lipgloss.Right).
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	staleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// model

type model struct {
	usage     *UsageSnapshot
	err       error
	lastFetch time.Time
	stale     bool

	messagesBar progress.Model
	weeklyBar   progress.Model
	spinner     spinner.Model

	ctx         context.Context
	fetch       usageFetcher
	interval    time.Duration
	loading     bool
	width       int
	height      int
	lastRefresh time.Time // debounce
}

// narrow returns true when the terminal is too tight for the full layout
func (m model) narrow() bool {
	return m.contentWidth() < 44
}

// contentWidth returns usable width inside the border
func (m model) contentWidth() int {
	if m.width <= 0 {
		return 50
	}
	pad := 6 // 2 border + 4 padding
	if m.narrow2() {
		pad = 4 // 2 border + 2 padding
	}
	return m.width - pad
}

// narrow2 is the raw width check (no contentWidth recursion)
func (m model) narrow2() bool {
	return m.width < 35
}

func (m model) labelWidth() int {
	if m.narrow() {
		return 6
	}
	return 14
}

func (m model) borderStyle() lipgloss.Style {
	s := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("99"))
	if m.narrow2() {
		return s.Padding(0, 1)
	}
	return s.Padding(0, 2)
}

// newModel builds the dashboard. Fetches derive their deadline from ctx, so
// cancelling it aborts a fetch in flight.
func newModel(ctx context.Context, fetch usageFetcher) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	barWidth := 30

	return model{
		messagesBar: newBar(barWidth),
		weeklyBar:   newBar(barWidth),
		spinner:     s,
		ctx:         ctx,
		fetch:       fetch,
		interval:    refreshInterval,
		loading:     true,
	}
}

func newBar(width int) progress.Model {
	// HP bar: red at low, green at high
	return progress.New(
		progress.WithScaledGradient("#FF6347", "#76EEC6"),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchCmd(m.ctx, m.fetch),
		tickCmd(m.interval),
	)
}

func fetchCmd(parent context.Context, fetch usageFetcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, fetchTimeout)
		defer cancel()
		usage, err := fetch(ctx)
		return usageFetchedMsg{usage: usage, err: err}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *model) resizeBars() {
	cw := m.contentWidth()
	// bar = content - label - " " - value(9)
	barWidth := cw - m.labelWidth() - 10
	barWidth = max(8, min(barWidth, 30))
	m.messagesBar.Width = barWidth
	m.weeklyBar.Width = barWidth
}

// fraction returns left/limit clamped to [0, 1]; a zero limit reads as empty.
func fraction(left, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, left/limit))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			// one fetch at a time
			if m.loading || time.Since(m.lastRefresh) < refreshDebounce {
				return m, nil
			}
			m.loading = true
			m.lastRefresh = time.Now()
			return m, tea.Batch(m.spinner.Tick, fetchCmd(m.ctx, m.fetch))
		}

	case usageFetchedMsg:
		m.loading = false
		if msg.err != nil {
			m.stale = m.usage != nil
			m.err = msg.err
			return m, nil
		}
		m.usage = msg.usage
		m.err = nil
		m.stale = false
		m.lastFetch = time.Now()

		cp := m.usage.CurrentPeriod
		cmds := []tea.Cmd{
			m.messagesBar.SetPercent(fraction(float64(cp.Remaining), float64(cp.MessageLimit))),
		}
		if w, ok := m.usage.Weekly(); ok {
			cmds = append(cmds, m.weeklyBar.SetPercent(fraction(w.LimitMinutes-w.TotalMinutes, w.LimitMinutes)))
		}
		return m, tea.Batch(cmds...)

	case tickMsg:
		if m.loading {
			return m, tickCmd(m.interval)
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, fetchCmd(m.ctx, m.fetch), tickCmd(m.interval))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeBars()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		var cmds []tea.Cmd

		pm, c := m.messagesBar.Update(msg)
		m.messagesBar = pm.(progress.Model)
		cmds = append(cmds, c)

		pm, c = m.weeklyBar.Update(msg)
		m.weeklyBar = pm.(progress.Model)
		cmds = append(cmds, c)

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	// title row
	cw := m.contentWidth()
	title := titleStyle.Render("claude usage")
	if m.loading {
		title += "  " + m.spinner.View()
	} else if m.stale {
		title += "  " + staleStyle.Render("stale")
	}

	// right side: usage type + last updated
	right := ""
	if m.usage != nil && m.usage.UsageType != nil && *m.usage.UsageType != "" {
		t := *m.usage.UsageType
		right += strings.ToUpper(t[:1]) + t[1:]
	}
	if !m.lastFetch.IsZero() {
		if right != "" {
			right += " • "
		}
		right += m.lastFetch.Format("15:04")
	}
	if right != "" {
		titleRow := title + footerStyle.Render(strings.Repeat(" ", max(1, cw-lipgloss.Width(title)-lipgloss.Width(right)))+right)
		b.WriteString(titleRow + "\n")
	} else {
		b.WriteString(title + "\n")
	}

	// error only (no data yet)
	if m.err != nil && m.usage == nil {
		b.WriteString(errorStyle.Render("  "+m.err.Error()) + "\n")
		return m.borderStyle().Render(b.String())
	}

	if m.usage != nil {
		narrow := m.narrow()
		lw := m.labelWidth()

		cp := m.usage.CurrentPeriod
		label := "Messages"
		if narrow {
			label = "Msgs"
		}
		b.WriteString(m.renderBar(label, m.messagesBar, fmt.Sprintf("%d/%d", cp.Remaining, cp.MessageLimit), lw))

		if w, ok := m.usage.Weekly(); ok {
			label := "Weekly (7d)"
			if narrow {
				label = "7d"
			}
			left := math.Max(0, w.LimitMinutes-w.TotalMinutes)
			b.WriteString(m.renderBar(label, m.weeklyBar, fmt.Sprintf("%.0fm", left), lw))
		}

		if m.usage.ResetAt != nil {
			dim := lipgloss.NewStyle().Foreground(resetColor)
			b.WriteString(dim.Render(formatReset(*m.usage.ResetAt)) + "\n")
		}
	}

	// stale error
	if m.stale && m.err != nil {
		b.WriteString(staleStyle.Render("  "+m.err.Error()) + "\n\n")
	}

	// footer hint
	b.WriteString(footerStyle.Render("  [r] refresh  [q] quit") + "\n")

	return m.borderStyle().Render(b.String())
}

func (m model) renderBar(label string, bar progress.Model, value string, labelWidth int) string {
	valueStr := percentStyle.Render(value)
	labelStr := lipgloss.NewStyle().Width(labelWidth).Foreground(labelColor).Render(label)
	return labelStr + bar.View() + " " + valueStr + "\n"
}

func formatReset(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}

	until := time.Until(t)
	if until <= 0 {
		return "resetting..."
	}

	if until < time.Hour {
		return fmt.Sprintf("resets in %dm", int(math.Ceil(until.Minutes())))
	}
	if until < 24*time.Hour {
		h := int(until.Hours())
		m := int(until.Minutes()) % 60
		return fmt.Sprintf("resets in %dh %dm", h, m)
	}
	return "resets " + t.Local().Format("Mon Jan 2")
}
