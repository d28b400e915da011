// Package tui implements the Status Dashboard (C13): a read-only
// terminal UI subscribing to model.Event the same way every other
// subscriber does (notify.Hub, history.Recorder) — it never calls a
// Model mutator, mirroring the excluded GUI but strictly out of core
// scope.
package tui

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/reconcile"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB347")).MarginBottom(1)

	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF88"))
	statusSent    = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	statusStopped = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	statusError   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444"))
	statusUnknown = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))

	modeActive   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF88"))
	modeObserver = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87CEEB"))

	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555")).Padding(0, 1)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4444"))
)

// row is one rendered line of the command table, refreshed from the
// Model on every relevant event rather than held as live state.
type row struct {
	deputy   string
	nickname string
	exec     string
	status   model.Status
}

// Source is the subset of *model.Model the Dashboard reads. It is an
// interface so tests can supply a fake without standing up a full
// reconciliation pipeline.
type Source interface {
	AllDeputies() []*model.Deputy
	IsObserver() bool
}

type eventMsg model.Event

// Dashboard is the Bubble Tea program. It never mutates the Model: every
// event message re-pulls a fresh snapshot via Source.
type Dashboard struct {
	src    Source
	events <-chan model.Event

	tbl      table.Model
	lastWarn string
	width    int
	height   int
	quitting bool
}

// NewDashboard builds a Dashboard reading from src and refreshing on
// every event delivered over events. The caller is expected to register
// a model.Subscriber that forwards OnModelEvent into a channel and pass
// the receive side here (see Subscriber below).
func NewDashboard(src Source, events <-chan model.Event) *Dashboard {
	cols := []table.Column{
		{Title: "DEPUTY", Width: 16},
		{Title: "COMMAND", Width: 16},
		{Title: "EXEC", Width: 28},
		{Title: "STATUS", Width: 16},
	}
	t := table.New(table.WithColumns(cols), table.WithFocused(false), table.WithHeight(15))
	return &Dashboard{src: src, events: events, tbl: t, width: 80, height: 24}
}

func (d *Dashboard) Init() tea.Cmd {
	return d.waitForEvent()
}

func (d *Dashboard) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-d.events
		if !ok {
			return nil
		}
		return eventMsg(evt)
	}
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			d.quitting = true
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.width, d.height = msg.Width, msg.Height
		return d, nil

	case eventMsg:
		e := model.Event(msg)
		if e.Kind == model.SplitBrainWarning {
			d.lastWarn = e.Warning
		}
		d.refresh()
		return d, d.waitForEvent()
	}
	return d, nil
}

func (d *Dashboard) refresh() {
	var rows []row
	for _, dep := range d.src.AllDeputies() {
		for _, c := range dep.Commands() {
			rows = append(rows, row{
				deputy: dep.Name, nickname: c.Nickname, exec: c.Exec,
				status: reconcile.Status(c),
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].deputy != rows[j].deputy {
			return rows[i].deputy < rows[j].deputy
		}
		return rows[i].nickname < rows[j].nickname
	})

	trows := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		trows = append(trows, table.Row{r.deputy, r.nickname, r.exec, renderStatus(r.status)})
	}
	d.tbl.SetRows(trows)
}

func renderStatus(s model.Status) string {
	switch s {
	case model.StatusRunning:
		return statusRunning.Render(string(s))
	case model.StatusCommandSent:
		return statusSent.Render(string(s))
	case model.StatusStoppedOK:
		return statusStopped.Render(string(s))
	case model.StatusStoppedErr:
		return statusError.Render(string(s))
	default:
		return statusUnknown.Render(string(s))
	}
}

func (d *Dashboard) View() string {
	if d.quitting {
		return ""
	}
	var mode string
	if d.src.IsObserver() {
		mode = modeObserver.Render("OBSERVER")
	} else {
		mode = modeActive.Render("ACTIVE")
	}

	out := titleStyle.Render("sheriff dashboard") + "\n"
	out += boxStyle.Render(fmt.Sprintf("mode: %s", mode)) + "\n\n"
	out += d.tbl.View() + "\n"
	if d.lastWarn != "" {
		out += warnStyle.Render("! "+d.lastWarn) + "\n"
	}
	out += footerStyle.Render(fmt.Sprintf("[q] quit  updated %s", time.Now().Format("15:04:05")))
	return out
}

// Subscriber adapts the Dashboard's channel-based refresh to the
// model.Subscriber interface every other ambient component (notify.Hub,
// history.Recorder) implements. Sends are non-blocking: a dashboard that
// isn't pulling fast enough drops an update rather than stalling the
// Model's single exclusive lock (spec §5).
type Subscriber struct {
	Events chan model.Event
}

// NewSubscriber creates a Subscriber with a reasonably sized buffer.
func NewSubscriber() *Subscriber {
	return &Subscriber{Events: make(chan model.Event, 256)}
}

func (s *Subscriber) OnModelEvent(e model.Event) {
	select {
	case s.Events <- e:
	default:
	}
}

// Run starts the Bubble Tea program and blocks until the user quits.
func Run(src Source, events <-chan model.Event) error {
	p := tea.NewProgram(NewDashboard(src, events), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
