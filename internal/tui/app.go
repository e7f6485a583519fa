package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/user/xharvest/internal/bridge"
	"github.com/user/xharvest/internal/harvest"
	"github.com/user/xharvest/internal/store"
)

const maxLogLines = 50

// Store persists the chosen options so the next run starts from them.
type Store interface {
	Set(key, value string) error
}

type model struct {
	ctx     context.Context
	session *harvest.Session
	events  <-chan any
	store   Store

	opts     harvest.Options
	state    harvest.State
	count    int
	logs     []string
	spin     spinner.Model
	width    int
	height   int
	starting bool
	err      error
}

func initialModel(ctx context.Context, session *harvest.Session, events <-chan any, st Store, opts harvest.Options) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	return model{
		ctx:     ctx,
		session: session,
		events:  events,
		store:   st,
		opts:    opts,
		spin:    sp,
		state:   session.State(),
	}
}

type startedMsg struct {
	err error
}

type stoppedMsg struct{}

type eventMsg struct {
	event any
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent, m.spin.Tick)
}

// waitForEvent blocks on the bridge channel; each received event is
// handed to Update, which re-arms the wait.
func (m model) waitForEvent() tea.Msg {
	select {
	case <-m.ctx.Done():
		return tea.Quit()
	case ev, ok := <-m.events:
		if !ok {
			return tea.Quit()
		}
		return eventMsg{event: ev}
	}
}

func (m model) startSession() tea.Cmd {
	opts := m.opts
	return func() tea.Msg {
		if m.store != nil {
			if payload, err := json.Marshal(opts); err == nil {
				// Best effort: the session runs fine without saved settings.
				_ = m.store.Set(store.SettingsKey, string(payload))
			}
		}
		return startedMsg{err: m.session.Start(m.ctx, opts)}
	}
}

func (m model) stopSession() tea.Cmd {
	return func() tea.Msg {
		m.session.Stop()
		return stoppedMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == harvest.StateRunning {
				return m, tea.Sequence(m.stopSession(), tea.Quit)
			}
			return m, tea.Quit
		case "s":
			if m.state != harvest.StateRunning && !m.starting {
				m.starting = true
				m.err = nil
				return m, m.startSession()
			}
		case "x":
			if m.state == harvest.StateRunning {
				return m, m.stopSession()
			}
		case "1":
			if m.state != harvest.StateRunning {
				m.opts.IncludeImages = !m.opts.IncludeImages
			}
		case "2":
			if m.state != harvest.StateRunning {
				m.opts.IncludeText = !m.opts.IncludeText
			}
		case "3":
			if m.state != harvest.StateRunning {
				m.opts.IncludeMetadata = !m.opts.IncludeMetadata
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case startedMsg:
		m.starting = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.count = 0
		m.state = harvest.StateRunning

	case stoppedMsg:
		m.state = harvest.StateStopped

	case eventMsg:
		switch ev := msg.event.(type) {
		case bridge.LogEvent:
			m.logs = append(m.logs, fmt.Sprintf("%s %s", ev.Time.Format("15:04:05"), ev.Message))
			if len(m.logs) > maxLogLines {
				m.logs = m.logs[len(m.logs)-maxLogLines:]
			}
		case bridge.SnapshotEvent:
			m.count = len(ev.Records)
		case bridge.CompleteEvent:
			m.count = ev.Count
			m.state = harvest.StateStopped
		}
		return m, m.waitForEvent

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	logStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("xharvest"))
	b.WriteString("\n\n")

	status := idleStyle.Render(string(m.state))
	if m.state == harvest.StateRunning {
		status = m.spin.View() + runningStyle.Render(string(m.state))
	}
	b.WriteString(fmt.Sprintf("status: %s   records: %d\n", status, m.count))

	b.WriteString(fmt.Sprintf("options: %s %s %s\n",
		optionLabel("images", m.opts.IncludeImages),
		optionLabel("text", m.opts.IncludeText),
		optionLabel("metadata", m.opts.IncludeMetadata)))

	if m.err != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	logLines := m.logs
	if max := m.height - 10; max > 0 && len(logLines) > max {
		logLines = logLines[len(logLines)-max:]
	}
	if len(logLines) == 0 {
		logLines = []string{"waiting..."}
	}
	b.WriteString(logStyle.Render(strings.Join(logLines, "\n")))

	b.WriteString(helpStyle.Render("\n[s]tart [x]stop [1-3]options [q]uit"))
	return b.String()
}

func optionLabel(name string, on bool) string {
	if on {
		return runningStyle.Render("[" + name + "]")
	}
	return idleStyle.Render("[" + name + "]")
}

// Run starts the control surface and blocks until it exits.
func Run(ctx context.Context, session *harvest.Session, events <-chan any, st Store, opts harvest.Options) error {
	p := tea.NewProgram(initialModel(ctx, session, events, st, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
