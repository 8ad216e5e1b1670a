package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/winecask/winecask/config"
	"github.com/winecask/winecask/launch"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#AF5F5F")).
			Padding(0, 1)

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	exitedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type sessionModel struct {
	err       error
	orch      *launch.Orchestrator
	sess      *launch.Session
	exeFile   string
	container config.Container
	preset    launch.Preset

	mu      sync.Mutex
	pending []string

	spin   spinner.Model
	log    viewport.Model
	lines  []string
	width  int
	height int
	ready  bool
	ended  bool
}

type launchedMsg struct {
	err  error
	orch *launch.Orchestrator
	sess *launch.Session
}

type sessionEndedMsg struct{ code int }

type pollMsg struct{}

func newSessionModel(exeFile string, c config.Container, preset launch.Preset) *sessionModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &sessionModel{
		exeFile:   exeFile,
		container: c,
		preset:    preset,
		spin:      sp,
	}
}

func (m *sessionModel) Init() tea.Cmd {
	return tea.Batch(m.launch, m.spin.Tick, pollTick())
}

func (m *sessionModel) launch() tea.Msg {
	o := launch.New(launch.Options{
		Preset:         m.preset,
		StatusInterval: 3 * time.Second,
	})

	sess, err := o.Launch(m.exeFile, m.container, func(line string) {
		m.mu.Lock()
		m.pending = append(m.pending, line)
		m.mu.Unlock()
	})
	if err != nil {
		return launchedMsg{err: err}
	}
	return launchedMsg{orch: o, sess: sess}
}

func (m *sessionModel) awaitEnd() tea.Msg {
	<-m.sess.Done()
	return sessionEndedMsg{code: m.sess.ExitCode()}
}

// pollTick drives the log refresh. Output lines arrive from the session's
// own goroutines, so they are staged under a mutex and drained here rather
// than pushed into the program directly.
func pollTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m *sessionModel) drainPending() bool {
	m.mu.Lock()
	staged := m.pending
	m.pending = nil
	m.mu.Unlock()
	if len(staged) == 0 {
		return false
	}
	m.lines = append(m.lines, staged...)
	if m.ready {
		m.log.SetContent(strings.Join(m.lines, "\n"))
		m.log.GotoBottom()
	}
	return true
}

func (m *sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.orch != nil {
				m.orch.Stop()
			}
			return m, tea.Quit

		case "s":
			if m.orch != nil && !m.ended {
				m.orch.Stop()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logHeight := msg.Height - 6
		if logHeight < 3 {
			logHeight = 3
		}
		if !m.ready {
			m.log = viewport.New(msg.Width, logHeight)
			m.ready = true
			m.log.SetContent(strings.Join(m.lines, "\n"))
			m.log.GotoBottom()
		} else {
			m.log.Width = msg.Width
			m.log.Height = logHeight
		}

	case launchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.orch = msg.orch
		m.sess = msg.sess
		return m, m.awaitEnd

	case sessionEndedMsg:
		m.ended = true
		m.drainPending()
		return m, nil

	case pollMsg:
		m.drainPending()
		if m.ended && m.err == nil {
			return m, nil
		}
		return m, pollTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.ready {
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *sessionModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.sess == nil || !m.ready {
		return "Starting session..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("winecask"))
	b.WriteString(" ")
	b.WriteString(m.sess.ProcessName())
	b.WriteString("\n")

	switch {
	case m.ended:
		b.WriteString(exitedStyle.Render(fmt.Sprintf("exited (code %d)", m.sess.ExitCode())))
	case m.sess.IsFallback():
		b.WriteString(m.spin.View())
		b.WriteString(stateStyle.Render("running (fallback demo)"))
	default:
		b.WriteString(m.spin.View())
		b.WriteString(stateStyle.Render(m.orch.State().String()))
	}
	b.WriteString("\n\n")

	b.WriteString(m.log.View())
	b.WriteString("\n")
	if m.ended {
		b.WriteString(helpStyle.Render("q quit • ↑/↓ scroll"))
	} else {
		b.WriteString(helpStyle.Render("s stop • q quit • ↑/↓ scroll"))
	}
	return b.String()
}

func runInteractive(exeFile string, c config.Container, preset launch.Preset) error {
	p := tea.NewProgram(newSessionModel(exeFile, c, preset), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
