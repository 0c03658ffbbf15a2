package inspector

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/diag"
	"dxmsg/pkg/sim"
)

// World is the simulation driven by the inspector.
type World interface {
	Step()
	Report() sim.Report
	Bus() *bus.Bus
}

type panel int

const (
	panelHistory panel = iota
	panelRegistrations
	panelActors
	panelCount
)

func (p panel) String() string {
	switch p {
	case panelHistory:
		return "history"
	case panelRegistrations:
		return "registrations"
	case panelActors:
		return "actors"
	default:
		return "unknown"
	}
}

// stepMsg advances the world. Scheduled steps carry the generation they were
// scheduled in so a pause/resume cycle does not leave two tick chains running.
type stepMsg struct {
	gen    int
	manual bool
}

type model struct {
	world    World
	interval time.Duration
	maxTicks int

	theme     theme
	spinner   spinner.Model
	viewport  viewport.Model
	report    sim.Report
	panel     panel
	width     int
	height    int
	isReady   bool
	paused    bool
	finished  bool
	followLog bool
	gen       int
}

func newModel(world World, interval time.Duration, maxTicks int) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	return &model{
		world:     world,
		interval:  interval,
		maxTicks:  maxTicks,
		theme:     defaultTheme(),
		spinner:   spin,
		viewport:  viewport.New(80, 12),
		report:    world.Report(),
		width:     100,
		height:    28,
		followLog: true,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.stepCmd())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(typed)
	case tea.MouseMsg:
		m.handleViewportMouse(typed)
		return m, nil
	case stepMsg:
		if m.finished {
			return m, nil
		}
		if typed.manual != m.paused || (!typed.manual && typed.gen != m.gen) {
			return m, nil
		}
		m.step()
		if m.finished || typed.manual {
			return m, nil
		}
		return m, m.stepCmd()
	case spinner.TickMsg:
		if m.paused || m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	}

	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc", "q":
		return tea.Quit
	case "tab":
		m.panel = (m.panel + 1) % panelCount
		m.followLog = true
		m.refreshViewport(true)
		return nil
	case "shift+tab":
		m.panel = (m.panel + panelCount - 1) % panelCount
		m.followLog = true
		m.refreshViewport(true)
		return nil
	case " ", "p":
		if m.finished {
			return nil
		}
		m.paused = !m.paused
		m.gen++
		if !m.paused {
			return tea.Batch(m.spinner.Tick, m.stepCmd())
		}
		return nil
	case "n":
		if m.paused && !m.finished {
			return func() tea.Msg { return stepMsg{manual: true} }
		}
		return nil
	case "d":
		b := m.world.Bus()
		b.SetDiagnostics(!b.Diagnostics())
		return nil
	case "c":
		m.world.Bus().ClearHistory()
		m.world.Bus().RegistrationLog().Clear()
		m.refreshViewport(true)
		return nil
	}

	m.handleViewportKey(msg)
	return nil
}

func (m *model) step() {
	m.world.Step()
	m.report = m.world.Report()
	if m.maxTicks > 0 && m.report.Tick >= m.maxTicks {
		m.finished = true
	}
	m.refreshViewport(false)
}

func (m *model) stepCmd() tea.Cmd {
	gen := m.gen
	if m.interval <= 0 {
		return func() tea.Msg { return stepMsg{gen: gen} }
	}
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return stepMsg{gen: gen}
	})
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}

	b := m.world.Bus()
	stats := m.report.Bus
	header := m.theme.header.Width(m.width - 2).Render("dxmsg inspector")
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"bus:%s · tick:%d · emitted:%d · vetoed:%d · delivered:%d · subscriptions:%d · diagnostics:%s",
		b.Name(),
		m.report.Tick,
		stats.Emitted,
		stats.Vetoed,
		stats.Delivered,
		stats.Subscriptions,
		onOff(b.Diagnostics()),
	))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.statusBusy.Render(fmt.Sprintf("%s running", m.spinner.View()))
	switch {
	case m.finished:
		status = m.theme.statusDone.Render(fmt.Sprintf("finished after %d ticks", m.report.Tick))
	case m.paused:
		status = m.theme.status.Render("paused · n step")
	}
	hint := m.theme.hint.Render("Tab panel · Space pause · d diagnostics · c clear · PgUp/PgDn scroll · q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.tabsView(),
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		hint,
	)
}

func (m *model) tabsView() string {
	tabs := make([]string, 0, panelCount)
	for p := range panelCount {
		style := m.theme.tab
		if p == m.panel {
			style = m.theme.tabActive
		}
		tabs = append(tabs, style.Render(p.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *model) resizeComponents() {
	m.viewport.Width = max(50, m.width-6)
	m.viewport.Height = max(8, m.height-11)
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset

	var content string
	switch m.panel {
	case panelHistory:
		content = m.historyView(m.world.Bus().History())
	case panelRegistrations:
		content = m.registrationsView(m.world.Bus().RegistrationLog().Entries())
	case panelActors:
		content = m.actorsView(m.report.Actors)
	}

	m.viewport.SetContent(content)
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) historyView(history []diag.Emission) string {
	if len(history) == 0 {
		return m.theme.hint.Render("no emissions recorded (press d to enable diagnostics)")
	}

	lines := make([]string, 0, len(history))
	for _, e := range history {
		style := m.theme.row
		if e.Vetoed {
			style = m.theme.rowVetoed
		}
		lines = append(lines, style.Render(e.String()))
	}
	return strings.Join(lines, "\n")
}

func (m *model) registrationsView(entries []diag.Registration) string {
	if len(entries) == 0 {
		return m.theme.hint.Render("no registrations recorded (press d to enable diagnostics)")
	}

	lines := make([]string, 0, len(entries))
	for _, r := range entries {
		style := m.theme.register
		if r.Kind == diag.KindDeregister {
			style = m.theme.deregister
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s %-10s %-28s %-30s owner=%s priority=%d",
			r.At.Format("15:04:05.000"),
			r.Kind,
			r.Route,
			r.MessageType,
			r.Owner,
			r.Priority,
		)))
	}
	return strings.Join(lines, "\n")
}

func (m *model) actorsView(actors []sim.ActorState) string {
	lines := make([]string, 0, len(actors)+1)
	for _, a := range actors {
		name := m.theme.alive.Render(fmt.Sprintf("%-10s", a.Name))
		if !a.Alive {
			name = m.theme.dead.Render(fmt.Sprintf("%-10s", a.Name))
		}
		lines = append(lines, fmt.Sprintf("%s %s %3d  pings:%-4d heals:%-4d hits:%-4d deaths:%d",
			name, m.healthBar(a.Health, 20), a.Health, a.Pings, a.Heals, a.Hits, a.Deaths))
	}
	lines = append(lines, m.theme.hint.Render(fmt.Sprintf("damage dealt:%d · heals vetoed:%d", m.report.DamageDealt, m.report.VetoedHeals)))
	return strings.Join(lines, "\n")
}

func (m *model) healthBar(health, width int) string {
	filled := min(width, max(0, health*width/100))
	return m.theme.barFull.Render(strings.Repeat("█", filled)) + m.theme.barEmpty.Render(strings.Repeat("░", width-filled))
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.SetYOffset(m.viewport.YOffset - 3)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.SetYOffset(m.viewport.YOffset + 3)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
