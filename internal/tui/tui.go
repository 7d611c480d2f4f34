// Package tui is a terminal client for an onboarding session, built on bubbletea.
//
// It holds no wizard rules: every key press becomes a flow event dispatched to the
// SessionManager, and the screen is re-rendered from the returned snapshot.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BTreeMap/BrandOS/internal/catalog"
	"github.com/BTreeMap/BrandOS/internal/flow"
	"github.com/BTreeMap/BrandOS/internal/models"
)

// PollInterval is how often the model re-reads the session so delayed replies show up.
const PollInterval = 250 * time.Millisecond

// MockDocumentName is the filename sent by the upload key.
const MockDocumentName = "plan-de-negocio.pdf"

// focusArea selects where dashboard key presses go.
type focusArea int

const (
	focusNav focusArea = iota
	focusChat
	focusField
)

type tickMsg time.Time

// Model is the main bubbletea model
type Model struct {
	ctx       context.Context
	manager   *flow.SessionManager
	catalog   *catalog.Catalog
	sessionID string

	snap       models.Snapshot
	transcript []models.ChatMessage
	lastPhase  models.Phase

	// Wizard option cursor, or the notification cursor on the dashboard.
	cursor     int
	focus      focusArea
	fieldIndex int
	chatInput  textinput.Model
	fieldInput textinput.Model

	status string
	err    error
	width  int
	height int
}

// NewModel attaches to sessionID, or creates a new session when it is empty.
func NewModel(ctx context.Context, manager *flow.SessionManager, cat *catalog.Catalog, sessionID string) (Model, error) {
	if cat == nil {
		cat = catalog.Default()
	}
	var (
		snap models.Snapshot
		err  error
	)
	if sessionID == "" {
		snap, err = manager.Create(ctx)
	} else {
		snap, err = manager.Get(ctx, sessionID)
	}
	if err != nil {
		return Model{}, fmt.Errorf("failed to open session: %w", err)
	}

	chat := textinput.New()
	chat.Placeholder = "Escribe un mensaje..."
	chat.CharLimit = 500
	field := textinput.New()
	field.CharLimit = 500

	m := Model{
		ctx:        ctx,
		manager:    manager,
		catalog:    cat,
		sessionID:  snap.SessionID,
		chatInput:  chat,
		fieldInput: field,
		width:      80,
		height:     24,
	}
	m.applySnapshot(snap)
	m.refreshTranscript()
	slog.Debug("TUI model ready", "sessionID", m.sessionID, "phase", snap.Phase)
	return m, nil
}

// SessionID returns the session the model drives.
func (m Model) SessionID() string {
	return m.sessionID
}

// Snapshot returns the last rendered snapshot.
func (m Model) Snapshot() models.Snapshot {
	return m.snap
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(PollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.refresh()
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	var body string
	if m.snap.Phase == models.PhaseDashboard {
		body = m.renderDashboard()
	} else {
		body = m.renderWizard()
	}
	footer := ""
	if m.err != nil {
		footer = errorStyle.Render(m.err.Error())
	} else if m.status != "" {
		footer = statusStyle.Render(m.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.snap.Phase == models.PhaseDashboard {
		return m.handleDashboardKeys(msg)
	}
	return m.handleWizardKeys(msg)
}

// dispatch sends ev and adopts the resulting snapshot. Rejections keep the session as it
// was and surface the reason in the footer.
func (m *Model) dispatch(ev flow.Event) {
	snap, err := m.manager.Dispatch(m.ctx, m.sessionID, ev)
	if err != nil {
		slog.Debug("TUI dispatch rejected", "sessionID", m.sessionID, "event", ev.Kind(), "error", err)
		m.err = err
	} else {
		m.err = nil
	}
	if snap.SessionID != "" {
		m.applySnapshot(snap)
	}
}

func (m *Model) refresh() {
	snap, err := m.manager.Get(m.ctx, m.sessionID)
	if err != nil {
		if !errors.Is(err, flow.ErrManagerClosed) {
			slog.Warn("TUI refresh failed", "sessionID", m.sessionID, "error", err)
		}
		m.err = err
		return
	}
	m.applySnapshot(snap)
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	msgs, err := m.manager.Transcript(m.ctx, m.sessionID)
	if err != nil {
		m.err = err
		return
	}
	m.transcript = msgs
}

func (m *Model) applySnapshot(snap models.Snapshot) {
	m.snap = snap
	if snap.Phase != m.lastPhase {
		m.lastPhase = snap.Phase
		m.cursor = m.defaultCursor()
		m.focus = focusNav
		m.fieldIndex = 0
		m.chatInput.Blur()
		m.fieldInput.Blur()
	}
	if n := m.cursorLimit(); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

// cursorLimit is the number of rows the cursor can sit on in the current screen.
func (m Model) cursorLimit() int {
	if m.snap.Phase == models.PhaseDashboard {
		return len(models.FilterNotifications(m.snap.Notifications, m.snap.NotificationFilter))
	}
	return len(m.options())
}

func (m *Model) moveCursor(delta int) {
	n := m.cursorLimit()
	if n == 0 {
		m.cursor = 0
		return
	}
	m.cursor = (m.cursor + delta + n) % n
}

// Run drives a session in the terminal until the user quits or ctx is cancelled.
func Run(ctx context.Context, manager *flow.SessionManager, cat *catalog.Catalog, sessionID string) error {
	m, err := NewModel(ctx, manager, cat, sessionID)
	if err != nil {
		return err
	}
	slog.Info("Starting terminal UI", "sessionID", m.SessionID())

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	aiStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	userStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)
