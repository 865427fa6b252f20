package feed

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const clockInterval = 30 * time.Second

// Actions are the user responses available from the live view.
type Actions interface {
	ApproveInvite(ctx context.Context, projectID string) (string, error)
	RejectInvite(projectID string) domain.Feed
	MarkAllRead(ctx context.Context) (domain.Feed, error)
}

type LiveOptions struct {
	Feeds     <-chan domain.Feed
	States    <-chan domain.ConnectionState
	Initial   domain.ConnectionState
	Actions   Actions
	Reconnect func() error
	Now       func() time.Time
}

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Open      key.Binding
	MarkRead  key.Binding
	Approve   key.Binding
	Reject    key.Binding
	Reconnect key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "mark all read"),
		),
		Approve: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "accept invite"),
		),
		Reject: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "decline invite"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reconnect"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.MarkRead, k.Approve, k.Reject, k.Reconnect, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open},
		{k.MarkRead, k.Approve, k.Reject},
		{k.Reconnect, k.Quit},
	}
}

type feedMsg struct {
	feed domain.Feed
	ok   bool
}

type stateMsg struct {
	state domain.ConnectionState
	ok    bool
}

type actionResultMsg struct {
	message string
	err     error
}

type clockMsg time.Time

type liveModel struct {
	ctx    context.Context
	opts   LiveOptions
	keys   keyMap
	help   help.Model
	styles styles

	feed      domain.Feed
	state     domain.ConnectionState
	cursor    int
	status    string
	statusErr bool
	now       time.Time
}

func newLiveModel(ctx context.Context, opts LiveOptions) liveModel {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return liveModel{
		ctx:    ctx,
		opts:   opts,
		keys:   defaultKeyMap(),
		help:   help.New(),
		styles: newStyles(),
		state:  opts.Initial,
		now:    opts.Now(),
	}
}

func (m liveModel) Init() tea.Cmd {
	return tea.Batch(
		waitForFeed(m.opts.Feeds),
		waitForState(m.opts.States),
		clockTick(),
	)
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case feedMsg:
		if !msg.ok {
			return m, nil
		}
		m.feed = msg.feed
		m.clampCursor()
		return m, waitForFeed(m.opts.Feeds)
	case stateMsg:
		if !msg.ok {
			return m, nil
		}
		m.state = msg.state
		return m, waitForState(m.opts.States)
	case actionResultMsg:
		m.setStatus(msg.message, msg.err)
		return m, nil
	case clockMsg:
		m.now = time.Time(msg)
		return m, clockTick()
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m liveModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.feed.Len()-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.MarkRead), key.Matches(msg, m.keys.Open):
		return m, m.markAllRead()
	case key.Matches(msg, m.keys.Approve):
		action, ok := m.selectedInvite()
		if !ok {
			m.setStatus("", errors.New("select an invite first"))
			return m, nil
		}
		m.setStatus("Accepting invite to "+projectLabel(action)+"...", nil)
		return m, m.approve(action.ProjectID)
	case key.Matches(msg, m.keys.Reject):
		action, ok := m.selectedInvite()
		if !ok {
			m.setStatus("", errors.New("select an invite first"))
			return m, nil
		}
		m.feed = m.opts.Actions.RejectInvite(action.ProjectID)
		m.clampCursor()
		m.setStatus("Declined invite to "+projectLabel(action), nil)
		return m, nil
	case key.Matches(msg, m.keys.Reconnect):
		if m.opts.Reconnect == nil {
			return m, nil
		}
		if err := m.opts.Reconnect(); err != nil {
			m.setStatus("", err)
			return m, nil
		}
		m.setStatus("Reconnecting...", nil)
		return m, nil
	default:
		return m, nil
	}
}

func (m liveModel) View() string {
	view := renderView(m.feed, RenderOptions{Now: m.now, State: m.state, Selected: m.cursor}, m.styles)

	lines := []string{view}
	if m.status != "" {
		style := m.styles.statusInfo
		if m.statusErr {
			style = m.styles.statusErr
		}
		lines = append(lines, m.styles.section.Render(style.Render(m.status)))
	}
	lines = append(lines, m.styles.section.Render(m.help.View(m.keys)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func (m liveModel) selectedInvite() (domain.ActionContext, bool) {
	if m.cursor < 0 || m.cursor >= m.feed.Len() {
		return domain.ActionContext{}, false
	}
	item := m.feed.Items[m.cursor]
	if item.Kind != domain.KindTeamInvite || item.Action == nil {
		return domain.ActionContext{}, false
	}
	return *item.Action, true
}

func (m liveModel) approve(projectID string) tea.Cmd {
	actions, ctx := m.opts.Actions, m.ctx
	return func() tea.Msg {
		message, err := actions.ApproveInvite(ctx, projectID)
		return actionResultMsg{message: message, err: err}
	}
}

func (m liveModel) markAllRead() tea.Cmd {
	actions, ctx := m.opts.Actions, m.ctx
	return func() tea.Msg {
		_, err := actions.MarkAllRead(ctx)
		if err != nil {
			return actionResultMsg{err: err}
		}
		return actionResultMsg{message: "All notifications marked as read"}
	}
}

func (m *liveModel) setStatus(message string, err error) {
	if err != nil {
		m.status = err.Error()
		m.statusErr = true
		return
	}
	m.status = message
	m.statusErr = false
}

func (m *liveModel) clampCursor() {
	if m.cursor >= m.feed.Len() {
		m.cursor = m.feed.Len() - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func waitForFeed(feeds <-chan domain.Feed) tea.Cmd {
	if feeds == nil {
		return nil
	}
	return func() tea.Msg {
		feed, ok := <-feeds
		return feedMsg{feed: feed, ok: ok}
	}
}

func waitForState(states <-chan domain.ConnectionState) tea.Cmd {
	if states == nil {
		return nil
	}
	return func() tea.Msg {
		state, ok := <-states
		return stateMsg{state: state, ok: ok}
	}
}

func clockTick() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

// RunLive runs the interactive feed until the user quits or ctx ends.
func RunLive(ctx context.Context, input io.Reader, output io.Writer, opts LiveOptions) error {
	p := tea.NewProgram(
		newLiveModel(ctx, opts),
		tea.WithContext(ctx),
		tea.WithInput(input),
		tea.WithOutput(output),
	)

	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
