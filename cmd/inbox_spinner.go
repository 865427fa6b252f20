package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const inboxSlowAfter = 3 * time.Second

var (
	inboxSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	inboxDoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	inboxFailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type inboxFetchedMsg struct {
	feed domain.Feed
	err  error
}

type inboxSlowMsg struct{}

// inboxSpinnerModel waits on one inbox fetch and leaves a one-line summary
// behind once the feed arrives.
type inboxSpinnerModel struct {
	spinner   spinner.Model
	host      string
	slowAfter time.Duration
	fetch     tea.Cmd

	slow bool
	done bool
	feed domain.Feed
	err  error
}

func newInboxSpinnerModel(server string, fetch tea.Cmd) inboxSpinnerModel {
	host := server
	if parsed, err := url.Parse(server); err == nil && parsed.Host != "" {
		host = parsed.Host
	}

	return inboxSpinnerModel{
		spinner:   spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(inboxSpinnerStyle)),
		host:      host,
		slowAfter: inboxSlowAfter,
		fetch:     fetch,
	}
}

func (m inboxSpinnerModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetch,
		tea.Tick(m.slowAfter, func(time.Time) tea.Msg { return inboxSlowMsg{} }),
	)
}

func (m inboxSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case inboxSlowMsg:
		m.slow = !m.done
		return m, nil
	case inboxFetchedMsg:
		m.done = true
		m.feed = msg.feed
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m inboxSpinnerModel) View() string {
	switch {
	case m.done && m.err != nil:
		return inboxFailStyle.Render("✗") + " could not load notifications from " + m.host + "\n"
	case m.done:
		return inboxDoneStyle.Render("✓") + fmt.Sprintf(" %d unread of %d from %s\n", m.feed.Unread, m.feed.Len(), m.host)
	case m.slow:
		return fmt.Sprintf("%s Still waiting on %s...", m.spinner.View(), m.host)
	default:
		return fmt.Sprintf("%s Fetching notifications from %s...", m.spinner.View(), m.host)
	}
}

// runInboxSpinner animates on output while fetch loads the feed from server
// and returns what fetch produced.
func runInboxSpinner(ctx context.Context, output io.Writer, server string, fetch func(context.Context) (domain.Feed, error)) (domain.Feed, error) {
	fetchCmd := func() tea.Msg {
		feed, err := fetch(ctx)
		return inboxFetchedMsg{feed: feed, err: err}
	}

	p := tea.NewProgram(
		newInboxSpinnerModel(server, fetchCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return domain.Feed{}, err
	}

	result, ok := finalModel.(inboxSpinnerModel)
	if !ok {
		return domain.Feed{}, fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.feed, result.err
}
