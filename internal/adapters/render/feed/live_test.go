package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActions struct {
	approved   []string
	rejected   []string
	markedRead int
	approveMsg string
	approveErr error
	markErr    error
	afterReject domain.Feed
}

func (f *fakeActions) ApproveInvite(_ context.Context, projectID string) (string, error) {
	f.approved = append(f.approved, projectID)
	return f.approveMsg, f.approveErr
}

func (f *fakeActions) RejectInvite(projectID string) domain.Feed {
	f.rejected = append(f.rejected, projectID)
	return f.afterReject
}

func (f *fakeActions) MarkAllRead(context.Context) (domain.Feed, error) {
	f.markedRead++
	return domain.Feed{}, f.markErr
}

func newTestLiveModel(actions *fakeActions) liveModel {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newLiveModel(context.Background(), LiveOptions{
		Actions: actions,
		Initial: domain.ConnectionConnecting,
		Now:     func() time.Time { return now },
	})
	updated, _ := m.Update(feedMsg{feed: sampleFeed(now), ok: true})
	return updated.(liveModel)
}

func press(t *testing.T, m liveModel, keys string) (liveModel, tea.Cmd) {
	t.Helper()

	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}

	updated, cmd := m.Update(msg)
	next, ok := updated.(liveModel)
	require.True(t, ok)
	return next, cmd
}

func runCmd(t *testing.T, m liveModel, cmd tea.Cmd) liveModel {
	t.Helper()

	require.NotNil(t, cmd)
	updated, _ := m.Update(cmd())
	return updated.(liveModel)
}

func TestLiveModelTracksFeedAndState(t *testing.T) {
	m := newTestLiveModel(&fakeActions{})
	assert.Contains(t, m.View(), "POLL (connecting)")

	updated, _ := m.Update(stateMsg{state: domain.ConnectionLive, ok: true})
	m = updated.(liveModel)
	assert.Contains(t, m.View(), "LIVE")
	assert.Contains(t, m.View(), "2 unread of 3")

	updated, cmd := m.Update(feedMsg{ok: false})
	m = updated.(liveModel)
	assert.Nil(t, cmd)
	assert.Equal(t, 3, m.feed.Len())
}

func TestLiveModelApproveSelectedInvite(t *testing.T) {
	actions := &fakeActions{approveMsg: "You joined Apollo"}
	m := newTestLiveModel(actions)

	m, cmd := press(t, m, "a")
	assert.Contains(t, m.status, "Accepting invite to Apollo")

	m = runCmd(t, m, cmd)
	assert.Equal(t, []string{"42"}, actions.approved)
	assert.Equal(t, "You joined Apollo", m.status)
	assert.False(t, m.statusErr)
}

func TestLiveModelApproveFailureShowsError(t *testing.T) {
	actions := &fakeActions{approveErr: &domain.ActionError{Action: "approve invite", Message: "Invite expired"}}
	m := newTestLiveModel(actions)

	m, cmd := press(t, m, "a")
	m = runCmd(t, m, cmd)

	assert.True(t, m.statusErr)
	assert.Contains(t, m.View(), "approve invite failed: Invite expired")
}

func TestLiveModelInviteActionsNeedAnInviteSelected(t *testing.T) {
	actions := &fakeActions{}
	m := newTestLiveModel(actions)

	m, _ = press(t, m, "down")
	assert.Equal(t, 1, m.cursor)

	m, cmd := press(t, m, "a")
	assert.Nil(t, cmd)
	assert.True(t, m.statusErr)

	m, _ = press(t, m, "x")
	assert.Empty(t, actions.approved)
	assert.Empty(t, actions.rejected)
}

func TestLiveModelRejectIsImmediate(t *testing.T) {
	actions := &fakeActions{afterReject: domain.Feed{Items: []domain.Notification{{ID: "2", Kind: domain.KindError, Message: "Build failed"}}, Unread: 1}}
	m := newTestLiveModel(actions)

	m, cmd := press(t, m, "x")

	assert.Nil(t, cmd)
	assert.Equal(t, []string{"42"}, actions.rejected)
	assert.Equal(t, 1, m.feed.Len())
	assert.Equal(t, "Declined invite to Apollo", m.status)
}

func TestLiveModelMarkAllReadFromKeyAndEnter(t *testing.T) {
	actions := &fakeActions{}
	m := newTestLiveModel(actions)

	m, cmd := press(t, m, "r")
	m = runCmd(t, m, cmd)
	m, cmd = press(t, m, "enter")
	m = runCmd(t, m, cmd)

	assert.Equal(t, 2, actions.markedRead)
	assert.Equal(t, "All notifications marked as read", m.status)

	actions.markErr = errors.New("mark all read failed: Server error")
	m, cmd = press(t, m, "r")
	m = runCmd(t, m, cmd)
	assert.True(t, m.statusErr)
}

func TestLiveModelReconnect(t *testing.T) {
	calls := 0
	m := newTestLiveModel(&fakeActions{})
	m.opts.Reconnect = func() error {
		calls++
		if calls > 1 {
			return domain.ErrNoSession
		}
		return nil
	}

	m, _ = press(t, m, "R")
	assert.Equal(t, "Reconnecting...", m.status)
	m, _ = press(t, m, "R")
	assert.True(t, m.statusErr)
	assert.Equal(t, 2, calls)
}

func TestLiveModelCursorStaysInRangeWhenFeedShrinks(t *testing.T) {
	m := newTestLiveModel(&fakeActions{})
	m, _ = press(t, m, "down")
	m, _ = press(t, m, "down")
	m, _ = press(t, m, "down")
	assert.Equal(t, 2, m.cursor)

	updated, _ := m.Update(feedMsg{feed: domain.Feed{Items: []domain.Notification{{ID: "9"}}}, ok: true})
	m = updated.(liveModel)
	assert.Equal(t, 0, m.cursor)
}

func TestLiveModelQuit(t *testing.T) {
	m := newTestLiveModel(&fakeActions{})

	_, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
