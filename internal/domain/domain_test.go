package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionTrimsAndRequiresBothFields(t *testing.T) {
	t.Parallel()

	session, err := NewSession("  tok  ", " alice ")
	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token())
	assert.Equal(t, "alice", session.UserID())
	assert.False(t, session.IsZero())

	for _, tc := range [][2]string{{"", "alice"}, {"tok", ""}, {" ", " "}} {
		_, err := NewSession(tc[0], tc[1])
		assert.ErrorIs(t, err, ErrInvalidSession, "token=%q user=%q", tc[0], tc[1])
	}

	assert.True(t, Session{}.IsZero())
}

func TestSessionEqualComparesBothFields(t *testing.T) {
	t.Parallel()

	a, _ := NewSession("tok", "alice")
	same, _ := NewSession("tok", "alice")
	newToken, _ := NewSession("tok-2", "alice")
	newUser, _ := NewSession("tok", "bob")

	assert.True(t, a.Equal(same))
	assert.False(t, a.Equal(newToken))
	assert.False(t, a.Equal(newUser))
}

func TestKindValid(t *testing.T) {
	t.Parallel()

	for _, kind := range []Kind{KindInfo, KindSuccess, KindWarning, KindError, KindTeamInvite, KindHeartbeat} {
		assert.True(t, kind.Valid(), string(kind))
	}
	assert.False(t, Kind("").Valid())
	assert.False(t, Kind("INFO").Valid())
}

func TestIsInviteFor(t *testing.T) {
	t.Parallel()

	invite := Notification{Kind: KindTeamInvite, Action: &ActionContext{ProjectID: "42"}}

	assert.True(t, invite.IsInviteFor("42"))
	assert.False(t, invite.IsInviteFor("7"))
	assert.False(t, Notification{Kind: KindTeamInvite}.IsInviteFor("42"))
	assert.False(t, Notification{Kind: KindInfo, Action: &ActionContext{ProjectID: "42"}}.IsInviteFor("42"))
}

func TestCountUnread(t *testing.T) {
	t.Parallel()

	items := []Notification{{IsRead: true}, {}, {}, {IsRead: true}}

	assert.Equal(t, 2, CountUnread(items))
	assert.Equal(t, 0, CountUnread(nil))
	assert.Equal(t, 4, Feed{Items: items}.Len())
}

func TestConnectionStateMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DeliveryPolling, ConnectionConnecting.Mode())
	assert.Equal(t, DeliveryLive, ConnectionLive.Mode())
	assert.Equal(t, DeliveryPolling, ConnectionDegraded.Mode())
	assert.Equal(t, "degraded", ConnectionDegraded.String())
	assert.Equal(t, "unknown", ConnectionState(9).String())
}

func TestActionErrorMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("status 500")
	err := fmt.Errorf("dispatch: %w", &ActionError{Action: "approve invite", Message: "Invite expired", Err: cause})

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "approve invite failed: Invite expired", actionErr.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "mark all read failed", (&ActionError{Action: "mark all read"}).Error())
}

func TestIsCancellation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsCancellation(fmt.Errorf("fetch: %w", context.Canceled)))
	assert.False(t, IsCancellation(context.DeadlineExceeded))
	assert.False(t, IsCancellation(ErrFetch))
}
