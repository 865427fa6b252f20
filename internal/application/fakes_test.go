package application

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/bnema/notifications-feed-cli/internal/ports"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func mustSession(t *testing.T, token, userID string) domain.Session {
	t.Helper()

	session, err := domain.NewSession(token, userID)
	require.NoError(t, err)
	return session
}

func note(id string, isRead bool) domain.Notification {
	return domain.Notification{
		ID:      domain.NotificationID(id),
		Kind:    domain.KindInfo,
		Message: "notification " + id,
		IsRead:  isRead,
	}
}

func pushNote(id, userID string) domain.Notification {
	n := note(id, false)
	n.TargetUserID = userID
	return n
}

func invite(id, projectID, projectName string, isRead bool) domain.Notification {
	return domain.Notification{
		ID:      domain.NotificationID(id),
		Kind:    domain.KindTeamInvite,
		Message: "join " + projectName,
		IsRead:  isRead,
		Action:  &domain.ActionContext{ProjectID: projectID, ProjectName: projectName},
	}
}

func numbered(count int, isRead func(int) bool) []domain.Notification {
	list := make([]domain.Notification, 0, count)
	for i := 1; i <= count; i++ {
		list = append(list, note(strconv.Itoa(i), isRead(i)))
	}
	return list
}

func ids(feed domain.Feed) []string {
	out := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		out = append(out, string(item.ID))
	}
	return out
}

// syncBuffer lets the test read what background goroutines logged.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger(buf *syncBuffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// snapshotFunc adapts a function to ports.SnapshotSource.
type snapshotFunc func(ctx context.Context, session domain.Session) ([]domain.Notification, error)

func (f snapshotFunc) FetchSnapshot(ctx context.Context, session domain.Session) ([]domain.Notification, error) {
	return f(ctx, session)
}

type streamItem struct {
	event domain.Notification
	err   error
}

type fakeConnection struct {
	ctx       context.Context
	session   domain.Session
	items     chan streamItem
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *fakeConnection) Next() (domain.Notification, error) {
	select {
	case item := <-c.items:
		return item.event, item.err
	case <-c.ctx.Done():
		return domain.Notification{}, c.ctx.Err()
	case <-c.closed:
		return domain.Notification{}, io.ErrClosedPipe
	}
}

func (c *fakeConnection) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConnection) send(t *testing.T, event domain.Notification) {
	t.Helper()
	select {
	case c.items <- streamItem{event: event}:
	case <-time.After(waitFor):
		t.Fatal("push connection did not consume event")
	}
}

func (c *fakeConnection) fail(t *testing.T, err error) {
	t.Helper()
	select {
	case c.items <- streamItem{err: err}:
	case <-time.After(waitFor):
		t.Fatal("push connection did not consume error")
	}
}

type fakePushStream struct {
	mu      sync.Mutex
	opens   int
	openErr error
	conns   chan *fakeConnection
}

var _ ports.PushStream = (*fakePushStream)(nil)

func newFakePushStream() *fakePushStream {
	return &fakePushStream{conns: make(chan *fakeConnection, 8)}
}

func (s *fakePushStream) Open(ctx context.Context, session domain.Session) (ports.PushConnection, error) {
	s.mu.Lock()
	s.opens++
	openErr := s.openErr
	s.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}

	conn := &fakeConnection{
		ctx:     ctx,
		session: session,
		items:   make(chan streamItem),
		closed:  make(chan struct{}),
	}
	s.conns <- conn
	return conn, nil
}

func (s *fakePushStream) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func (s *fakePushStream) setOpenErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

func (s *fakePushStream) next(t *testing.T) *fakeConnection {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(waitFor):
		t.Fatal("no push connection opened")
		return nil
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states []domain.ConnectionState
}

func (r *stateRecorder) record(state domain.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) all() []domain.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ConnectionState(nil), r.states...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Notification
}

func (r *eventRecorder) record(event domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.events...)
}

type mockActionAPI struct {
	mock.Mock
}

var _ ports.ActionAPI = (*mockActionAPI)(nil)

func (m *mockActionAPI) ApproveInvite(ctx context.Context, session domain.Session, projectID string) (string, error) {
	args := m.Called(ctx, session, projectID)
	return args.String(0), args.Error(1)
}

func (m *mockActionAPI) MarkAllRead(ctx context.Context, session domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}
