package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/bnema/notifications-feed-cli/internal/domain"
)

// SessionLifecycle runs the poller and the push subscriber for exactly one
// session at a time. Switching sessions fully stops the previous channels
// before the next ones start.
type SessionLifecycle struct {
	store      *FeedStore
	poller     *SnapshotPoller
	subscriber *PushSubscriber
	logger     *slog.Logger

	mu      sync.Mutex
	session domain.Session
	active  bool
	ctx     context.Context
	cancel  context.CancelFunc
	writer  FeedWriter

	states chan domain.ConnectionState
}

func NewSessionLifecycle(store *FeedStore, poller *SnapshotPoller, subscriber *PushSubscriber, logger *slog.Logger) *SessionLifecycle {
	return &SessionLifecycle{
		store:      store,
		poller:     poller,
		subscriber: subscriber,
		logger:     loggerOrDiscard(logger),
		states:     make(chan domain.ConnectionState, 1),
	}
}

// Apply mirrors a credentials change: a missing token or user id releases
// the current session, anything else acquires it.
func (l *SessionLifecycle) Apply(ctx context.Context, token, userID string) error {
	session, err := domain.NewSession(token, userID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSession) {
			l.Release()
			return nil
		}
		return err
	}

	l.Acquire(ctx, session)
	return nil
}

// Acquire starts both channels for session. Acquiring the session that is
// already running does nothing.
func (l *SessionLifecycle) Acquire(ctx context.Context, session domain.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active && l.session.Equal(session) {
		return
	}

	l.teardownLocked()

	generation := l.store.Reset()
	sessionCtx, cancel := context.WithCancel(ctx)
	l.session = session
	l.active = true
	l.ctx = sessionCtx
	l.cancel = cancel
	l.writer = l.store.Writer(generation)

	l.logger.Info("session started", "user_id", session.UserID(), "generation", generation)

	l.poller.Start(sessionCtx, session, l.applySnapshot(l.writer))
	l.startPushLocked()
}

// Release stops both channels and clears the feed.
func (l *SessionLifecycle) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}

	l.teardownLocked()
	l.store.Reset()
	l.logger.Info("session released", "user_id", l.session.UserID())
	l.session = domain.Session{}
}

// Reconnect reopens the push channel of the current session after it
// degraded. It does nothing while the channel is connecting or live.
func (l *SessionLifecycle) Reconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return domain.ErrNoSession
	}

	l.startPushLocked()
	return nil
}

func (l *SessionLifecycle) Current() (domain.Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.session, l.active
}

func (l *SessionLifecycle) State() domain.ConnectionState {
	return l.subscriber.State()
}

// States delivers the latest connection state; intermediate states may be
// skipped by a slow reader.
func (l *SessionLifecycle) States() <-chan domain.ConnectionState {
	return l.states
}

func (l *SessionLifecycle) Store() *FeedStore {
	return l.store
}

func (l *SessionLifecycle) startPushLocked() {
	session := l.session
	writer := l.writer
	l.subscriber.Start(l.ctx, session, func(event domain.Notification) {
		if _, err := writer.InsertOne(event); err != nil {
			l.logger.Debug("discarding push event from previous session", "user_id", session.UserID())
		}
	}, l.publishState)
}

func (l *SessionLifecycle) applySnapshot(writer FeedWriter) func([]domain.Notification) {
	return func(list []domain.Notification) {
		if _, err := writer.ReplaceAll(list); err != nil {
			l.logger.Debug("discarding snapshot from previous session", "generation", writer.Generation())
		}
	}
}

func (l *SessionLifecycle) publishState(state domain.ConnectionState) {
	select {
	case <-l.states:
	default:
	}
	select {
	case l.states <- state:
	default:
	}
}

func (l *SessionLifecycle) teardownLocked() {
	if l.cancel != nil {
		l.cancel()
	}
	l.poller.Stop()
	l.subscriber.Stop()

	l.active = false
	l.cancel = nil
	l.ctx = nil
}
