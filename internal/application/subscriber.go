package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/bnema/notifications-feed-cli/internal/ports"
	"github.com/google/uuid"
)

// PushSubscriber holds at most one push connection and owns the connection
// state. It never reconnects on its own: after a transport error the state
// stays Degraded until Start is called again.
type PushSubscriber struct {
	stream ports.PushStream
	logger *slog.Logger
	newID  func() string

	mu     sync.Mutex
	state  domain.ConnectionState
	cancel context.CancelFunc
	done   chan struct{}
	conn   ports.PushConnection
	notify func(domain.ConnectionState)
}

func NewPushSubscriber(stream ports.PushStream, logger *slog.Logger) *PushSubscriber {
	return &PushSubscriber{
		stream: stream,
		logger: loggerOrDiscard(logger),
		newID:  uuid.NewString,
		state:  domain.ConnectionConnecting,
	}
}

func (s *PushSubscriber) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Start opens a connection for the session. Calling it while a connection is
// being opened or is live does nothing.
func (s *PushSubscriber) Start(
	ctx context.Context,
	session domain.Session,
	onEvent func(domain.Notification),
	onStateChange func(domain.ConnectionState),
) {
	s.mu.Lock()
	if isRunning(s.done) {
		s.mu.Unlock()
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.notify = onStateChange
	changed := s.setStateLocked(domain.ConnectionConnecting)
	s.mu.Unlock()

	if changed && onStateChange != nil {
		onStateChange(domain.ConnectionConnecting)
	}

	go s.run(connCtx, session, onEvent, onStateChange, done)
}

// Stop closes the connection and waits for the reader to exit. The state
// goes back to Connecting, so delivery reads as polling until the next Start.
func (s *PushSubscriber) Stop() {
	s.mu.Lock()
	cancel, done, conn, notify := s.cancel, s.done, s.conn, s.notify
	s.cancel, s.done, s.conn, s.notify = nil, nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done

	s.transition(domain.ConnectionConnecting, notify)
}

func (s *PushSubscriber) run(
	ctx context.Context,
	session domain.Session,
	onEvent func(domain.Notification),
	onStateChange func(domain.ConnectionState),
	done chan struct{},
) {
	defer close(done)

	conn, err := s.stream.Open(ctx, session)
	if err != nil {
		if ctx.Err() != nil || domain.IsCancellation(err) {
			return
		}
		s.logger.Warn("push stream unavailable, polling only",
			"user_id", session.UserID(),
			"error", fmt.Errorf("%w: %w", domain.ErrTransport, err),
		)
		s.transition(domain.ConnectionDegraded, onStateChange)
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	if s.done == done {
		s.conn = conn
	}
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	s.logger.Debug("push stream connected", "user_id", session.UserID())
	s.transition(domain.ConnectionLive, onStateChange)

	connectionID := s.newID()
	var sequence uint64
	for {
		event, err := conn.Next()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, domain.ErrMalformedEvent) {
				s.logger.Warn("dropping malformed push event", "user_id", session.UserID(), "error", err)
				continue
			}
			s.logger.Warn("push stream lost, polling only",
				"user_id", session.UserID(),
				"error", fmt.Errorf("%w: %w", domain.ErrTransport, err),
			)
			s.transition(domain.ConnectionDegraded, onStateChange)
			return
		}

		sequence++
		if !acceptPushEvent(event, session) {
			continue
		}
		if event.ID == "" {
			event.ID = domain.NotificationID(fmt.Sprintf("push:%s:%d", connectionID, sequence))
		}
		onEvent(event)
	}
}

func (s *PushSubscriber) transition(state domain.ConnectionState, onStateChange func(domain.ConnectionState)) {
	s.mu.Lock()
	changed := s.setStateLocked(state)
	s.mu.Unlock()

	if changed && onStateChange != nil {
		onStateChange(state)
	}
}

func (s *PushSubscriber) setStateLocked(state domain.ConnectionState) bool {
	if s.state == state {
		return false
	}
	s.state = state
	return true
}

func acceptPushEvent(event domain.Notification, session domain.Session) bool {
	if event.Kind == domain.KindHeartbeat {
		return false
	}
	return event.TargetUserID == session.UserID()
}
