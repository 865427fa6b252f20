package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/bnema/notifications-feed-cli/internal/ports"
)

// PollInterval is the fixed delay between two snapshot fetches.
const PollInterval = 3 * time.Second

// SnapshotPoller fetches the full notification list on start and on every
// tick until stopped. A failed tick leaves the feed untouched.
type SnapshotPoller struct {
	source   ports.SnapshotSource
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSnapshotPoller(source ports.SnapshotSource, logger *slog.Logger) *SnapshotPoller {
	return &SnapshotPoller{
		source:   source,
		logger:   loggerOrDiscard(logger),
		interval: PollInterval,
	}
}

// Start is a no-op while a previous Start is still polling.
func (p *SnapshotPoller) Start(ctx context.Context, session domain.Session, onSnapshot func([]domain.Notification)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isRunning(p.done) {
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.run(pollCtx, session, onSnapshot, done)
}

// Stop cancels the in-flight fetch and waits for the loop to exit. No
// snapshot is delivered once Stop returns.
func (p *SnapshotPoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *SnapshotPoller) run(ctx context.Context, session domain.Session, onSnapshot func([]domain.Notification), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.pollOnce(ctx, session, onSnapshot)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *SnapshotPoller) pollOnce(ctx context.Context, session domain.Session, onSnapshot func([]domain.Notification)) {
	list, err := p.source.FetchSnapshot(ctx, session)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if domain.IsCancellation(err) {
			return
		}
		p.logger.Warn("snapshot poll failed",
			"user_id", session.UserID(),
			"error", fmt.Errorf("%w: %w", domain.ErrFetch, err),
		)
		return
	}

	onSnapshot(list)
}

func isRunning(done chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}
