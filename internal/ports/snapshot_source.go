package ports

import (
	"context"

	"github.com/bnema/notifications-feed-cli/internal/domain"
)

// SnapshotSource returns the authoritative notification list for a session.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, session domain.Session) ([]domain.Notification, error)
}
