package ports

import (
	"context"

	"github.com/bnema/notifications-feed-cli/internal/domain"
)

// PushStream opens one push connection per call. A connection is a
// non-restartable sequence of events; reconnecting means calling Open again.
type PushStream interface {
	Open(ctx context.Context, session domain.Session) (PushConnection, error)
}

// PushConnection yields events in arrival order. Next returns an error
// wrapping domain.ErrMalformedEvent for a frame that could not be decoded;
// the connection stays usable after such an error. Any other error ends the
// connection.
type PushConnection interface {
	Next() (domain.Notification, error)
	Close() error
}
