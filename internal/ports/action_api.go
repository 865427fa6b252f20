package ports

import (
	"context"

	"github.com/bnema/notifications-feed-cli/internal/domain"
)

type ActionAPI interface {
	// ApproveInvite returns the server's confirmation message, if any.
	ApproveInvite(ctx context.Context, session domain.Session, projectID string) (string, error)
	MarkAllRead(ctx context.Context, session domain.Session) error
}
