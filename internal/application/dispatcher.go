package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/bnema/notifications-feed-cli/internal/ports"
)

const (
	actionApproveInvite = "approve invite"
	actionMarkAllRead   = "mark all read"
	fallbackActionError = "Server error"
)

type SessionProvider interface {
	Current() (domain.Session, bool)
}

// FixedSession serves a single session, for one-shot commands that run
// without a lifecycle.
type FixedSession domain.Session

func (s FixedSession) Current() (domain.Session, bool) {
	session := domain.Session(s)
	return session, !session.IsZero()
}

// ActionDispatcher turns user responses to notifications into endpoint
// calls and feed mutations.
type ActionDispatcher struct {
	api      ports.ActionAPI
	store    *FeedStore
	sessions SessionProvider
	logger   *slog.Logger
}

func NewActionDispatcher(api ports.ActionAPI, store *FeedStore, sessions SessionProvider, logger *slog.Logger) *ActionDispatcher {
	return &ActionDispatcher{
		api:      api,
		store:    store,
		sessions: sessions,
		logger:   loggerOrDiscard(logger),
	}
}

// ApproveInvite only removes the invite once the endpoint confirmed it.
func (d *ActionDispatcher) ApproveInvite(ctx context.Context, projectID string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", errors.New("project id is required")
	}

	session, ok := d.sessions.Current()
	if !ok {
		return "", domain.ErrNoSession
	}

	generation := d.store.Generation()
	projectName := d.projectName(projectID)

	message, err := d.api.ApproveInvite(ctx, session, projectID)
	if err != nil {
		return "", toActionError(actionApproveInvite, err)
	}

	if _, err := d.store.Writer(generation).RemoveInviteFor(projectID); err != nil {
		d.logger.Debug("session changed while approving invite", "project_id", projectID)
	}

	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("Joined %q!", projectName)
	}
	return message, nil
}

// RejectInvite has no server-side effect; the invite is only dropped locally.
func (d *ActionDispatcher) RejectInvite(projectID string) domain.Feed {
	return d.store.RemoveInviteFor(strings.TrimSpace(projectID))
}

// MarkAllRead updates the feed before calling the endpoint and keeps the
// local change when the endpoint fails.
func (d *ActionDispatcher) MarkAllRead(ctx context.Context) (domain.Feed, error) {
	session, ok := d.sessions.Current()
	if !ok {
		return d.store.Feed(), domain.ErrNoSession
	}

	feed := d.store.MarkAllRead()

	if err := d.api.MarkAllRead(ctx, session); err != nil {
		d.logger.Warn("mark all read failed", "user_id", session.UserID(), "error", err)
		return feed, toActionError(actionMarkAllRead, err)
	}

	return feed, nil
}

func (d *ActionDispatcher) projectName(projectID string) string {
	for _, item := range d.store.Feed().Items {
		if item.IsInviteFor(projectID) && strings.TrimSpace(item.Action.ProjectName) != "" {
			return item.Action.ProjectName
		}
	}
	return "Project " + projectID
}

func toActionError(action string, err error) error {
	if domain.IsCancellation(err) {
		return err
	}

	var actionErr *domain.ActionError
	if errors.As(err, &actionErr) {
		if actionErr.Action == "" {
			return &domain.ActionError{Action: action, Message: actionErr.Message, Err: actionErr.Err}
		}
		return actionErr
	}

	return &domain.ActionError{Action: action, Message: fallbackActionError, Err: err}
}
