package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	feedrender "github.com/bnema/notifications-feed-cli/internal/adapters/render/feed"
	"github.com/bnema/notifications-feed-cli/internal/application"
	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/spf13/cobra"
)

type feedOutput struct {
	Unread        int                  `json:"unread"`
	Notifications []notificationOutput `json:"notifications"`
}

type notificationOutput struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"isRead"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
	ProjectID   string    `json:"projectId,omitempty"`
	ProjectName string    `json:"projectName,omitempty"`
}

func newInboxCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Show the latest notifications once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInbox(cmd, app, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

func runInbox(cmd *cobra.Command, app *app, asJSON bool) error {
	profile, session, err := app.loadSession(cmd.Context())
	if err != nil {
		return err
	}

	client := app.client(profile.Server)
	fetch := func(ctx context.Context) (domain.Feed, error) {
		list, err := client.FetchSnapshot(ctx, session)
		if err != nil {
			return domain.Feed{}, fmt.Errorf("fetch inbox: %w", err)
		}
		return application.NewFeedStore().ReplaceAll(list), nil
	}

	if asJSON {
		feed, err := fetch(cmd.Context())
		if err != nil {
			return err
		}
		return writeFeedJSON(cmd.OutOrStdout(), feed)
	}

	feed, err := runInboxSpinner(cmd.Context(), cmd.ErrOrStderr(), profile.Server, fetch)
	if err != nil {
		return err
	}

	// A one-shot read never opens the push stream, so it renders as polling.
	rendered, err := app.feedRenderer(feed, feedrender.RenderOptions{
		Now:      app.now(),
		State:    domain.ConnectionDegraded,
		Selected: -1,
	})
	if err != nil {
		return fmt.Errorf("render inbox: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func writeFeedJSON(w io.Writer, feed domain.Feed) error {
	out := feedOutput{
		Unread:        feed.Unread,
		Notifications: make([]notificationOutput, 0, feed.Len()),
	}
	for _, item := range feed.Items {
		n := notificationOutput{
			ID:        string(item.ID),
			Type:      string(item.Kind),
			Message:   item.Message,
			IsRead:    item.IsRead,
			Timestamp: item.Timestamp,
		}
		if item.Action != nil {
			n.ProjectID = item.Action.ProjectID
			n.ProjectName = item.Action.ProjectName
		}
		out.Notifications = append(out.Notifications, n)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newApproveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <project-id>",
		Short: "Accept a team invite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dispatcher, err := newOneShotDispatcher(cmd.Context(), app)
			if err != nil {
				return err
			}

			message, err := dispatcher.ApproveInvite(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), message)
			return err
		},
	}
}

func newReadAllCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dispatcher, err := newOneShotDispatcher(cmd.Context(), app)
			if err != nil {
				return err
			}

			if _, err := dispatcher.MarkAllRead(cmd.Context()); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read")
			return err
		},
	}
}

// newOneShotDispatcher serves a single action outside `nf watch`; its feed
// store starts empty and is discarded afterwards.
func newOneShotDispatcher(ctx context.Context, app *app) (*application.ActionDispatcher, error) {
	profile, session, err := app.loadSession(ctx)
	if err != nil {
		return nil, err
	}

	return application.NewActionDispatcher(
		app.client(profile.Server),
		application.NewFeedStore(),
		application.FixedSession(session),
		app.logger,
	), nil
}
