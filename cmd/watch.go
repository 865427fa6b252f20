package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	feedrender "github.com/bnema/notifications-feed-cli/internal/adapters/render/feed"
	"github.com/bnema/notifications-feed-cli/internal/application"
	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *app) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow notifications live",
		Long:  "Keep the feed up to date from the push stream and a snapshot poll every few seconds. The interactive view accepts and declines invites and marks notifications as read; --plain prints the feed on every change instead.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, app, plain)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Print the feed on every change instead of the interactive view")

	return cmd
}

func runWatch(cmd *cobra.Command, app *app, plain bool) error {
	profile, session, err := app.loadSession(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := app.logger
	if !plain && !app.logToFile {
		// stderr belongs to the interactive view.
		logger = discardLogger()
	}

	client := app.client(profile.Server)
	store := application.NewFeedStore()
	lifecycle := application.NewSessionLifecycle(
		store,
		application.NewSnapshotPoller(client, logger),
		application.NewPushSubscriber(client, logger),
		logger,
	)

	feeds, unsubscribe := store.Subscribe()
	defer unsubscribe()

	lifecycle.Acquire(ctx, session)
	defer lifecycle.Release()

	if plain {
		return watchPlain(ctx, cmd.OutOrStdout(), app, lifecycle, feeds)
	}

	return feedrender.RunLive(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), feedrender.LiveOptions{
		Feeds:     feeds,
		States:    lifecycle.States(),
		Initial:   lifecycle.State(),
		Actions:   application.NewActionDispatcher(client, store, lifecycle, logger),
		Reconnect: lifecycle.Reconnect,
		Now:       app.now,
	})
}

func watchPlain(ctx context.Context, out io.Writer, app *app, lifecycle *application.SessionLifecycle, feeds <-chan domain.Feed) error {
	var (
		feed  domain.Feed
		state = lifecycle.State()
	)

	emit := func() error {
		rendered, err := app.feedRenderer(feed, feedrender.RenderOptions{Now: app.now(), State: state, Selected: -1})
		if err != nil {
			return fmt.Errorf("render feed: %w", err)
		}
		_, err = fmt.Fprintln(out, rendered)
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-feeds:
			if !ok {
				return nil
			}
			feed = next
		case next := <-lifecycle.States():
			if next == state {
				continue
			}
			state = next
		}

		if err := emit(); err != nil {
			return err
		}
	}
}
