package cmd

import (
	"errors"
	"fmt"
	"strings"

	authadapter "github.com/bnema/notifications-feed-cli/internal/adapters/auth"
	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *app) *cobra.Command {
	var (
		token  string
		userID string
		server string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an access token",
		Long:  "Store an access token for the notifications server. The user id is read from the token's claims unless --user is given.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, app, token, userID, server)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Access token (JWT)")
	cmd.Flags().StringVar(&userID, "user", "", "User id (default: taken from the token)")
	cmd.Flags().StringVar(&server, "server", "", "Server base URL (default: server.base_url from config)")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func runLogin(cmd *cobra.Command, app *app, token, userID, server string) error {
	ctx := cmd.Context()

	if strings.TrimSpace(userID) == "" {
		derived, err := authadapter.UserIDFromToken(token)
		if err != nil {
			return fmt.Errorf("resolve user id (pass --user to set it): %w", err)
		}
		userID = derived
	}

	session, err := domain.NewSession(token, userID)
	if err != nil {
		return err
	}

	if strings.TrimSpace(server) == "" {
		server = app.cfg.ServerBaseURL
	}
	server, err = normalizeServer(server)
	if err != nil {
		return err
	}

	tokenRef, err := credentialKey(server, session.UserID())
	if err != nil {
		return err
	}

	previous, err := app.profiles.Load(ctx)
	switch {
	case err == nil:
		if previous.TokenRef != "" && previous.TokenRef != tokenRef {
			if err := app.credentials.Delete(ctx, previous.TokenRef); err != nil {
				app.logger.Warn("remove previous session token", "token_ref", previous.TokenRef, "error", err)
			}
		}
	case !errors.Is(err, domain.ErrProfileMissing):
		return fmt.Errorf("load profile: %w", err)
	}

	if err := app.credentials.Put(ctx, tokenRef, session.Token()); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}

	profile := domain.Profile{
		Server:    server,
		UserID:    session.UserID(),
		TokenRef:  tokenRef,
		UpdatedAt: app.now().UTC(),
	}
	if err := app.profiles.Save(ctx, profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	app.logger.Debug("signed in", "server", server, "user_id", session.UserID())
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s on %s\n", session.UserID(), server)
	return nil
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			profile, err := app.profiles.Load(ctx)
			if errors.Is(err, domain.ErrProfileMissing) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err != nil {
				return fmt.Errorf("load profile: %w", err)
			}

			if profile.TokenRef != "" {
				if err := app.credentials.Delete(ctx, profile.TokenRef); err != nil {
					return fmt.Errorf("delete session token: %w", err)
				}
			}
			if err := app.profiles.Delete(ctx); err != nil {
				return fmt.Errorf("delete profile: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed out %s\n", profile.UserID)
			return nil
		},
	}
}

func newWhoamiCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, _, err := app.loadSession(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s on %s\n", profile.UserID, profile.Server)
			return err
		},
	}
}
