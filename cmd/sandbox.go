package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/adapters/sandbox"
	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const maxSandboxResponseBytes = 1 << 20

func newSandboxCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run and drive a local notifications server for development",
	}

	cmd.AddCommand(
		newSandboxServeCmd(app),
		newSandboxTokenCmd(app),
		newSandboxNotifyCmd(app),
	)

	return cmd
}

func newSandboxServeCmd(app *app) *cobra.Command {
	var (
		addr      string
		secret    string
		database  string
		heartbeat time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the notifications API on a local address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gin.SetMode(gin.ReleaseMode)

			store, err := sandbox.OpenStore(ctx, database)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			server := sandbox.NewServer(store, sandbox.Options{
				Secret:    secret,
				Heartbeat: heartbeat,
				Logger:    app.logger,
				Now:       app.now,
			})

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Sandbox listening on http://%s\n", ln.Addr())
			return server.Serve(ctx, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", app.cfg.Sandbox.Addr, "Listen address")
	cmd.Flags().StringVar(&secret, "secret", app.cfg.Sandbox.Secret, "HS256 signing secret for access tokens")
	cmd.Flags().StringVar(&database, "db", app.cfg.Sandbox.Database, "SQLite database path (\":memory:\" keeps nothing)")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", app.cfg.Sandbox.Heartbeat, "Interval between stream heartbeats")

	return cmd
}

func newSandboxTokenCmd(app *app) *cobra.Command {
	var (
		userID string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token the sandbox accepts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := sandbox.IssueToken(secret, userID, ttl, app.now())
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id to put in the token")
	cmd.Flags().StringVar(&secret, "secret", app.cfg.Sandbox.Secret, "HS256 signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newSandboxNotifyCmd(app *app) *cobra.Command {
	var (
		server string
		req    sandbox.PublishRequest
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Publish a notification through a running sandbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(server) == "" {
				server = app.cfg.ServerBaseURL
			}
			base, err := normalizeServer(server)
			if err != nil {
				return err
			}

			id, err := publishToSandbox(cmd, app, base, req)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Published %s to %s\n", id, req.UserID)
			return err
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Sandbox base URL (default: server.base_url from config)")
	cmd.Flags().StringVar(&req.UserID, "user", "", "Recipient user id")
	cmd.Flags().StringVar(&req.Type, "type", string(domain.KindInfo), "info, success, warning, error or team_invite")
	cmd.Flags().StringVar(&req.Message, "message", "", "Notification text")
	cmd.Flags().StringVar(&req.ProjectID, "project-id", "", "Project id (team_invite only)")
	cmd.Flags().StringVar(&req.ProjectName, "project-name", "", "Project name (team_invite only)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func publishToSandbox(cmd *cobra.Command, app *app, base string, req sandbox.PublishRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode notification: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, base+"/sandbox/notifications", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build publish request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := app.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("publish notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxSandboxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read publish response: %w", err)
	}

	var result struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fmt.Errorf("decode publish response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusCreated {
		if result.Error != "" {
			return "", errors.New(result.Error)
		}
		return "", fmt.Errorf("publish notification: unexpected status %d", resp.StatusCode)
	}

	return result.ID, nil
}
