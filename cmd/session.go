package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bnema/notifications-feed-cli/internal/domain"
)

var errNotSignedIn = errors.New("not signed in: run `nf login --token <token>` first")

// loadSession resolves the stored profile and its token.
func (a *app) loadSession(ctx context.Context) (domain.Profile, domain.Session, error) {
	profile, err := a.profiles.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrProfileMissing) {
			return domain.Profile{}, domain.Session{}, errNotSignedIn
		}
		return domain.Profile{}, domain.Session{}, fmt.Errorf("load profile: %w", err)
	}

	if strings.TrimSpace(profile.TokenRef) == "" {
		return domain.Profile{}, domain.Session{}, errNotSignedIn
	}
	token, err := a.credentials.Get(ctx, profile.TokenRef)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return domain.Profile{}, domain.Session{}, errNotSignedIn
		}
		return domain.Profile{}, domain.Session{}, fmt.Errorf("load session token: %w", err)
	}

	session, err := domain.NewSession(token, profile.UserID)
	if err != nil {
		return domain.Profile{}, domain.Session{}, fmt.Errorf("stored session: %w", err)
	}
	if profile.Server == "" {
		profile.Server = a.cfg.ServerBaseURL
	}

	return profile, session, nil
}

func normalizeServer(raw string) (string, error) {
	server := strings.TrimRight(strings.TrimSpace(raw), "/")
	parsed, err := url.Parse(server)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid server url %q", raw)
	}
	return server, nil
}

// credentialKey names the stored token for userID on server,
// e.g. "sessions/localhost_5000/alice".
func credentialKey(server, userID string) (string, error) {
	parsed, err := url.Parse(server)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid server url %q", server)
	}

	host := strings.ReplaceAll(parsed.Host, ":", "_")
	return "sessions/" + host + "/" + url.PathEscape(userID), nil
}
