package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	chainstore "github.com/bnema/notifications-feed-cli/internal/adapters/credentials/chain"
	filestore "github.com/bnema/notifications-feed-cli/internal/adapters/credentials/file"
	passstore "github.com/bnema/notifications-feed-cli/internal/adapters/credentials/pass"
	"github.com/bnema/notifications-feed-cli/internal/adapters/inbox"
	feedrender "github.com/bnema/notifications-feed-cli/internal/adapters/render/feed"
	tomlrepo "github.com/bnema/notifications-feed-cli/internal/adapters/repo/toml"
	"github.com/bnema/notifications-feed-cli/internal/config"
	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/bnema/notifications-feed-cli/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	cfg          config.Config
	profiles     ports.ProfileRepository
	credentials  ports.CredentialStore
	feedRenderer func(domain.Feed, feedrender.RenderOptions) (string, error)
	httpClient   *http.Client
	now          func() time.Time

	logger    *slog.Logger
	logToFile bool
	closeLog  func() error
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	profiles, err := tomlrepo.NewRepository(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("wire profile repository: %w", err)
	}

	credentials, err := newCredentialStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire credential store: %w", err)
	}

	return &app{
		cfg:          cfg,
		profiles:     profiles,
		credentials:  credentials,
		feedRenderer: feedrender.Render,
		httpClient:   http.DefaultClient,
		now:          time.Now,
		logger:       discardLogger(),
		closeLog:     func() error { return nil },
	}, nil
}

func newCredentialStore(cfg config.Config) (ports.CredentialStore, error) {
	switch cfg.CredentialsBackend {
	case config.BackendPass:
		return passstore.NewStore(), nil
	case config.BackendAuto:
		return chainstore.NewPassFirstWithFileFallback(cfg.CredentialsDir)
	default:
		return filestore.NewStore(cfg.CredentialsDir), nil
	}
}

func (a *app) client(server string) inbox.Adapter {
	return inbox.Adapter{
		API:            inbox.DefaultAPI(server),
		HTTPClient:     a.httpClient,
		StreamClient:   a.httpClient,
		RequestTimeout: a.cfg.RequestTimeout,
	}
}
