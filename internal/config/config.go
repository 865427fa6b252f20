package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".nf"
	envPrefix  = "NF"

	ServerBaseURLKey        = "server.base_url"
	ServerRequestTimeoutKey = "server.request_timeout"
	ProfilePathKey          = "profile.path"
	CredentialsDirKey       = "credentials.dir"
	CredentialsBackendKey   = "credentials.backend"
	LogLevelKey             = "log.level"

	SandboxAddrKey      = "sandbox.addr"
	SandboxSecretKey    = "sandbox.secret"
	SandboxDatabaseKey  = "sandbox.database"
	SandboxHeartbeatKey = "sandbox.heartbeat"
)

// Credential backends: "auto" tries pass first and falls back to files.
const (
	BackendFile = "file"
	BackendPass = "pass"
	BackendAuto = "auto"
)

type Config struct {
	ServerBaseURL      string
	RequestTimeout     time.Duration
	ProfilePath        string
	CredentialsDir     string
	CredentialsBackend string
	LogLevel           string

	Sandbox SandboxConfig
}

// SandboxConfig configures the local notifications server started by
// `nf sandbox serve`.
type SandboxConfig struct {
	Addr      string
	Secret    string
	Database  string
	Heartbeat time.Duration
}

// Load reads ~/.nf/config.toml when present. NF_* environment variables
// override file values, e.g. NF_SERVER_BASE_URL.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	root := filepath.Join(homeDir, configDir)

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(root)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(ServerBaseURLKey, "http://localhost:5000")
	v.SetDefault(ServerRequestTimeoutKey, 30*time.Second)
	v.SetDefault(ProfilePathKey, filepath.Join(root, "profile.toml"))
	v.SetDefault(CredentialsDirKey, filepath.Join(root, "credentials"))
	v.SetDefault(CredentialsBackendKey, BackendFile)
	v.SetDefault(LogLevelKey, "info")
	v.SetDefault(SandboxAddrKey, "127.0.0.1:5000")
	v.SetDefault(SandboxSecretKey, "dev-secret-key")
	v.SetDefault(SandboxDatabaseKey, ":memory:")
	v.SetDefault(SandboxHeartbeatKey, 15*time.Second)

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		ServerBaseURL:      strings.TrimSpace(v.GetString(ServerBaseURLKey)),
		RequestTimeout:     v.GetDuration(ServerRequestTimeoutKey),
		ProfilePath:        strings.TrimSpace(v.GetString(ProfilePathKey)),
		CredentialsDir:     strings.TrimSpace(v.GetString(CredentialsDirKey)),
		CredentialsBackend: strings.ToLower(strings.TrimSpace(v.GetString(CredentialsBackendKey))),
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString(LogLevelKey))),
		Sandbox: SandboxConfig{
			Addr:      strings.TrimSpace(v.GetString(SandboxAddrKey)),
			Secret:    v.GetString(SandboxSecretKey),
			Database:  strings.TrimSpace(v.GetString(SandboxDatabaseKey)),
			Heartbeat: v.GetDuration(SandboxHeartbeatKey),
		},
	}
	if cfg.ProfilePath == "" {
		return Config{}, errors.New("profile path is empty")
	}
	if cfg.CredentialsDir == "" {
		return Config{}, errors.New("credentials directory is empty")
	}
	switch cfg.CredentialsBackend {
	case BackendFile, BackendPass, BackendAuto:
	default:
		return Config{}, fmt.Errorf("unknown credentials backend %q", cfg.CredentialsBackend)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return cfg, nil
}
