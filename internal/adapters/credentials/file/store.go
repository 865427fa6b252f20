package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/bnema/notifications-feed-cli/internal/ports"
	"github.com/pelletier/go-toml/v2"
)

const (
	storeDirMode    = 0o700
	storeFileMode   = 0o600
	storeFileName   = "sessions.toml"
	tempFilePattern = "sessions-*.toml.tmp"
	keyPrefix       = "sessions"
)

// keyringFile is the on-disk layout:
//
//	[servers."localhost_5000".users.alice]
//	token = "..."
//	saved_at = 2026-03-01T12:00:00Z
type keyringFile struct {
	Servers map[string]serverEntry `toml:"servers,omitempty"`
}

type serverEntry struct {
	Users map[string]tokenEntry `toml:"users"`
}

type tokenEntry struct {
	Token   string    `toml:"token"`
	SavedAt time.Time `toml:"saved_at"`
}

// Store keeps session tokens in a single keyring file, one entry per server
// and user. Keys have the form "sessions/<server>/<user>".
type Store struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(dir string) *Store {
	return &Store{
		path: filepath.Join(filepath.Clean(dir), storeFileName),
		now:  time.Now,
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	token := strings.TrimSpace(value)
	if token == "" {
		return errors.New("credential value is empty")
	}
	server, user, err := parseKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	if file.Servers == nil {
		file.Servers = map[string]serverEntry{}
	}
	entry := file.Servers[server]
	if entry.Users == nil {
		entry.Users = map[string]tokenEntry{}
	}
	entry.Users[user] = tokenEntry{Token: token, SavedAt: s.now().UTC().Truncate(time.Second)}
	file.Servers[server] = entry

	return s.write(file)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	server, user, err := parseKey(key)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return "", err
	}
	entry, ok := file.Servers[server].Users[user]
	if !ok || entry.Token == "" {
		return "", fmt.Errorf("credential %q: %w", key, domain.ErrSecretNotFound)
	}

	return entry.Token, nil
}

// Delete removes one entry. The keyring file goes away with its last entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	server, user, err := parseKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	entry, ok := file.Servers[server]
	if !ok {
		return nil
	}
	if _, ok := entry.Users[user]; !ok {
		return nil
	}

	delete(entry.Users, user)
	if len(entry.Users) == 0 {
		delete(file.Servers, server)
	}
	if len(file.Servers) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete credentials file: %w", err)
		}
		return nil
	}

	return s.write(file)
}

func (s *Store) read() (keyringFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return keyringFile{}, nil
		}
		return keyringFile{}, fmt.Errorf("read credentials file: %w", err)
	}

	var file keyringFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return keyringFile{}, fmt.Errorf("decode credentials file %s: %w", s.path, err)
	}
	return file, nil
}

func (s *Store) write(file keyringFile) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode credentials file: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()

	if err := tempFile.Chmod(storeFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp credentials file: %w", err)
	}
	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp credentials file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp credentials file: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace credentials file: %w", err)
	}
	return nil
}

func parseKey(key string) (string, string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", "", errors.New("credential key is empty")
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 || parts[0] != keyPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("invalid credential key %q: want %s/<server>/<user>", key, keyPrefix)
	}
	return parts[1], parts[2], nil
}
