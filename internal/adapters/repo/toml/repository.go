package toml

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
	toml "github.com/pelletier/go-toml/v2"
)

const (
	profileFileMode = 0o600
	profileDirMode  = 0o700
	tempFilePattern = ".profile-*.toml.tmp"
)

// Repository persists the signed-in profile as a single TOML document.
type Repository struct {
	profilePath string
	mu          *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.ProfileRepository = (*Repository)(nil)

func NewRepository(profilePath string) (*Repository, error) {
	if strings.TrimSpace(profilePath) == "" {
		return nil, errors.New("profile path is empty")
	}

	absPath, err := filepath.Abs(profilePath)
	if err != nil {
		return nil, fmt.Errorf("resolve profile path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Repository{profilePath: absPath, mu: lockForPath(absPath)}, nil
}

func (r *Repository) Load(ctx context.Context) (domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, found, err := r.readSchema()
	if err != nil {
		return domain.Profile{}, err
	}
	if !found {
		return domain.Profile{}, domain.ErrProfileMissing
	}

	return fromSchema(file.Profile), nil
}

func (r *Repository) Save(ctx context.Context, profile domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := fileSchema{Profile: toSchema(profile)}
	file.applyDefaults()

	return r.writeSchema(file)
}

func (r *Repository) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.profilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete profile file: %w", err)
	}

	return nil
}

func (r *Repository) readSchema() (fileSchema, bool, error) {
	data, err := os.ReadFile(r.profilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, false, nil
		}
		return fileSchema{}, false, fmt.Errorf("read profile file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, false, fmt.Errorf("decode profile file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, false, err
	}
	file.applyDefaults()

	return file, true, nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	if err := os.MkdirAll(filepath.Dir(r.profilePath), profileDirMode); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode profile file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.profilePath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp profile file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp profile file: %w", err)
	}

	if err := tempFile.Chmod(profileFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp profile file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp profile file: %w", err)
	}

	if err := os.Rename(tempName, r.profilePath); err != nil {
		return fmt.Errorf("replace profile file: %w", err)
	}

	cleanup = false
	return nil
}

func toSchema(profile domain.Profile) profileSchema {
	return profileSchema{
		Server:    strings.TrimSpace(profile.Server),
		UserID:    strings.TrimSpace(profile.UserID),
		TokenRef:  strings.TrimSpace(profile.TokenRef),
		UpdatedAt: formatTime(profile.UpdatedAt),
	}
}

func fromSchema(profile profileSchema) domain.Profile {
	return domain.Profile{
		Server:    profile.Server,
		UserID:    profile.UserID,
		TokenRef:  profile.TokenRef,
		UpdatedAt: parseTime(profile.UpdatedAt),
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339)
}
