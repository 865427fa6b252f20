package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int           `toml:"version"`
	Profile profileSchema `toml:"profile"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported profile schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type profileSchema struct {
	Server    string `toml:"server"`
	UserID    string `toml:"user_id"`
	TokenRef  string `toml:"token_ref"`
	UpdatedAt string `toml:"updated_at,omitempty"`
}
