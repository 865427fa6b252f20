package ports

import (
	"context"

	"github.com/bnema/notifications-feed-cli/internal/domain"
)

type ProfileRepository interface {
	Load(ctx context.Context) (domain.Profile, error)
	Save(ctx context.Context, profile domain.Profile) error
	Delete(ctx context.Context) error
}
