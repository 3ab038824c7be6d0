package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/liveops/internal/domain"
)

type GetProgress func(ctx context.Context, playerID string) (domain.Progress, error)

type progressProvider interface {
	GetProgress(ctx context.Context, playerID string) (domain.Progress, error)
}

func BuildGetProgress(provider progressProvider) GetProgress {
	return func(ctx context.Context, playerID string) (domain.Progress, error) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		progress, err := provider.GetProgress(ctx, playerID)
		if err != nil {
			// NOTE: progressProvider implementations handle their own error reporting
			return domain.Progress{}, fmt.Errorf("could not get progress for player: %w", err)
		}

		return progress, nil
	}
}
