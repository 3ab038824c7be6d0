package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/liveops/internal/adapters/cache"
	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/reporting"
)

type GetLeaderboard func(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)

type leaderboardProvider interface {
	GetTop(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

func buildGetLeaderboardWithoutCache(provider leaderboardProvider) GetLeaderboard {
	return func(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		entries, err := provider.GetTop(ctx, limit)
		if err != nil {
			// NOTE: leaderboardProvider implementations handle their own error reporting
			return nil, fmt.Errorf("could not get leaderboard: %w", err)
		}

		return entries, nil
	}
}

func BuildGetLeaderboardWithCache(
	entriesByLimitCache cache.Cache[[]domain.LeaderboardEntry],
	provider leaderboardProvider,
) GetLeaderboard {
	getLeaderboardWithoutCache := buildGetLeaderboardWithoutCache(provider)

	return func(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
		if limit < 1 {
			err := fmt.Errorf("invalid leaderboard limit %d", limit)
			reporting.Report(ctx, err)
			return nil, err
		}

		key := fmt.Sprintf("top:%d", limit)

		entries, err := cache.GetOrCreate(ctx, entriesByLimitCache, key, func() ([]domain.LeaderboardEntry, error) {
			return getLeaderboardWithoutCache(ctx, limit)
		})
		if err != nil {
			// NOTE: GetOrCreate only returns an error if create() fails.
			// getLeaderboardWithoutCache handles its own error reporting
			return nil, fmt.Errorf("failed to cache.GetOrCreate leaderboard: %w", err)
		}

		return entries, nil
	}
}
