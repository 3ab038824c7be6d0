package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/liveops/internal/adapters/cache"
	"github.com/Amund211/liveops/internal/reporting"
	"github.com/Amund211/liveops/internal/strutils"
)

type GetRank func(ctx context.Context, playerID string) (int, error)

type rankProvider interface {
	GetRank(ctx context.Context, playerID string) (int, error)
}

func buildGetRankWithoutCache(provider rankProvider) GetRank {
	return func(ctx context.Context, playerID string) (int, error) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		rank, err := provider.GetRank(ctx, playerID)
		if err != nil {
			// NOTE: rankProvider implementations handle their own error reporting
			return 0, fmt.Errorf("could not get rank for player: %w", err)
		}

		return rank, nil
	}
}

func BuildGetRankWithCache(
	rankByPlayerIDCache cache.Cache[int],
	provider rankProvider,
) GetRank {
	getRankWithoutCache := buildGetRankWithoutCache(provider)

	return func(ctx context.Context, playerID string) (int, error) {
		if !strutils.PlayerIDIsValid(playerID) {
			err := fmt.Errorf("player id is not valid")
			reporting.Report(ctx, err, map[string]string{"playerID": playerID})
			return 0, err
		}

		key := fmt.Sprintf("rank:%s", playerID)

		rank, err := cache.GetOrCreate(ctx, rankByPlayerIDCache, key, func() (int, error) {
			return getRankWithoutCache(ctx, playerID)
		})
		if err != nil {
			// NOTE: GetOrCreate only returns an error if create() fails.
			// getRankWithoutCache handles its own error reporting
			return 0, fmt.Errorf("failed to cache.GetOrCreate rank: %w", err)
		}

		return rank, nil
	}
}
