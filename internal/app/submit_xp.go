package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/reporting"
)

// SubmitXP mirrors an xp_gain event to the progression service
type SubmitXP func(ctx context.Context, event domain.DomainEvent) error

type xpStore interface {
	SubmitXP(ctx context.Context, playerID string, deltaXP int, at time.Time) error
}

func BuildSubmitXP(store xpStore) SubmitXP {
	return func(ctx context.Context, event domain.DomainEvent) error {
		if event.Type != domain.EventXPGain {
			err := fmt.Errorf("%w: expected %s, got %s", domain.ErrInvalidEvent, domain.EventXPGain, event.Type)
			reporting.Report(ctx, err)
			return err
		}

		deltaXP, ok := event.Payload["deltaXp"].(int)
		if !ok || deltaXP < 0 {
			err := fmt.Errorf("%w: missing or negative deltaXp", domain.ErrInvalidEvent)
			reporting.Report(ctx, err, map[string]string{"payload": fmt.Sprintf("%v", event.Payload)})
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := store.SubmitXP(ctx, event.PlayerID, deltaXP, event.OccurredAt)
		if err != nil {
			// NOTE: xpStore implementations handle their own error reporting
			return fmt.Errorf("could not submit xp: %w", err)
		}

		return nil
	}
}
