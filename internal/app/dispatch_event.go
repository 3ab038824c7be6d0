package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/liveops/internal/adapters/gateway"
	"github.com/Amund211/liveops/internal/domain"
)

type DispatchEvent func(ctx context.Context, event domain.DomainEvent) error

type eventDispatcher interface {
	Dispatch(ctx context.Context, event domain.DomainEvent) (gateway.Delivery, error)
}

func BuildDispatchEvent(dispatcher eventDispatcher) DispatchEvent {
	return func(ctx context.Context, event domain.DomainEvent) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		delivery, err := dispatcher.Dispatch(ctx, event)
		if err != nil {
			// NOTE: eventDispatcher implementations handle their own error reporting
			return fmt.Errorf("could not dispatch %s event: %w", event.Type, err)
		}
		if !delivery.Delivered {
			return fmt.Errorf("%w: %s event was not accepted (status %d)", domain.ErrDeliveryFailed, event.Type, delivery.StatusCode)
		}

		return nil
	}
}
