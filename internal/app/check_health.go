package app

import (
	"context"
	"maps"

	"github.com/Amund211/liveops/internal/domain"
)

type CheckHealth func(ctx context.Context) []domain.ServiceStatus

type healthChecker interface {
	Check(ctx context.Context, services map[domain.ServiceName]string) []domain.ServiceStatus
}

// BuildCheckHealth checks the given collaborators. The checker applies a timeout per service.
func BuildCheckHealth(checker healthChecker, services map[domain.ServiceName]string) CheckHealth {
	services = maps.Clone(services)
	return func(ctx context.Context) []domain.ServiceStatus {
		return checker.Check(ctx, services)
	}
}
