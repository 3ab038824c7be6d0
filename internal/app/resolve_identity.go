package app

import (
	"context"
	"time"

	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/logging"
	"github.com/Amund211/liveops/internal/strutils"
)

// ResolveIdentity always returns an identity. Failures fall back to a locally generated offline one.
type ResolveIdentity func(ctx context.Context) domain.Identity

type identityResolver interface {
	Resolve(ctx context.Context) (domain.Identity, error)
}

func BuildResolveIdentity(resolver identityResolver, fallback func() domain.Identity) ResolveIdentity {
	return func(ctx context.Context) domain.Identity {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		identity, err := resolver.Resolve(ctx)
		if err == nil && !strutils.PlayerIDIsValid(identity.PlayerID) {
			logging.FromContext(ctx).WarnContext(ctx, "Resolved player id is not valid", "playerID", identity.PlayerID)
		} else if err == nil {
			return identity
		} else {
			// NOTE: identityResolver implementations handle their own error reporting
			logging.FromContext(ctx).WarnContext(ctx, "Failed to resolve identity", "error", err.Error())
		}

		offline := fallback()
		logging.FromContext(ctx).InfoContext(ctx, "Continuing with offline identity", "playerID", offline.PlayerID)
		return offline
	}
}
