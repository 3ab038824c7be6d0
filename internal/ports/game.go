package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Amund211/liveops/internal/app"
	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/logging"
	"github.com/Amund211/liveops/internal/minigame"
	"github.com/Amund211/liveops/internal/ratelimiting"
	"github.com/Amund211/liveops/internal/reporting"
	"github.com/Amund211/liveops/internal/scheduler"
)

const maxRequestBodySize = 4 * 1024

// Session is the running game session the local API controls
type Session interface {
	Snapshot(ctx context.Context) (app.Snapshot, error)
	Subscribe(ctx context.Context) (<-chan app.Snapshot, func(), error)

	Click(ctx context.Context) (int, error)
	BuyUpgrade(ctx context.Context) (bool, error)
	StartMemory(ctx context.Context) error
	SubmitMemory(ctx context.Context, answer string) (minigame.MemoryResult, error)
	StartReaction(ctx context.Context) error
	HitReaction(ctx context.Context) (minigame.ReactionResult, error)
	SetView(ctx context.Context, view string) error
}

type actionResponse struct {
	Success bool           `json:"success"`
	Cause   string         `json:"cause,omitempty"`
	Result  any            `json:"result,omitempty"`
	State   *stateResponse `json:"state,omitempty"`
}

// Runs the action against the session. The returned value is included as the result.
type action func(ctx context.Context, r *http.Request) (any, error)

var errInvalidRequestBody = errors.New("invalid request body")

// Status code and cause for errors the display surface can act on
func statusForError(err error) (int, string, bool) {
	switch {
	case errors.Is(err, domain.ErrGameBusy):
		return http.StatusConflict, "game busy", true
	case errors.Is(err, domain.ErrNotArmed):
		return http.StatusConflict, "reaction target not shown", true
	case errors.Is(err, domain.ErrNoSequence):
		return http.StatusConflict, "no sequence awaiting input", true
	case errors.Is(err, app.ErrInvalidView):
		return http.StatusBadRequest, "invalid view", true
	case errors.Is(err, errInvalidRequestBody):
		return http.StatusBadRequest, "invalid request body", true
	case errors.Is(err, app.ErrSessionNotStarted):
		return http.StatusServiceUnavailable, "session not started", true
	case errors.Is(err, scheduler.ErrStopped):
		return http.StatusServiceUnavailable, "session stopped", true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "temporarily unavailable", true
	}
	return http.StatusInternalServerError, "internal server error", false
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, response actionResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to write response", "error", err)
	}
}

func decodeBody[T any](r *http.Request) (T, error) {
	var body T
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		return body, fmt.Errorf("%w: %w", errInvalidRequestBody, err)
	}
	return body, nil
}

func buildMiddleware(
	port string,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) func(http.HandlerFunc) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(20),
		ratelimiting.BurstSize(200),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)
	originLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(10),
		ratelimiting.BurstSize(100),
	)
	originRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		// NOTE: Rate limiting based on user controlled value
		originLimiter,
		ratelimiting.OriginKeyFunc,
	)

	makeOnLimitExceeded := func(rateLimiter ratelimiting.RequestRateLimiter) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logging.FromContext(ctx).InfoContext(ctx, "Rate limit exceeded", "statusCode", http.StatusTooManyRequests, "key", rateLimiter.KeyFor(r))

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"cause":"rate limit exceeded"}`))
		}
	}

	return ComposeMiddlewares(
		buildMetricsMiddleware(port),
		logging.NewRequestLoggerMiddleware(rootLogger.With("port", port)),
		sentryMiddleware,
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware("ip", ipRateLimiter, makeOnLimitExceeded(ipRateLimiter)),
		NewRateLimitMiddleware("origin", originRateLimiter, makeOnLimitExceeded(originRateLimiter)),
	)
}

func makeActionHandler(
	port string,
	session Session,
	act action,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildMiddleware(port, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := reporting.AddExtrasToContext(r.Context(), map[string]string{"action": port})

		result, err := act(ctx, r)
		if err != nil {
			statusCode, cause, expected := statusForError(err)
			if expected {
				logging.FromContext(ctx).InfoContext(ctx, "Action rejected", "statusCode", statusCode, "reason", cause, "error", err.Error())
			} else {
				logging.FromContext(ctx).ErrorContext(ctx, "Action failed", "statusCode", statusCode, "error", err.Error())
				reporting.Report(ctx, fmt.Errorf("%s failed: %w", port, err))
			}
			writeJSON(ctx, w, statusCode, actionResponse{Success: false, Cause: cause})
			return
		}

		response := actionResponse{Success: true, Result: result}

		snapshot, err := session.Snapshot(ctx)
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "Could not attach state to response", "error", err.Error())
		} else {
			state := snapshotToResponse(snapshot)
			response.State = &state
		}

		writeJSON(ctx, w, http.StatusOK, response)
	}

	return middleware(handler)
}

func MakeGetStateHandler(
	session Session,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makeActionHandler("state", session, func(ctx context.Context, r *http.Request) (any, error) {
		// The state itself is attached to every successful response
		_, err := session.Snapshot(ctx)
		return nil, err
	}, allowedOrigins, rootLogger, sentryMiddleware)
}

func MakeClickHandler(
	session Session,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makeActionHandler("clicker_click", session, func(ctx context.Context, r *http.Request) (any, error) {
		delta, err := session.Click(ctx)
		if err != nil {
			return nil, err
		}
		return clickResult{DeltaScore: delta}, nil
	}, allowedOrigins, rootLogger, sentryMiddleware)
}

func MakeBuyUpgradeHandler(
	session Session,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makeActionHandler("clicker_upgrade", session, func(ctx context.Context, r *http.Request) (any, error) {
		purchased, err := session.BuyUpgrade(ctx)
		if err != nil {
			return nil, err
		}
		return upgradeResult{Purchased: purchased}, nil
	}, allowedOrigins, rootLogger, sentryMiddleware)
}

func MakeStartMemoryHandler(
	session Session,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makeActionHandler("memory_start", session, func(ctx context.Context, r *http.Request) (any, error) {
		return nil, session.StartMemory(ctx)
	}, allowedOrigins, rootLogger, sentryMiddleware)
}

type submitMemoryRequest struct {
	Answer string `json:"answer"`
}

func MakeSubmitMemoryHandler(
	session Session,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makeActionHandler("memory_submit", session, func(ctx context.Context, r *http.Request) (any, error) {
		body, err := decodeBody[submitMemoryRequest](r)
		if err != nil {
			return nil, err
		}

		result, err := session.SubmitMemory(ctx, body.Answer)
		if err != nil {
			return nil, err
		}
		return memoryResult{Correct: result.Correct, Level: result.Level, Score: result.Score}, nil
	}, allowedOrigins, rootLogger, sentryMiddleware)
}

func MakeStartReactionHandler(
	session Session,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makeActionHandler("reaction_start", session, func(ctx context.Context, r *http.Request) (any, error) {
		return nil, session.StartReaction(ctx)
	}, allowedOrigins, rootLogger, sentryMiddleware)
}

func MakeHitReactionHandler(
	session Session,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makeActionHandler("reaction_hit", session, func(ctx context.Context, r *http.Request) (any, error) {
		result, err := session.HitReaction(ctx)
		if err != nil {
			return nil, err
		}
		return reactionResult{
			ReactionTimeMs: result.Time.Milliseconds(),
			NewBest:        result.NewBest,
			XP:             result.XP,
		}, nil
	}, allowedOrigins, rootLogger, sentryMiddleware)
}

type setViewRequest struct {
	View string `json:"view"`
}

func MakeSetViewHandler(
	session Session,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	return makeActionHandler("view", session, func(ctx context.Context, r *http.Request) (any, error) {
		body, err := decodeBody[setViewRequest](r)
		if err != nil {
			return nil, err
		}
		return nil, session.SetView(ctx, body.View)
	}, allowedOrigins, rootLogger, sentryMiddleware)
}

func MakeHealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	}
}
