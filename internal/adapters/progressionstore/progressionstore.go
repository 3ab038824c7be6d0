package progressionstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Amund211/liveops/internal/constants"
	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type xpRequest struct {
	Type     domain.EventType  `json:"type"`
	PlayerID string            `json:"playerId"`
	TS       domain.UnixMillis `json:"ts"`
	Payload  xpPayload         `json:"payload"`
}

type xpPayload struct {
	DeltaXP int `json:"deltaXp"`
}

type progressResponse struct {
	Level        int      `json:"level"`
	XP           int      `json:"xp"`
	Achievements []string `json:"achievements"`
}

type storeMetricsCollection struct {
	requestCount metric.Int64Counter
}

func setupStoreMetrics(meter metric.Meter) (storeMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("progressionstore/request_count")
	if err != nil {
		return storeMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	return storeMetricsCollection{
		requestCount: requestCount,
	}, nil
}

// Client for the progression service. XP submissions are not signed.
type Store struct {
	baseURL    string
	httpClient HttpClient

	metrics storeMetricsCollection
	tracer  trace.Tracer
}

func NewStore(baseURL string, httpClient HttpClient) (*Store, error) {
	const name = "liveops/progressionstore"

	metrics, err := setupStoreMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &Store{
		baseURL:    baseURL,
		httpClient: httpClient,

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

func (s *Store) SubmitXP(ctx context.Context, playerID string, deltaXP int, at time.Time) error {
	ctx, span := s.tracer.Start(ctx, "ProgressionStore.SubmitXP")
	defer span.End()

	body, err := json.Marshal(xpRequest{
		Type:     domain.EventXPGain,
		PlayerID: playerID,
		TS:       domain.UnixMillisOf(at),
		Payload:  xpPayload{DeltaXP: deltaXP},
	})
	if err != nil {
		err := fmt.Errorf("failed to marshal xp request: %w", err)
		reporting.Report(ctx, err)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/xp", bytes.NewReader(body))
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", constants.USER_AGENT)

	statusCode, data, err := s.do(ctx, "submit_xp", req)
	if err != nil {
		return err
	}

	if statusCode < 200 || statusCode >= 300 {
		err := fmt.Errorf("%w: progression service returned status code %d", domain.ErrDeliveryFailed, statusCode)
		reporting.Report(ctx, err, map[string]string{
			"statusCode": strconv.Itoa(statusCode),
			"data":       string(data),
		})
		return err
	}

	return nil
}

func (s *Store) GetProgress(ctx context.Context, playerID string) (domain.Progress, error) {
	ctx, span := s.tracer.Start(ctx, "ProgressionStore.GetProgress")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/player/"+url.PathEscape(playerID), nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return domain.Progress{}, err
	}
	req.Header.Set("User-Agent", constants.USER_AGENT)

	statusCode, data, err := s.do(ctx, "get_progress", req)
	if err != nil {
		return domain.Progress{}, err
	}

	progress, err := progressFromResponse(statusCode, data)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return domain.Progress{}, err
	} else if err != nil {
		reporting.Report(ctx, err, map[string]string{
			"statusCode": strconv.Itoa(statusCode),
			"data":       string(data),
		})
		return domain.Progress{}, err
	}

	return progress, nil
}

func (s *Store) do(ctx context.Context, operation string, req *http.Request) (int, []byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", "error"),
		))
		err := fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
		reporting.Report(ctx, err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	s.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", strconv.Itoa(resp.StatusCode)),
	))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err)
		return 0, nil, err
	}

	return resp.StatusCode, data, nil
}

func progressFromResponse(statusCode int, data []byte) (domain.Progress, error) {
	if statusCode == http.StatusNotFound {
		return domain.Progress{}, domain.ErrPlayerNotFound
	}
	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable || statusCode == http.StatusGatewayTimeout {
		return domain.Progress{}, fmt.Errorf("%w: progression service returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	}
	if statusCode != http.StatusOK {
		return domain.Progress{}, fmt.Errorf("progression service returned status code %d", statusCode)
	}

	var response progressResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return domain.Progress{}, fmt.Errorf("failed to parse progression response: %w", err)
	}

	// The service answers unknown players with an empty record
	if response.Level <= 0 {
		return domain.Progress{}, domain.ErrPlayerNotFound
	}

	achievements := make([]domain.AchievementID, 0, len(response.Achievements))
	for _, id := range response.Achievements {
		achievements = append(achievements, domain.AchievementID(id))
	}

	return domain.Progress{
		Level:        response.Level,
		XP:           max(response.XP, 0),
		Achievements: achievements,
	}, nil
}
