package leaderboard

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

type Route string

const (
	// Leaderboard service: GET /board?limit=N -> {"entries": [...]}
	RouteBoard Route = "board"
	// Gateway: GET /leaderboard?window=daily&limit=N -> [...]
	RouteWindow Route = "window"
)

type entryResponse struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	Level      int     `json:"level"`
	UpdatedAt  string  `json:"updatedAt"`
}

type boardResponse struct {
	Entries []entryResponse `json:"entries"`
}

type rankResponse struct {
	Rank *int `json:"rank"`
}

type leaderboardMetricsCollection struct {
	requestCount metric.Int64Counter
}

func setupLeaderboardMetrics(meter metric.Meter) (leaderboardMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("leaderboard/request_count")
	if err != nil {
		return leaderboardMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	return leaderboardMetricsCollection{
		requestCount: requestCount,
	}, nil
}

type Client struct {
	baseURL    string
	route      Route
	httpClient HttpClient

	metrics leaderboardMetricsCollection
	tracer  trace.Tracer
}

func NewClient(baseURL string, route Route, httpClient HttpClient) (*Client, error) {
	const name = "liveops/leaderboard"

	if route != RouteBoard && route != RouteWindow {
		return nil, fmt.Errorf("unknown leaderboard route %q", route)
	}

	metrics, err := setupLeaderboardMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &Client{
		baseURL:    baseURL,
		route:      route,
		httpClient: httpClient,

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

func (c *Client) topURL(limit int) string {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	if c.route == RouteWindow {
		query.Set("window", "daily")
		return c.baseURL + "/leaderboard?" + query.Encode()
	}
	return c.baseURL + "/board?" + query.Encode()
}

func (c *Client) GetTop(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	ctx, span := c.tracer.Start(ctx, "Leaderboard.GetTop")
	defer span.End()

	statusCode, data, err := c.get(ctx, "top", c.topURL(limit))
	if err != nil {
		return nil, err
	}

	if statusCode != http.StatusOK {
		err := fmt.Errorf("leaderboard returned status code %d", statusCode)
		if isTemporary(statusCode) {
			err = fmt.Errorf("%w: %w", domain.ErrTemporarilyUnavailable, err)
		}
		reporting.Report(ctx, err, map[string]string{"data": string(data)})
		return nil, err
	}

	entries, err := entriesFromResponse(data)
	if err != nil {
		reporting.Report(ctx, err, map[string]string{"data": string(data)})
		return nil, err
	}

	return entries, nil
}

func (c *Client) GetRank(ctx context.Context, playerID string) (int, error) {
	ctx, span := c.tracer.Start(ctx, "Leaderboard.GetRank")
	defer span.End()

	statusCode, data, err := c.get(ctx, "rank", c.baseURL+"/player/"+url.PathEscape(playerID)+"/rank")
	if err != nil {
		return 0, err
	}

	rank, err := rankFromResponse(statusCode, data)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return 0, err
	} else if err != nil {
		reporting.Report(ctx, err, map[string]string{
			"statusCode": strconv.Itoa(statusCode),
			"data":       string(data),
		})
		return 0, err
	}

	return rank, nil
}

func (c *Client) get(ctx context.Context, operation string, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return 0, nil, err
	}
	req.Header.Set("User-Agent", constants.USER_AGENT)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", "error"),
		))
		err := fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
		reporting.Report(ctx, err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	c.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(
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

func isTemporary(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// The gateway answers with a bare array, the leaderboard service wraps it in {"entries": [...]}
func entriesFromResponse(data []byte) ([]domain.LeaderboardEntry, error) {
	trimmed := bytes.TrimSpace(data)

	var raw []entryResponse
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse leaderboard array: %w", err)
		}
	} else {
		var board boardResponse
		if err := json.Unmarshal(trimmed, &board); err != nil {
			return nil, fmt.Errorf("failed to parse leaderboard object: %w", err)
		}
		raw = board.Entries
	}

	entries := make([]domain.LeaderboardEntry, 0, len(raw))
	for i, entry := range raw {
		rank := entry.Rank
		if rank <= 0 {
			rank = i + 1
		}
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:   entry.PlayerID,
			PlayerName: entry.PlayerName,
			Score:      int64(entry.Score),
			Rank:       rank,
			Level:      entry.Level,
			UpdatedAt:  parseTimestamp(entry.UpdatedAt),
		})
	}

	return entries, nil
}

func rankFromResponse(statusCode int, data []byte) (int, error) {
	if statusCode == http.StatusNotFound {
		return 0, domain.ErrPlayerNotFound
	}
	if isTemporary(statusCode) {
		return 0, fmt.Errorf("%w: leaderboard returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	}
	if statusCode != http.StatusOK {
		return 0, fmt.Errorf("leaderboard returned status code %d", statusCode)
	}

	var response rankResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return 0, fmt.Errorf("failed to parse rank response: %w", err)
	}
	if response.Rank == nil || *response.Rank <= 0 {
		return 0, domain.ErrPlayerNotFound
	}

	return *response.Rank, nil
}

// Best effort, a row with an unreadable timestamp is still worth showing
func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", time.DateOnly} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
