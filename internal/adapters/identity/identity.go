package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/Amund211/liveops/internal/constants"
	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/reporting"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var nonIdentifierRx = regexp.MustCompile(`[^a-zA-Z0-9]`)

type clientIPResponse struct {
	IP string `json:"ip"`
}

// Derives the player id from the address the gateway sees us connecting from
type Resolver struct {
	gatewayURL string
	httpClient HttpClient

	tracer trace.Tracer
}

func NewResolver(gatewayURL string, httpClient HttpClient) *Resolver {
	return &Resolver{
		gatewayURL: gatewayURL,
		httpClient: httpClient,

		tracer: otel.Tracer("liveops/identity"),
	}
}

func (r *Resolver) Resolve(ctx context.Context) (domain.Identity, error) {
	ctx, span := r.tracer.Start(ctx, "Identity.Resolve")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.gatewayURL+"/client-ip", nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return domain.Identity{}, err
	}
	req.Header.Set("User-Agent", constants.USER_AGENT)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Expected when running offline, so don't report
		return domain.Identity{}, fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("gateway returned status code %d", resp.StatusCode)
		reporting.Report(ctx, err, map[string]string{
			"statusCode": strconv.Itoa(resp.StatusCode),
			"data":       string(data),
		})
		return domain.Identity{}, err
	}

	var response clientIPResponse
	if err := json.Unmarshal(data, &response); err != nil {
		err := fmt.Errorf("failed to parse client ip response: %w", err)
		reporting.Report(ctx, err, map[string]string{"data": string(data)})
		return domain.Identity{}, err
	}

	playerID, err := PlayerIDFromIP(response.IP)
	if err != nil {
		reporting.Report(ctx, err, map[string]string{"data": string(data)})
		return domain.Identity{}, err
	}

	return domain.Identity{PlayerID: playerID, Offline: false}, nil
}

func PlayerIDFromIP(ip string) (string, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", fmt.Errorf("empty client ip")
	}
	return "player_" + nonIdentifierRx.ReplaceAllString(ip, "_"), nil
}

// Identity used when the gateway can't be reached
func NewOfflineIdentity() domain.Identity {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return domain.Identity{PlayerID: "offline_" + id[:12], Offline: true}
}
