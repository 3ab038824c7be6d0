package health

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Amund211/liveops/internal/constants"
	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const checkTimeout = 5 * time.Second

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Checker struct {
	httpClient HttpClient
	nowFunc    func() time.Time

	online metric.Int64Gauge
	tracer trace.Tracer
}

func NewChecker(httpClient HttpClient, nowFunc func() time.Time) (*Checker, error) {
	const name = "liveops/health"

	online, err := otel.Meter(name).Int64Gauge("health/online")
	if err != nil {
		return nil, fmt.Errorf("failed to create online gauge: %w", err)
	}

	return &Checker{
		httpClient: httpClient,
		nowFunc:    nowFunc,

		online: online,
		tracer: otel.Tracer(name),
	}, nil
}

// Probe <base>/healthz of every service. A service is online iff it answers 2xx within the timeout.
func (c *Checker) Check(ctx context.Context, services map[domain.ServiceName]string) []domain.ServiceStatus {
	ctx, span := c.tracer.Start(ctx, "Health.Check")
	defer span.End()

	statuses := make([]domain.ServiceStatus, 0, len(services))
	var mutex sync.Mutex
	var wg sync.WaitGroup
	for service, baseURL := range services {
		wg.Go(func() {
			status := c.checkOne(ctx, service, baseURL)

			mutex.Lock()
			defer mutex.Unlock()
			statuses = append(statuses, status)
		})
	}
	wg.Wait()

	slices.SortFunc(statuses, func(a, b domain.ServiceStatus) int {
		return slices.Index(domain.AllServices, a.Service) - slices.Index(domain.AllServices, b.Service)
	})

	return statuses
}

func (c *Checker) checkOne(ctx context.Context, service domain.ServiceName, baseURL string) (status domain.ServiceStatus) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	status = domain.ServiceStatus{Service: service}
	defer func() {
		status.CheckedAt = c.nowFunc()

		value := int64(0)
		if status.Online {
			value = 1
		}
		c.online.Record(ctx, value, metric.WithAttributes(attribute.String("service", string(service))))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		status.Detail = "invalid url"
		return status
	}
	req.Header.Set("User-Agent", constants.USER_AGENT)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.FromContext(ctx).InfoContext(ctx, "Health check failed", "service", service, "error", err.Error())
		status.Detail = "unreachable"
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status.Detail = fmt.Sprintf("status %d", resp.StatusCode)
		return status
	}

	status.Online = true
	return status
}
