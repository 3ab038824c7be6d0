package gateway

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Amund211/liveops/internal/constants"
	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/logging"
	"github.com/Amund211/liveops/internal/ratelimiting"
	"github.com/Amund211/liveops/internal/reporting"
	"github.com/Amund211/liveops/internal/signing"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const dispatchMinOperationTime = 200 * time.Millisecond

//go:embed event.schema.json
var eventSchemaJSON string

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Signer interface {
	Sign(body []byte) signing.Signature
}

// Outcome of a single send. Delivery is at most once, a failed send is never retried.
type Delivery struct {
	IdempotencyKey string
	StatusCode     int
	Delivered      bool
}

type wireEvent struct {
	Type     domain.EventType   `json:"type"`
	PlayerID string             `json:"playerId"`
	TS       domain.UnixSeconds `json:"ts"`
	Payload  map[string]any     `json:"payload"`
}

type dispatcherMetricsCollection struct {
	eventCount metric.Int64Counter
}

func setupDispatcherMetrics(meter metric.Meter) (dispatcherMetricsCollection, error) {
	eventCount, err := meter.Int64Counter("gateway/event_count")
	if err != nil {
		return dispatcherMetricsCollection{}, fmt.Errorf("failed to create event count metric: %w", err)
	}

	return dispatcherMetricsCollection{
		eventCount: eventCount,
	}, nil
}

type Dispatcher struct {
	eventsURL  string
	httpClient HttpClient
	signer     Signer
	limiter    ratelimiting.RequestLimiter
	schema     *jsonschema.Schema
	nowFunc    func() time.Time

	keyMutex   sync.Mutex
	lastMillis domain.UnixMillis
	seq        uint64

	metrics dispatcherMetricsCollection
	tracer  trace.Tracer
}

func NewDispatcher(
	gatewayURL string,
	httpClient HttpClient,
	signer Signer,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) (*Dispatcher, error) {
	const name = "liveops/gateway/dispatcher"

	meter := otel.Meter(name)
	tracer := otel.Tracer(name)

	metrics, err := setupDispatcherMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	schema, err := jsonschema.CompileString("event.schema.json", eventSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile event schema: %w", err)
	}

	return &Dispatcher{
		eventsURL:  gatewayURL + "/events",
		httpClient: httpClient,
		signer:     signer,
		limiter:    ratelimiting.NewWindowLimiter(600, time.Minute, nowFunc, afterFunc),
		schema:     schema,
		nowFunc:    nowFunc,

		metrics: metrics,
		tracer:  tracer,
	}, nil
}

// Canonical wire form of the event. These exact bytes are signed and sent.
func (d *Dispatcher) encode(event domain.DomainEvent) ([]byte, error) {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	body, err := json.Marshal(wireEvent{
		Type:     event.Type,
		PlayerID: event.PlayerID,
		TS:       domain.UnixSecondsOf(event.OccurredAt),
		Payload:  payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal event: %w", domain.ErrInvalidEvent, err)
	}

	var document any
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal event: %w", domain.ErrInvalidEvent, err)
	}
	if err := d.schema.Validate(document); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
	}

	return body, nil
}

// Key from the last observed clock value, never moving backwards, plus a per-dispatcher counter
func (d *Dispatcher) idempotencyKey(eventType domain.EventType) string {
	d.keyMutex.Lock()
	defer d.keyMutex.Unlock()

	millis := max(domain.UnixMillisOf(d.nowFunc()), d.lastMillis)
	d.lastMillis = millis
	d.seq++

	return fmt.Sprintf("%s-%d-%d", eventType, millis, d.seq)
}

func (d *Dispatcher) Dispatch(ctx context.Context, event domain.DomainEvent) (Delivery, error) {
	ctx, span := d.tracer.Start(ctx, "Gateway.Dispatch")
	defer span.End()

	outcome := "failed"
	defer func() {
		d.metrics.eventCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", string(event.Type)),
			attribute.String("outcome", outcome),
		))
	}()

	body, err := d.encode(event)
	if err != nil {
		reporting.Report(ctx, err, map[string]string{"eventType": string(event.Type)})
		return Delivery{}, err
	}

	signature := d.signer.Sign(body)
	key := d.idempotencyKey(event.Type)
	delivery := Delivery{IdempotencyKey: key}

	span.SetAttributes(
		attribute.String("event.type", string(event.Type)),
		attribute.String("event.idempotency_key", key),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.eventsURL, bytes.NewReader(body))
	if err != nil {
		err := fmt.Errorf("%w: failed to create request: %w", domain.ErrDeliveryFailed, err)
		reporting.Report(ctx, err)
		return delivery, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set(signing.SignatureHeader, signature.Header())
	req.Header.Set("Idempotency-Key", key)

	var resp *http.Response
	var data []byte
	ran := d.limiter.Limit(ctx, dispatchMinOperationTime, func(ctx context.Context) {
		resp, err = d.httpClient.Do(req)
		if err != nil {
			err = fmt.Errorf("%w: failed to send request: %w", domain.ErrDeliveryFailed, err)
			return
		}

		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("%w: failed to read response body: %w", domain.ErrDeliveryFailed, err)
			return
		}
	})
	if !ran {
		outcome = "rate_limited"
		logging.FromContext(ctx).WarnContext(ctx, "Did not dispatch event due to rate limiting", "eventType", event.Type, "ctx_error", ctx.Err())
		return delivery, fmt.Errorf("%w: %w: too many events", domain.ErrDeliveryFailed, domain.ErrTemporarilyUnavailable)
	}

	if err != nil {
		reporting.Report(ctx, err, map[string]string{"eventType": string(event.Type), "idempotencyKey": key})
		return delivery, err
	}

	delivery.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusAccepted {
		err := fmt.Errorf("%w: gateway returned status code %d", domain.ErrDeliveryFailed, resp.StatusCode)
		reporting.Report(ctx, err, map[string]string{
			"eventType":      string(event.Type),
			"idempotencyKey": key,
			"statusCode":     strconv.Itoa(resp.StatusCode),
			"data":           string(data),
		})
		return delivery, err
	}

	outcome = "accepted"
	delivery.Delivered = true
	logging.FromContext(ctx).InfoContext(ctx, "Dispatched event", "eventType", event.Type, "idempotencyKey", key)

	return delivery, nil
}
