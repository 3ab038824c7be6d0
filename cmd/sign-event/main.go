package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/liveops/internal/adapters/gateway"
	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/signing"
	"github.com/joho/godotenv"
)

type inputEvent struct {
	Type     domain.EventType `json:"type"`
	PlayerID string           `json:"playerId"`
	// Seconds since the epoch, defaults to now
	TS      *int64         `json:"ts"`
	Payload map[string]any `json:"payload"`
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Sign an event body the way the client does. With -send the event is dispatched to the gateway.
//
//	sign-event event.json
//	echo '{"type":"xp_gain","playerId":"player_1","payload":{"deltaXp":5}}' | sign-event -send -
func main() {
	send := flag.Bool("send", false, "dispatch the event to the gateway instead of printing the signature")
	gatewayURL := flag.String("gateway", "http://localhost:8080", "gateway base url used with -send")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("LIVEOPS_HMAC_SECRET")
	if secret == "" {
		log.Fatal("No LIVEOPS_HMAC_SECRET provided")
	}
	signer := signing.NewHMACSigner([]byte(secret))

	data, err := readInput(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read event: %v", err)
	}

	var event inputEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Fatalf("Input is not an event: %v", err)
	}

	if !*send {
		// The signature covers the exact bytes, so sign the input as-is
		fmt.Printf("%s: %s\n", signing.SignatureHeader, signer.Sign(data).Header())
		fmt.Printf("Idempotency-Key: %s-%d-1\n", event.Type, domain.UnixMillisOf(time.Now()))
		return
	}

	occurredAt := time.Now()
	if event.TS != nil {
		occurredAt = domain.UnixSeconds(*event.TS).Time()
	}

	dispatcher, err := gateway.NewDispatcher(*gatewayURL, &http.Client{Timeout: 10 * time.Second}, signer, time.Now, time.After)
	if err != nil {
		log.Fatalf("Failed to create dispatcher: %v", err)
	}

	delivery, err := dispatcher.Dispatch(
		context.Background(),
		domain.NewEvent(event.Type, event.PlayerID, occurredAt, event.Payload),
	)
	if err != nil {
		log.Fatalf("Failed to dispatch event (status %d, key %s): %v", delivery.StatusCode, delivery.IdempotencyKey, err)
	}

	fmt.Printf("Delivered %s (status %d, Idempotency-Key: %s)\n", event.Type, delivery.StatusCode, delivery.IdempotencyKey)
}
