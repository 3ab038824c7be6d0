package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Amund211/liveops/internal/logging"
	"github.com/Amund211/liveops/internal/reporting"
	"github.com/gorilla/websocket"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamPongTimeout  = 60 * time.Second
	streamPingInterval = 30 * time.Second
)

type streamMessage struct {
	Type  string        `json:"type"`
	State stateResponse `json:"state"`
}

// MakeStreamHandler pushes the session state over a websocket every time it changes
func MakeStreamHandler(
	session Session,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients don't send an origin
			return origin == "" || allowedOrigins.AnyMatch(origin)
		},
	}

	// The upgrade hijacks the connection, so the ResponseWriter must not be wrapped by the sentry handler
	middleware := buildMiddleware("stream", allowedOrigins, rootLogger, nil)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := reporting.AddHubToContext(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already written an error response
			logging.FromContext(ctx).InfoContext(ctx, "Failed to upgrade stream connection", "error", err.Error())
			return
		}
		defer conn.Close()

		snapshots, cancelSubscription, err := session.Subscribe(ctx)
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "Failed to subscribe to session", "error", err.Error())
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "session unavailable"), time.Now().Add(time.Second))
			return
		}
		defer cancelSubscription()

		metrics.streamClients.Add(ctx, 1)
		defer metrics.streamClients.Add(context.WithoutCancel(ctx), -1)

		logging.FromContext(ctx).InfoContext(ctx, "Stream client connected")

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		// Reader: the client sends nothing but control frames. A read error means it went away.
		_ = conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
		})
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(streamPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				logging.FromContext(ctx).InfoContext(ctx, "Stream client disconnected")
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
					return
				}
			case snapshot, ok := <-snapshots:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended"), time.Now().Add(time.Second))
					return
				}

				data, err := json.Marshal(streamMessage{Type: "state", State: snapshotToResponse(snapshot)})
				if err != nil {
					reporting.Report(ctx, fmt.Errorf("failed to marshal state: %w", err))
					return
				}

				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					logging.FromContext(ctx).InfoContext(ctx, "Failed to write to stream client", "error", err.Error())
					return
				}
			}
		}
	}

	return middleware(handler)
}
