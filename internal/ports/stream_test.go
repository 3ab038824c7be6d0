package ports_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Amund211/liveops/internal/app"
	"github.com/Amund211/liveops/internal/ports"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type streamingSession struct {
	mockedSession

	snapshots    chan app.Snapshot
	subscribeErr error
	cancelled    chan struct{}
}

func (s *streamingSession) Subscribe(ctx context.Context) (<-chan app.Snapshot, func(), error) {
	if s.subscribeErr != nil {
		return nil, nil, s.subscribeErr
	}
	return s.snapshots, func() { close(s.cancelled) }, nil
}

type receivedStreamMessage struct {
	Type  string `json:"type"`
	State struct {
		PlayerID string `json:"playerId"`
		Clicker  struct {
			Score int `json:"score"`
		} `json:"clicker"`
	} `json:"state"`
}

func TestMakeStreamHandler(t *testing.T) {
	t.Parallel()

	allowedOrigins, err := ports.NewDomainSuffixes("localhost", "liveops.example.com")
	require.NoError(t, err)

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	startServer := func(t *testing.T, session ports.Session) string {
		t.Helper()
		server := httptest.NewServer(ports.MakeStreamHandler(session, allowedOrigins, testLogger))
		t.Cleanup(server.Close)
		return "ws" + strings.TrimPrefix(server.URL, "http")
	}

	newStreamingSession := func(t *testing.T) *streamingSession {
		return &streamingSession{
			mockedSession: mockedSession{t: t},
			snapshots:     make(chan app.Snapshot, 1),
			cancelled:     make(chan struct{}),
		}
	}

	readMessage := func(t *testing.T, conn *websocket.Conn) receivedStreamMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		messageType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, messageType)

		var message receivedStreamMessage
		require.NoError(t, json.Unmarshal(data, &message))
		return message
	}

	t.Run("pushes snapshots until the session ends", func(t *testing.T) {
		t.Parallel()

		session := newStreamingSession(t)
		url := startServer(t, session)

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		snapshot := newTestSnapshot()
		session.snapshots <- snapshot

		message := readMessage(t, conn)
		require.Equal(t, "state", message.Type)
		require.Equal(t, "player_1", message.State.PlayerID)
		require.Equal(t, 12, message.State.Clicker.Score)

		snapshot.Clicker.Score = 13
		session.snapshots <- snapshot

		message = readMessage(t, conn)
		require.Equal(t, 13, message.State.Clicker.Score)

		close(session.snapshots)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, _, err = conn.ReadMessage()
		require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error %v", err)

		select {
		case <-session.cancelled:
		case <-time.After(5 * time.Second):
			t.Fatal("subscription was not cancelled")
		}
	})

	t.Run("client disconnect cancels the subscription", func(t *testing.T) {
		t.Parallel()

		session := newStreamingSession(t)
		url := startServer(t, session)

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)

		session.snapshots <- newTestSnapshot()
		readMessage(t, conn)

		require.NoError(t, conn.Close())

		select {
		case <-session.cancelled:
		case <-time.After(5 * time.Second):
			t.Fatal("subscription was not cancelled")
		}
	})

	t.Run("session unavailable", func(t *testing.T) {
		t.Parallel()

		session := newStreamingSession(t)
		session.subscribeErr = app.ErrSessionNotStarted
		url := startServer(t, session)

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, _, err = conn.ReadMessage()
		require.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "unexpected error %v", err)
	})

	t.Run("allowed origin", func(t *testing.T) {
		t.Parallel()

		session := newStreamingSession(t)
		url := startServer(t, session)

		header := http.Header{}
		header.Set("Origin", "https://app.liveops.example.com")
		conn, _, err := websocket.DefaultDialer.Dial(url, header)
		require.NoError(t, err)
		defer conn.Close()

		session.snapshots <- newTestSnapshot()
		require.Equal(t, "state", readMessage(t, conn).Type)
	})

	t.Run("disallowed origin", func(t *testing.T) {
		t.Parallel()

		session := newStreamingSession(t)
		url := startServer(t, session)

		header := http.Header{}
		header.Set("Origin", "https://evil.example.org")
		conn, resp, err := websocket.DefaultDialer.Dial(url, header)
		if conn != nil {
			conn.Close()
		}
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
