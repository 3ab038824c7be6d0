package ports_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Amund211/liveops/internal/app"
	"github.com/Amund211/liveops/internal/domain"
	"github.com/Amund211/liveops/internal/minigame"
	"github.com/Amund211/liveops/internal/ports"
	"github.com/Amund211/liveops/internal/scheduler"
	"github.com/stretchr/testify/require"
)

type mockedSession struct {
	t *testing.T

	snapshot    app.Snapshot
	snapshotErr error

	clickDelta int
	purchased  bool
	memory     minigame.MemoryResult
	reaction   minigame.ReactionResult
	err        error

	expectedAnswer string
	expectedView   string

	called []string
}

func (m *mockedSession) Snapshot(ctx context.Context) (app.Snapshot, error) {
	return m.snapshot, m.snapshotErr
}

func (m *mockedSession) Subscribe(ctx context.Context) (<-chan app.Snapshot, func(), error) {
	m.t.Helper()
	m.t.Fatal("Subscribe should not be called by action handlers")
	return nil, nil, nil
}

func (m *mockedSession) Click(ctx context.Context) (int, error) {
	m.called = append(m.called, "click")
	return m.clickDelta, m.err
}

func (m *mockedSession) BuyUpgrade(ctx context.Context) (bool, error) {
	m.called = append(m.called, "upgrade")
	return m.purchased, m.err
}

func (m *mockedSession) StartMemory(ctx context.Context) error {
	m.called = append(m.called, "start_memory")
	return m.err
}

func (m *mockedSession) SubmitMemory(ctx context.Context, answer string) (minigame.MemoryResult, error) {
	m.t.Helper()
	require.Equal(m.t, m.expectedAnswer, answer)
	m.called = append(m.called, "submit_memory")
	return m.memory, m.err
}

func (m *mockedSession) StartReaction(ctx context.Context) error {
	m.called = append(m.called, "start_reaction")
	return m.err
}

func (m *mockedSession) HitReaction(ctx context.Context) (minigame.ReactionResult, error) {
	m.called = append(m.called, "hit_reaction")
	return m.reaction, m.err
}

func (m *mockedSession) SetView(ctx context.Context, view string) error {
	m.t.Helper()
	require.Equal(m.t, m.expectedView, view)
	m.called = append(m.called, "set_view")
	return m.err
}

var _ ports.Session = (*mockedSession)(nil)

func newTestSnapshot() app.Snapshot {
	rank := 4
	return app.Snapshot{
		PlayerID:  "player_1",
		View:      app.ViewGames,
		Player:    domain.PlayerState{ID: "player_1", Level: 2, XP: 30, TotalScore: 120, Achievements: []domain.AchievementID{domain.AchievementClicker100}},
		Progress:  0.25,
		Threshold: 120,
		Clicker:   domain.ClickerState{Score: 12, ClickCount: 12, Multiplier: 1, UpgradeCost: 50},
		Memory:    app.MemoryView{Level: 1, Phase: domain.MemoryIdle},
		Reaction: app.ReactionView{
			BestTime: 180 * time.Millisecond,
			HasBest:  true,
			Attempts: 1,
			Phase:    domain.ReactionIdle,
		},
		Dashboard: app.DashboardView{GamesPlayed: 14, TotalXPGained: 150, Rank: &rank},
	}
}

type decodedResponse struct {
	Success bool            `json:"success"`
	Cause   string          `json:"cause"`
	Result  json.RawMessage `json:"result"`
	State   *struct {
		PlayerID string `json:"playerId"`
		View     string `json:"view"`
		Player   struct {
			Level        int      `json:"level"`
			XP           int      `json:"xp"`
			Threshold    int      `json:"threshold"`
			Achievements []string `json:"achievements"`
		} `json:"player"`
		Reaction struct {
			BestTimeMs    *int64 `json:"bestTimeMs"`
			AverageTimeMs *int64 `json:"averageTimeMs"`
			Phase         string `json:"phase"`
		} `json:"reaction"`
		Memory struct {
			Phase string `json:"phase"`
		} `json:"memory"`
		Dashboard struct {
			Rank *int `json:"rank"`
		} `json:"dashboard"`
	} `json:"state"`
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) decodedResponse {
	t.Helper()
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response decodedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestGameHandlers(t *testing.T) {
	t.Parallel()

	allowedOrigins, err := ports.NewDomainSuffixes("localhost", "liveops.example.com")
	require.NoError(t, err)

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	noopMiddleware := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			h(w, r)
		}
	}

	newSession := func(t *testing.T) *mockedSession {
		return &mockedSession{t: t, snapshot: newTestSnapshot()}
	}

	t.Run("get state", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		handler := ports.MakeGetStateHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/state", nil))

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeResponse(t, w)
		require.True(t, response.Success)
		require.NotNil(t, response.State)
		require.Equal(t, "player_1", response.State.PlayerID)
		require.Equal(t, "games", response.State.View)
		require.Equal(t, 2, response.State.Player.Level)
		require.Equal(t, 120, response.State.Player.Threshold)
		require.Equal(t, []string{string(domain.AchievementClicker100)}, response.State.Player.Achievements)
		require.Equal(t, "idle", response.State.Memory.Phase)
		require.NotNil(t, response.State.Reaction.BestTimeMs)
		require.Equal(t, int64(180), *response.State.Reaction.BestTimeMs)
		require.Nil(t, response.State.Reaction.AverageTimeMs)
		require.NotNil(t, response.State.Dashboard.Rank)
		require.Equal(t, 4, *response.State.Dashboard.Rank)
	})

	t.Run("get state before start", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.snapshotErr = app.ErrSessionNotStarted
		handler := ports.MakeGetStateHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/state", nil))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"session not started"}`, w.Body.String())
	})

	t.Run("click", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.clickDelta = 2
		handler := ports.MakeClickHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/clicker/click", nil))

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeResponse(t, w)
		require.True(t, response.Success)
		require.JSONEq(t, `{"deltaScore":2}`, string(response.Result))
		require.NotNil(t, response.State)
		require.Equal(t, []string{"click"}, session.called)
	})

	t.Run("buy upgrade without enough score", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.purchased = false
		handler := ports.MakeBuyUpgradeHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/clicker/upgrade", nil))

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeResponse(t, w)
		require.True(t, response.Success)
		require.JSONEq(t, `{"purchased":false}`, string(response.Result))
	})

	t.Run("start memory while busy", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.err = fmt.Errorf("could not start: %w", domain.ErrGameBusy)
		handler := ports.MakeStartMemoryHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/memory/start", nil))

		require.Equal(t, http.StatusConflict, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"game busy"}`, w.Body.String())
	})

	t.Run("submit memory", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.expectedAnswer = "1234"
		session.memory = minigame.MemoryResult{Correct: true, Level: 1, Score: 10}
		handler := ports.MakeSubmitMemoryHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/memory/submit", strings.NewReader(`{"answer":"1234"}`))
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeResponse(t, w)
		require.True(t, response.Success)
		require.JSONEq(t, `{"correct":true,"level":1,"score":10}`, string(response.Result))
		require.Equal(t, []string{"submit_memory"}, session.called)
	})

	t.Run("submit memory without sequence", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.expectedAnswer = "1"
		session.err = domain.ErrNoSequence
		handler := ports.MakeSubmitMemoryHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/memory/submit", strings.NewReader(`{"answer":"1"}`))
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusConflict, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"no sequence awaiting input"}`, w.Body.String())
	})

	for _, body := range []string{
		``,
		`not json`,
		`{"answer":1234}`,
		`{"answer":"1","extra":true}`,
	} {
		t.Run(fmt.Sprintf("submit memory with invalid body %q", body), func(t *testing.T) {
			t.Parallel()

			session := newSession(t)
			handler := ports.MakeSubmitMemoryHandler(session, allowedOrigins, testLogger, noopMiddleware)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/memory/submit", strings.NewReader(body))
			handler.ServeHTTP(w, req)

			require.Equal(t, http.StatusBadRequest, w.Code)
			require.JSONEq(t, `{"success":false,"cause":"invalid request body"}`, w.Body.String())
			require.Empty(t, session.called)
		})
	}

	t.Run("start reaction", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		handler := ports.MakeStartReactionHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/reaction/start", nil))

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeResponse(t, w)
		require.True(t, response.Success)
		require.Equal(t, []string{"start_reaction"}, session.called)
	})

	t.Run("hit reaction", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.reaction = minigame.ReactionResult{Time: 212 * time.Millisecond, NewBest: true, XP: 12}
		handler := ports.MakeHitReactionHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/reaction/hit", nil))

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeResponse(t, w)
		require.True(t, response.Success)
		require.JSONEq(t, `{"reactionTimeMs":212,"newBest":true,"xp":12}`, string(response.Result))
	})

	t.Run("hit reaction too early", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.err = domain.ErrNotArmed
		handler := ports.MakeHitReactionHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/reaction/hit", nil))

		require.Equal(t, http.StatusConflict, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"reaction target not shown"}`, w.Body.String())
	})

	t.Run("set view", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.expectedView = "leaderboard"
		handler := ports.MakeSetViewHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/view", strings.NewReader(`{"view":"leaderboard"}`))
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeResponse(t, w)
		require.True(t, response.Success)
		require.Equal(t, []string{"set_view"}, session.called)
	})

	t.Run("set invalid view", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.expectedView = "settings"
		session.err = fmt.Errorf("%w: settings", app.ErrInvalidView)
		handler := ports.MakeSetViewHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/view", strings.NewReader(`{"view":"settings"}`))
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"invalid view"}`, w.Body.String())
	})

	t.Run("action after stop", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.err = scheduler.ErrStopped
		handler := ports.MakeClickHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/clicker/click", nil))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"session stopped"}`, w.Body.String())
	})

	t.Run("unexpected error", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.err = fmt.Errorf("something broke")
		handler := ports.MakeClickHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/clicker/click", nil))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"internal server error"}`, w.Body.String())
	})

	t.Run("state is omitted when the snapshot fails", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		session.clickDelta = 1
		session.snapshotErr = scheduler.ErrStopped
		handler := ports.MakeClickHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/clicker/click", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"result":{"deltaScore":1}}`, w.Body.String())
	})

	t.Run("cors headers for allowed origin", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		handler := ports.MakeGetStateHandler(session, allowedOrigins, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		handler := ports.MakeClickHandler(session, allowedOrigins, testLogger, noopMiddleware)

		var limited *httptest.ResponseRecorder
		for range 500 {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/clicker/click", nil)
			req.RemoteAddr = "203.0.113.7:4321"
			handler.ServeHTTP(w, req)
			if w.Code == http.StatusTooManyRequests {
				limited = w
				break
			}
			require.Equal(t, http.StatusOK, w.Code)
		}

		require.NotNil(t, limited)
		require.JSONEq(t, `{"success":false,"cause":"rate limit exceeded"}`, limited.Body.String())
	})
}

func TestMakeHealthzHandler(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	ports.MakeHealthzHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"success":true}`, w.Body.String())
}
