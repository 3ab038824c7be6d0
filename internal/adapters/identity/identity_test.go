package identity_test

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/Amund211/liveops/internal/adapters/identity"
	"github.com/Amund211/liveops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var playerIDRx = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)

func TestPlayerIDFromIP(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"127.0.0.1":              "player_127_0_0_1",
		"  10.1.2.3 ":            "player_10_1_2_3",
		"::1":                    "player___1",
		"2001:db8::ff00:42:8329": "player_2001_db8__ff00_42_8329",
		"::ffff:192.168.0.1":     "player___ffff_192_168_0_1",
	}
	for ip, want := range cases {
		t.Run(ip, func(t *testing.T) {
			t.Parallel()

			playerID, err := identity.PlayerIDFromIP(ip)
			require.NoError(t, err)
			require.Equal(t, want, playerID)
			require.Regexp(t, playerIDRx, playerID)
		})
	}

	_, err := identity.PlayerIDFromIP(" ")
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("online", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/client-ip", r.URL.Path)
			_, _ = w.Write([]byte(`{"ip":"192.168.1.7"}`))
		}))
		t.Cleanup(server.Close)

		id, err := identity.NewResolver(server.URL, http.DefaultClient).Resolve(t.Context())
		require.NoError(t, err)
		require.Equal(t, domain.Identity{PlayerID: "player_192_168_1_7", Offline: false}, id)
	})

	t.Run("gateway down", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := identity.NewResolver(server.URL, http.DefaultClient).Resolve(t.Context())
		require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
	})

	t.Run("bad response", func(t *testing.T) {
		t.Parallel()

		for _, body := range []string{`{"ip":""}`, `not json`} {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			t.Cleanup(server.Close)

			_, err := identity.NewResolver(server.URL, http.DefaultClient).Resolve(t.Context())
			require.Error(t, err, body)
		}
	})
}

func TestNewOfflineIdentity(t *testing.T) {
	t.Parallel()

	a := identity.NewOfflineIdentity()
	b := identity.NewOfflineIdentity()

	require.True(t, a.Offline)
	require.Regexp(t, `^offline_[0-9a-f]{12}$`, a.PlayerID)
	require.Regexp(t, playerIDRx, a.PlayerID)
	require.NotEqual(t, a.PlayerID, b.PlayerID)
}
