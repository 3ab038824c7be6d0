package reporting

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	t.Run("connection reset by peer", func(t *testing.T) {
		t.Parallel()

		err := `gateway: failed to send request: Post "http://gateway.internal/events": read tcp [dead:beef:feb1:d745::c001]:64079->[dead:beef::6811:112a]:8080: read: connection reset by peer`
		want := `gateway: failed to send request: Post "http://gateway.internal/events": read tcp <host>-><host>: read: connection reset by peer`
		require.Equal(t, want, sanitizeError(err))
	})

	t.Run("ipv4 hosts", func(t *testing.T) {
		t.Parallel()

		err := `dial tcp 10.0.0.12:8082: connect: connection refused`
		want := `dial tcp <host>: connect: connection refused`
		require.Equal(t, want, sanitizeError(err))
	})

	t.Run("misc ipv6", func(t *testing.T) {
		t.Parallel()

		ips := []string{
			`1:2:3:4:5:6:7:8`,
			`1::`,
			`1:2:3:4:5:6:7::`,
			`1::8`,
			`1:2:3:4:5::7:8`,
			`1:2:3::5:6:7:8`,
			`::2:3:4:5:6:7:8`,
			`::8`,
			`::`,
		}
		for _, ip := range ips {
			t.Run(ip, func(t *testing.T) {
				t.Parallel()

				require.Equal(t, "<host>", sanitizeError(fmt.Sprintf("[%s]:1234", ip)))
			})
		}
	})

	t.Run("player ids", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			error string
			want  string
		}{
			{
				error: `failed to send request: Get "http://localhost:8082/player/player_192_168_1_7/rank": context deadline exceeded`,
				want:  `failed to send request: Get "http://localhost:8082/player/<player>/rank": context deadline exceeded`,
			},
			{
				error: `failed to send request: Get "http://localhost:8083/progress/offline_3f2a9c1b7d4e": context deadline exceeded`,
				want:  `failed to send request: Get "http://localhost:8083/progress/<player>": context deadline exceeded`,
			},
			{
				// Don't match inside words
				error: `multiplayer_mode is not supported`,
				want:  `multiplayer_mode is not supported`,
			},
		}
		for _, tc := range cases {
			t.Run(tc.error, func(t *testing.T) {
				t.Parallel()

				require.Equal(t, tc.want, sanitizeError(tc.error))
			})
		}
	})

	t.Run("signatures and idempotency keys", func(t *testing.T) {
		t.Parallel()

		err := `gateway rejected event clicker_click-1740830400123-17 with signature sha256=5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843`
		want := `gateway rejected event <idempotency-key> with signature sha256=<signature>`
		require.Equal(t, want, sanitizeError(err))
	})
}
