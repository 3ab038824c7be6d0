package signing_test

import (
	"strings"
	"testing"

	"github.com/Amund211/liveops/internal/signing"
	"github.com/stretchr/testify/require"
)

func TestHMACSigner(t *testing.T) {
	t.Parallel()

	t.Run("known vector", func(t *testing.T) {
		t.Parallel()

		// RFC 4231 test case 2
		signer := signing.NewHMACSigner([]byte("Jefe"))
		signature := signer.Sign([]byte("what do ya want for nothing?"))

		require.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", signature.Hex())
		require.Equal(t, "sha256=5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", signature.Header())
	})

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()

		signer := signing.NewHMACSigner([]byte(strings.Repeat("k", 32)))
		body := []byte(`{"type":"clicker_click","playerId":"player_1","ts":1740830400,"payload":{}}`)

		require.Equal(t, signer.Sign(body), signer.Sign(body))
		require.NotEqual(t, signer.Sign(body), signer.Sign(append(body, ' ')))
	})

	t.Run("different secrets", func(t *testing.T) {
		t.Parallel()

		body := []byte("body")
		a := signing.NewHMACSigner([]byte("secret-a"))
		b := signing.NewHMACSigner([]byte("secret-b"))

		require.NotEqual(t, a.Sign(body), b.Sign(body))
	})

	t.Run("verify", func(t *testing.T) {
		t.Parallel()

		signer := signing.NewHMACSigner([]byte("Jefe"))
		body := []byte("what do ya want for nothing?")

		require.True(t, signer.Verify(body, signer.Sign(body).Header()))
		require.False(t, signer.Verify([]byte("tampered"), signer.Sign(body).Header()))
		require.False(t, signer.Verify(body, signer.Sign(body).Hex()))
		require.False(t, signer.Verify(body, "sha256=nothex"))
	})

	t.Run("empty secret panics", func(t *testing.T) {
		t.Parallel()

		require.Panics(t, func() {
			signing.NewHMACSigner(nil)
		})
	})
}

func TestParseHeader(t *testing.T) {
	t.Parallel()

	valid := "sha256=" + strings.Repeat("ab", 32)
	signature, err := signing.ParseHeader(valid)
	require.NoError(t, err)
	require.Len(t, signature, 32)
	require.Equal(t, valid, signature.Header())

	for _, header := range []string{"", "sha1=abcd", "sha256=zz", "sha256=abcd"} {
		t.Run(header, func(t *testing.T) {
			t.Parallel()

			_, err := signing.ParseHeader(header)
			require.ErrorIs(t, err, signing.ErrMalformedSignature)
		})
	}
}
