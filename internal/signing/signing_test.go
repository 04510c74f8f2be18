// Package signing_test tests signed media URL minting and verification.
package signing_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/audiopanel/adstudy/internal/signing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenFromURL(t *testing.T, signedURL string) string {
	t.Helper()

	parsed, err := url.Parse(signedURL)
	require.NoError(t, err)

	return parsed.Query().Get("token")
}

func TestSignVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	signer, err := signing.New("test-secret", "https://study.example.org")
	require.NoError(t, err)

	signedURL, err := signer.Sign("P1.mp3", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signedURL, "https://study.example.org/media/P1.mp3?token="))

	require.NoError(t, signer.Verify("P1.mp3", tokenFromURL(t, signedURL)))
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	t.Parallel()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	signer, err := signing.New("test-secret", "")
	require.NoError(t, err)
	signer.WithClock(func() time.Time { return current })

	signedURL, err := signer.Sign("P1.mp3", 10*time.Minute)
	require.NoError(t, err)

	token := tokenFromURL(t, signedURL)
	require.NoError(t, signer.Verify("P1.mp3", token))

	current = current.Add(11 * time.Minute)
	require.ErrorIs(t, signer.Verify("P1.mp3", token), signing.ErrInvalidToken)
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	t.Parallel()

	signer, err := signing.New("test-secret", "")
	require.NoError(t, err)

	signedURL, err := signer.Sign("P1.mp3", 10*time.Minute)
	require.NoError(t, err)

	err = signer.Verify("P2.mp3", tokenFromURL(t, signedURL))
	require.ErrorIs(t, err, signing.ErrKeyMismatch)
}

func TestVerify_RejectsForeignSignature(t *testing.T) {
	t.Parallel()

	signerA, err := signing.New("secret-a", "")
	require.NoError(t, err)

	signerB, err := signing.New("secret-b", "")
	require.NoError(t, err)

	signedURL, err := signerA.Sign("P1.mp3", 10*time.Minute)
	require.NoError(t, err)

	err = signerB.Verify("P1.mp3", tokenFromURL(t, signedURL))
	require.ErrorIs(t, err, signing.ErrInvalidToken)
}

func TestNew_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := signing.New("", "")
	require.ErrorIs(t, err, signing.ErrSecretEmpty)
}
