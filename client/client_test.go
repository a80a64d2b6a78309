package client

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/openkitx403/openkitx403/authz"
	"github.com/openkitx403/openkitx403/challenge"
	"github.com/openkitx403/openkitx403/core"
)

func TestEd25519SignerRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	s, err := NewEd25519Signer(priv)
	require.NoError(t, err)

	assert.Equal(t, []byte(pub), s.PublicKey())
	assert.True(t, HasPublicKey(s))
	assert.True(t, CanSignBytes(s))

	sig, err := s.SignBytes(context.Background(), []byte("hello"))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, []byte("hello"), sig))
}

func TestNewEd25519SignerRejectsShortKey(t *testing.T) {
	_, err := NewEd25519Signer([]byte("too-short"))
	require.Error(t, err)
}

func TestParseChallengeHeaderRoundTrip(t *testing.T) {
	clk := clock.NewFake()
	cfg := core.NewConfig("issuer.example", "https://aud.example", core.WithTTL(60*time.Second))

	c, header, err := challenge.Build(clk, "GET", "/resource", cfg, map[string]any{})
	require.NoError(t, err)

	parsed, err := ParseChallengeHeader(header)
	require.NoError(t, err)
	assert.Equal(t, c, parsed)
}

func TestRespondBuildsParsableAuthorizationHeader(t *testing.T) {
	clk := clock.NewFake()
	cfg := core.NewConfig("issuer.example", "https://aud.example", core.WithTTL(60*time.Second))
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := NewEd25519Signer(priv)
	require.NoError(t, err)

	c, _, err := challenge.Build(clk, "GET", "/resource", cfg, nil)
	require.NoError(t, err)

	header, err := Respond(context.Background(), c, signer, clk.Now(), "GET:/resource")
	require.NoError(t, err)

	auth, err := authz.Parse(header)
	require.NoError(t, err)
	assert.Equal(t, "GET:/resource", auth.Bind)
	assert.NotEmpty(t, auth.Addr)
	assert.NotEmpty(t, auth.Sig)
}
