package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/openkitx403/openkitx403/challenge"
	"github.com/openkitx403/openkitx403/client"
	"github.com/openkitx403/openkitx403/core"
	"github.com/openkitx403/openkitx403/encoding"
	"github.com/openkitx403/openkitx403/log"
	"github.com/openkitx403/openkitx403/probs"
	"github.com/openkitx403/openkitx403/replay"
	"github.com/openkitx403/openkitx403/verify"
)

func testMiddleware(t *testing.T) (*Middleware, clock.FakeClock, core.Config) {
	t.Helper()
	clk := clock.NewFake()
	store, err := replay.NewLRU(clk, replay.DefaultMaxEntries)
	require.NoError(t, err)
	cfg := core.NewConfig("issuer.example", "https://aud.example",
		core.WithTTL(60*time.Second),
		core.WithReplayStore(store),
	)
	v := verify.New(cfg, clk, nil)
	m := NewMiddleware(cfg, clk, v, nil)
	return m, clk, cfg
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	m, _, _ := testMiddleware(t)
	called := false
	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest("GET", "/resource", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	var body probs.ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "wallet_auth_required", body.Error)
}

func TestRequireAuthAcceptsValidProof(t *testing.T) {
	m, clk, cfg := testMiddleware(t)
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	c, _, err := challenge.Build(clk, "GET", "/resource", cfg, nil)
	require.NoError(t, err)

	signingString, err := challenge.SigningString(c)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, signingString)
	j, err := encoding.CanonicalJSON(c)
	require.NoError(t, err)

	header := fmt.Sprintf(
		`OpenKitx403 addr="%s", sig="%s", challenge="%s", ts="%s", nonce="n", bind="GET:/resource"`,
		encoding.EncodeBase58(pub), encoding.EncodeBase58(sig), encoding.EncodeB64URL(j), encoding.FormatTimestamp(clk.Now()),
	)

	var gotAddr string
	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddr, _ = AddressFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/resource", nil)
	req.Header.Set("Authorization", header)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, encoding.EncodeBase58(pub), gotAddr)
}

// failingReplayStore always errors, simulating an unreachable replay
// backend so the middleware's internal-error audit-logging path runs.
type failingReplayStore struct{}

func (failingReplayStore) Check(ctx context.Context, key string) (bool, error) {
	return false, fmt.Errorf("connection refused")
}

func (failingReplayStore) Store(ctx context.Context, key string, ttl time.Duration) error {
	return fmt.Errorf("connection refused")
}

func TestRequireAuthAuditLogsInternalReplayStoreFailure(t *testing.T) {
	clk := clock.NewFake()
	cfg := core.NewConfig("issuer.example", "https://aud.example",
		core.WithTTL(60*time.Second),
		core.WithReplayStore(failingReplayStore{}),
	)
	v := verify.New(cfg, clk, nil)

	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := log.New(log.Config{Level: log.InfoLevel, Output: logPath})
	require.NoError(t, err)

	m := NewMiddleware(cfg, clk, v, logger)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	c, _, err := challenge.Build(clk, "GET", "/resource", cfg, nil)
	require.NoError(t, err)
	signingString, err := challenge.SigningString(c)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, signingString)
	j, err := encoding.CanonicalJSON(c)
	require.NoError(t, err)
	header := fmt.Sprintf(
		`OpenKitx403 addr="%s", sig="%s", challenge="%s", ts="%s", nonce="n", bind="GET:/resource"`,
		encoding.EncodeBase58(pub), encoding.EncodeBase58(sig), encoding.EncodeB64URL(j), encoding.FormatTimestamp(clk.Now()),
	)

	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest("GET", "/resource", nil)
	req.Header.Set("Authorization", header)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	contents, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `"stack":`)
}

func TestRequireAuthRejectionCarriesFreshChallengeForCurrentPath(t *testing.T) {
	m, _, _ := testMiddleware(t)
	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("POST", "/other-resource", nil)
	req.Header.Set("Authorization", `OpenKitx403 addr="x", sig="y", challenge="z", ts="bad", nonce="n"`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "OpenKitx403")

	fresh, err := client.ParseChallengeHeader(rec.Header().Get("WWW-Authenticate"))
	require.NoError(t, err)
	assert.Equal(t, "POST", fresh.Method)
	assert.Equal(t, "/other-resource", fresh.Path)
}
