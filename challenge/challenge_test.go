package challenge

import (
	"strings"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkitx403/openkitx403/core"
	"github.com/openkitx403/openkitx403/encoding"
)

func testConfig() core.Config {
	return core.NewConfig("srv", "https://a.ex", core.WithTTL(60*time.Second))
}

func TestBuildProducesExpectedFields(t *testing.T) {
	clk := clock.NewFake()
	cfg := testConfig()
	c, header, err := Build(clk, "GET", "/protected", cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, core.ProtocolVersion, c.V)
	assert.Equal(t, core.AlgEd25519Solana, c.Alg)
	assert.Equal(t, "https://a.ex", c.Aud)
	assert.Equal(t, "GET", c.Method)
	assert.Equal(t, "/protected", c.Path)
	assert.Equal(t, "srv", c.ServerID)
	assert.NotEmpty(t, c.Nonce)

	assert.Contains(t, header, `realm="srv"`)
	assert.Contains(t, header, `version="1"`)
	assert.Contains(t, header, `challenge="`)
}

func TestBuildExpiryMatchesTTL(t *testing.T) {
	clk := clock.NewFake()
	cfg := testConfig()
	c, _, err := Build(clk, "GET", "/x", cfg, nil)
	require.NoError(t, err)

	ts, err := encoding.ParseTimestamp(c.Ts)
	require.NoError(t, err)
	exp, err := encoding.ParseTimestamp(c.Exp)
	require.NoError(t, err)
	assert.Equal(t, cfg.TTL(), exp.Sub(ts))
}

func TestBuildTwiceDiffersOnlyInNonceAndTime(t *testing.T) {
	clk := clock.NewFake()
	cfg := testConfig()
	c1, _, err := Build(clk, "GET", "/x", cfg, nil)
	require.NoError(t, err)
	clk.Add(time.Second)
	c2, _, err := Build(clk, "GET", "/x", cfg, nil)
	require.NoError(t, err)

	assert.NotEqual(t, c1.Nonce, c2.Nonce)
	c1.Nonce, c2.Nonce = "", ""
	c1.Ts, c2.Ts = "", ""
	c1.Exp, c2.Exp = "", ""
	assert.Equal(t, c1, c2)
}

func TestChallengeHeaderContainsCanonicalJSONChallenge(t *testing.T) {
	clk := clock.NewFake()
	cfg := testConfig()
	c, header, err := Build(clk, "GET", "/x", cfg, nil)
	require.NoError(t, err)

	start := strings.Index(header, `challenge="`) + len(`challenge="`)
	blob := header[start : len(header)-1]
	decoded, err := encoding.DecodeB64URL(blob)
	require.NoError(t, err)

	j, err := encoding.CanonicalJSON(c)
	require.NoError(t, err)
	assert.Equal(t, j, decoded)
}

func TestSigningStringFormat(t *testing.T) {
	c := core.Challenge{
		V:        core.ProtocolVersion,
		Alg:      core.AlgEd25519Solana,
		Nonce:    "nonce123",
		Ts:       "2026-07-31T00:00:00Z",
		Aud:      "https://a.ex",
		Method:   "GET",
		Path:     "/protected",
		ServerID: "srv",
		Exp:      "2026-07-31T00:01:00Z",
		Ext:      map[string]any{},
	}
	s, err := SigningString(c)
	require.NoError(t, err)

	j, err := encoding.CanonicalJSON(c)
	require.NoError(t, err)

	want := "OpenKitx403 Challenge\n" +
		"\n" +
		"domain: https://a.ex\n" +
		"server: srv\n" +
		"nonce: nonce123\n" +
		"ts: 2026-07-31T00:00:00Z\n" +
		"method: GET\n" +
		"path: /protected\n" +
		"\n" +
		"payload: " + string(j)
	assert.Equal(t, want, string(s))
}

func TestSigningStringDeterministic(t *testing.T) {
	c := core.Challenge{V: 1, Alg: core.AlgEd25519Solana, Aud: "https://a.ex", ServerID: "srv", Nonce: "n", Ts: "2026-07-31T00:00:00Z", Method: "GET", Path: "/x", Exp: "2026-07-31T00:01:00Z"}
	s1, err := SigningString(c)
	require.NoError(t, err)
	s2, err := SigningString(c)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}
