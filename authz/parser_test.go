package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHeader() string {
	return `OpenKitx403 addr="abc", sig="def", challenge="ghi", ts="2026-07-31T00:00:00Z", nonce="jkl", bind="GET:/protected"`
}

func TestParseValidHeader(t *testing.T) {
	a, err := Parse(validHeader())
	require.NoError(t, err)
	assert.Equal(t, "abc", a.Addr)
	assert.Equal(t, "def", a.Sig)
	assert.Equal(t, "ghi", a.Challenge)
	assert.Equal(t, "2026-07-31T00:00:00Z", a.Ts)
	assert.Equal(t, "jkl", a.Nonce)
	assert.Equal(t, "GET:/protected", a.Bind)
}

func TestParseOptionalBindOmitted(t *testing.T) {
	a, err := Parse(`OpenKitx403 addr="abc", sig="def", challenge="ghi", ts="2026-07-31T00:00:00Z", nonce="jkl"`)
	require.NoError(t, err)
	assert.Empty(t, a.Bind)
}

func TestParseRejectsMissingScheme(t *testing.T) {
	_, err := Parse(`Bearer addr="abc"`)
	assert.Error(t, err)
}

func TestParseRejectsMissingRequiredKey(t *testing.T) {
	_, err := Parse(`OpenKitx403 addr="abc", sig="def", challenge="ghi", ts="2026-07-31T00:00:00Z"`)
	assert.Error(t, err)
}

func TestParseIgnoresUnknownKey(t *testing.T) {
	a, err := Parse(`OpenKitx403 addr="abc", sig="def", challenge="ghi", ts="2026-07-31T00:00:00Z", nonce="jkl", future="x"`)
	require.NoError(t, err)
	assert.Equal(t, "abc", a.Addr)
}

func TestParseDuplicateKeyTakesLastValue(t *testing.T) {
	a, err := Parse(`OpenKitx403 addr="first", addr="second", sig="def", challenge="ghi", ts="2026-07-31T00:00:00Z", nonce="jkl"`)
	require.NoError(t, err)
	assert.Equal(t, "second", a.Addr)
}

func TestParseRejectsUnquotedValue(t *testing.T) {
	_, err := Parse(`OpenKitx403 addr=abc, sig="def", challenge="ghi", ts="2026-07-31T00:00:00Z", nonce="jkl"`)
	assert.Error(t, err)
}

func TestParseRejectsEmbeddedQuote(t *testing.T) {
	_, err := Parse(`OpenKitx403 addr="ab""c", sig="def", challenge="ghi", ts="2026-07-31T00:00:00Z", nonce="jkl"`)
	assert.Error(t, err)
}
