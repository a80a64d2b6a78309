package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64URLRoundTrip(t *testing.T) {
	data := []byte("some nonce bytes\x00\x01")
	enc := EncodeB64URL(data)
	assert.NotContains(t, enc, "=")
	dec, err := DecodeB64URL(enc)
	require.NoError(t, err)
	assert.Equal(t, data, dec)
}

func TestDecodeB64URLTolerantOfPadding(t *testing.T) {
	dec, err := DecodeB64URL("Zm9vYmFy") // "foobar", happens not to need padding
	require.NoError(t, err)
	assert.Equal(t, []byte("foobar"), dec)

	dec2, err := DecodeB64URL("Zm9v====") // "foo", over-padded
	require.NoError(t, err)
	assert.Equal(t, []byte("foo"), dec2)
}

func TestPublicKeyLengthEnforced(t *testing.T) {
	ok := make([]byte, PublicKeyLen)
	enc := EncodeBase58(ok)
	_, err := DecodePublicKey(enc)
	require.NoError(t, err)

	short := EncodeBase58(make([]byte, PublicKeyLen-1))
	_, err = DecodePublicKey(short)
	assert.Error(t, err)
}

func TestSignatureLengthEnforced(t *testing.T) {
	ok := make([]byte, SignatureLen)
	enc := EncodeBase58(ok)
	_, err := DecodeSignature(enc)
	require.NoError(t, err)

	long := EncodeBase58(make([]byte, SignatureLen+1))
	_, err = DecodeSignature(long)
	assert.Error(t, err)
}

func TestCanonicalJSONSortsMapKeys(t *testing.T) {
	v := map[string]any{"z": 1, "a": 2, "m": 3}
	out, err := CanonicalJSON(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"m":3,"z":1}`, string(out))
}

func TestCanonicalJSONNoWhitespace(t *testing.T) {
	out, err := CanonicalJSON(struct {
		A int `json:"a"`
		B int `json:"b"`
	}{A: 1, B: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(out))
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	s := FormatTimestamp(now)
	assert.Equal(t, "2026-07-31T12:00:00Z", s)
	parsed, err := ParseTimestamp(s)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))
}

func TestTimestampTruncatesToSeconds(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 500_000_000, time.UTC)
	assert.Equal(t, "2026-07-31T12:00:00Z", FormatTimestamp(now))
}

func TestTimestampRejectsFractionalSeconds(t *testing.T) {
	_, err := ParseTimestamp("2026-07-31T12:00:00.5Z")
	assert.Error(t, err)
}

func TestTimestampRejectsNonZOffset(t *testing.T) {
	_, err := ParseTimestamp("2026-07-31T12:00:00+00:00")
	assert.Error(t, err)
}

func TestTimestampRejectsMissingZ(t *testing.T) {
	_, err := ParseTimestamp("2026-07-31T12:00:00")
	assert.Error(t, err)
}
