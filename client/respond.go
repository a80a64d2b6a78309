package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openkitx403/openkitx403/challenge"
	"github.com/openkitx403/openkitx403/core"
	"github.com/openkitx403/openkitx403/encoding"
	"github.com/openkitx403/openkitx403/nonce"
)

// challengeScheme is the WWW-Authenticate prefix a conformant server emits
// (spec.md §6), distinct from authz.Scheme which parses the client's own
// Authorization header.
const challengeScheme = "OpenKitx403 "

// ParseChallengeHeader extracts the decoded core.Challenge carried in a
// WWW-Authenticate header value.
func ParseChallengeHeader(header string) (core.Challenge, error) {
	if !strings.HasPrefix(header, challengeScheme) {
		return core.Challenge{}, fmt.Errorf("client: missing %q scheme prefix", strings.TrimSpace(challengeScheme))
	}
	params, err := parseParams(header[len(challengeScheme):])
	if err != nil {
		return core.Challenge{}, err
	}
	blob, ok := params["challenge"]
	if !ok {
		return core.Challenge{}, fmt.Errorf("client: missing challenge parameter")
	}
	raw, err := encoding.DecodeB64URL(blob)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("client: challenge is not valid base64url: %w", err)
	}
	var c core.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return core.Challenge{}, fmt.Errorf("client: challenge is not valid JSON: %w", err)
	}
	return c, nil
}

// Respond signs c with signer and builds the Authorization header value a
// server's verifier accepts (spec.md §6). now is the caller's present
// time, stamped as auth.ts. bind, if non-empty, is sent as the optional
// "METHOD:PATH" bind parameter.
func Respond(ctx context.Context, c core.Challenge, signer core.Signer, now time.Time, bind string) (string, error) {
	signingString, err := challenge.SigningString(c)
	if err != nil {
		return "", fmt.Errorf("client: %w", err)
	}
	sig, err := signer.SignBytes(ctx, signingString)
	if err != nil {
		return "", fmt.Errorf("client: sign: %w", err)
	}
	j, err := encoding.CanonicalJSON(c)
	if err != nil {
		return "", fmt.Errorf("client: %w", err)
	}
	clientNonce, err := nonce.New()
	if err != nil {
		return "", fmt.Errorf("client: %w", err)
	}

	var b strings.Builder
	b.WriteString(challengeScheme)
	fmt.Fprintf(&b, `addr="%s", `, encoding.EncodeBase58(signer.PublicKey()))
	fmt.Fprintf(&b, `sig="%s", `, encoding.EncodeBase58(sig))
	fmt.Fprintf(&b, `challenge="%s", `, encoding.EncodeB64URL(j))
	fmt.Fprintf(&b, `ts="%s", `, encoding.FormatTimestamp(now))
	fmt.Fprintf(&b, `nonce="%s"`, clientNonce)
	if bind != "" {
		fmt.Fprintf(&b, `, bind="%s"`, bind)
	}
	return b.String(), nil
}

// parseParams splits "k1=\"v1\", k2=\"v2\"" into a map, mirroring
// authz.parseParams's grammar for this protocol's other comma-separated
// key="value" header (the WWW-Authenticate challenge, rather than the
// Authorization proof).
func parseParams(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return nil, fmt.Errorf("client: malformed parameter %q", part)
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		if len(val) < 2 || val[0] != '"' || val[len(val)-1] != '"' {
			return nil, fmt.Errorf("client: parameter %q is not a quoted string", key)
		}
		out[key] = val[1 : len(val)-1]
	}
	return out, nil
}
