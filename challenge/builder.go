package challenge

import (
	"fmt"

	"github.com/jmhodges/clock"

	"github.com/openkitx403/openkitx403/core"
	"github.com/openkitx403/openkitx403/encoding"
	"github.com/openkitx403/openkitx403/nonce"
)

// Build constructs a fresh Challenge for method/path under cfg, plus the
// WWW-Authenticate header value that carries it (spec.md §4.2). ext may be
// nil; it is stored as-is (Challenge.MarshalJSON normalizes a nil Ext to
// `{}` on the wire).
//
// Two successive calls with identical method/path/cfg/ext differ only in
// Nonce and Ts/Exp, per spec.md §4.2's guarantee.
func Build(clk clock.Clock, method, path string, cfg core.Config, ext map[string]any) (core.Challenge, string, error) {
	n, err := nonce.New()
	if err != nil {
		return core.Challenge{}, "", fmt.Errorf("challenge: %w", err)
	}
	now := clk.Now()
	c := core.Challenge{
		V:          core.ProtocolVersion,
		Alg:        core.AlgEd25519Solana,
		Nonce:      n,
		Ts:         encoding.FormatTimestamp(now),
		Aud:        cfg.Audience,
		Method:     method,
		Path:       path,
		UABind:     cfg.UABinding,
		OriginBind: cfg.OriginBinding,
		ServerID:   cfg.Issuer,
		Exp:        encoding.FormatTimestamp(now.Add(cfg.TTL())),
		Ext:        ext,
	}

	j, err := encoding.CanonicalJSON(c)
	if err != nil {
		return core.Challenge{}, "", fmt.Errorf("challenge: %w", err)
	}

	header := fmt.Sprintf(
		`OpenKitx403 realm=%q, version="1", challenge=%q`,
		cfg.Issuer, encoding.EncodeB64URL(j),
	)
	return c, header, nil
}
