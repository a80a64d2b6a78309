// Package core holds the OpenKitx403 data model: the Challenge the server
// commits to, the Authorization the client proves with, the immutable
// per-server Config, and the Result a successful verification produces.
// Nothing in this package performs I/O; it is the shared vocabulary every
// other package builds on (spec.md §3).
package core

import (
	"encoding/json"
	"time"
)

// AlgEd25519Solana is the signature algorithm identifier this
// implementation emits and checks. spec.md fixes "ed25519-solana"; the
// boulder-era reference server it was distilled from instead used the bare
// "ed25519" string (see spec.md §9, open question 1). This repo follows the
// written spec — interop with an implementation using "ed25519" requires
// the two operators to agree out of band, which this package does not do
// automatically.
const AlgEd25519Solana = "ed25519-solana"

// ProtocolVersion is the only Challenge.V value this implementation issues
// or accepts.
const ProtocolVersion = 1

// Challenge is the server's commitment to what a valid proof must cover
// (spec.md §3). Field declaration order is the protocol's canonical JSON
// key order (byte-lexicographic, per spec.md §4.1) — encoding/json
// marshals struct fields in declaration order, so this order is not
// cosmetic, it *is* the wire format.
type Challenge struct {
	Alg        string         `json:"alg"`
	Aud        string         `json:"aud"`
	Exp        string         `json:"exp"`
	Ext        map[string]any `json:"ext"`
	Method     string         `json:"method"`
	Nonce      string         `json:"nonce"`
	OriginBind bool           `json:"originBind"`
	Path       string         `json:"path"`
	ServerID   string         `json:"serverId"`
	Ts         string         `json:"ts"`
	UABind     bool           `json:"uaBind"`
	V          int            `json:"v"`
}

// challengeAlias lets MarshalJSON normalize Ext without recursing into
// Challenge's own MarshalJSON.
type challengeAlias Challenge

// MarshalJSON enforces spec.md §3's invariant that an empty `ext` still
// serializes as `{}`, never `null`.
func (c Challenge) MarshalJSON() ([]byte, error) {
	a := challengeAlias(c)
	if a.Ext == nil {
		a.Ext = map[string]any{}
	}
	return json.Marshal(a)
}

// Authorization is the client's proof (spec.md §3).
type Authorization struct {
	Addr      string // base58 public key
	Sig       string // base58 signature
	Challenge string // echo of the base64url challenge blob
	Ts        string // client timestamp, RFC 3339 seconds
	Nonce     string // client-random, >=96 bits
	Bind      string // optional "METHOD:PATH"
}

// Result is what a successful verification produces (spec.md §4.6 step 15).
type Result struct {
	Address   string
	Challenge Challenge
}

// Config holds the immutable per-server parameters (spec.md §3). A Config
// is built once at server construction and never mutated afterward — the
// httpserver and cmd/openkitx403d packages swap in a whole new Config
// rather than editing one in place (spec.md §9's "configuration objects are
// immutable value types").
type Config struct {
	Issuer           string
	Audience         string
	TTLSeconds       int64
	BindMethodPath   bool
	OriginBinding    bool
	UABinding        bool
	ClockSkewSeconds int64
	ReplayStore      ReplayStore // optional
	TokenGate        TokenGate   // optional
}

// Defaults per spec.md §3.
const (
	DefaultTTLSeconds       = 60
	DefaultClockSkewSeconds = 120
	DefaultBindMethodPath   = true
)

// NewConfig builds a Config for the given issuer/audience with spec.md §3's
// defaults, then applies opts in order.
func NewConfig(issuer, audience string, opts ...ConfigOption) Config {
	cfg := Config{
		Issuer:           issuer,
		Audience:         audience,
		TTLSeconds:       DefaultTTLSeconds,
		BindMethodPath:   DefaultBindMethodPath,
		OriginBinding:    false,
		UABinding:        false,
		ClockSkewSeconds: DefaultClockSkewSeconds,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// ConfigOption mutates a Config under construction; NewConfig applies these
// before the Config is handed out, after which it is read-only by
// convention.
type ConfigOption func(*Config)

func WithTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) { c.TTLSeconds = int64(ttl.Seconds()) }
}

func WithClockSkew(skew time.Duration) ConfigOption {
	return func(c *Config) { c.ClockSkewSeconds = int64(skew.Seconds()) }
}

func WithBindMethodPath(bind bool) ConfigOption {
	return func(c *Config) { c.BindMethodPath = bind }
}

func WithOriginBinding(bind bool) ConfigOption {
	return func(c *Config) { c.OriginBinding = bind }
}

func WithUABinding(bind bool) ConfigOption {
	return func(c *Config) { c.UABinding = bind }
}

func WithReplayStore(s ReplayStore) ConfigOption {
	return func(c *Config) { c.ReplayStore = s }
}

func WithTokenGate(g TokenGate) ConfigOption {
	return func(c *Config) { c.TokenGate = g }
}

// TTL returns the configured challenge lifetime as a time.Duration.
func (c Config) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ClockSkew returns the configured clock skew tolerance as a time.Duration.
func (c Config) ClockSkew() time.Duration {
	return time.Duration(c.ClockSkewSeconds) * time.Second
}

// TokenGateHint is a typed shape for the common case of embedding a
// token-gating hint in Challenge.Ext (spec.md §3 calls out "token gate
// hints, scopes" as Ext's intended use without giving it a shape — this is
// this repo's supplement, not part of the wire-level invariants). Hosts are
// free to put anything JSON-shaped in Ext; this is a convenience, not a
// requirement.
type TokenGateHint struct {
	MinBalance  uint64   `json:"minBalance,omitempty"`
	MintAddress string   `json:"mintAddress,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

// Ext renders the hint into a Challenge.Ext-compatible map.
func (h TokenGateHint) Ext() map[string]any {
	m := map[string]any{}
	if h.MinBalance != 0 {
		m["minBalance"] = h.MinBalance
	}
	if h.MintAddress != "" {
		m["mintAddress"] = h.MintAddress
	}
	if len(h.Scopes) > 0 {
		m["scopes"] = h.Scopes
	}
	return m
}
