// Package verify runs the fifteen-step ordered verification pipeline
// (spec.md §4.6) that turns a raw Authorization header into either a
// core.Result or a closed errors.Code. Grounded on boulder's wfe2.go
// request-handling shape (one function, early returns, each failure
// mapped to a single problem type) generalized from ACME's open problem
// taxonomy to this protocol's closed fifteen-code set.
package verify

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/ed25519"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openkitx403/openkitx403/authz"
	"github.com/openkitx403/openkitx403/challenge"
	"github.com/openkitx403/openkitx403/core"
	"github.com/openkitx403/openkitx403/encoding"
	verrors "github.com/openkitx403/openkitx403/errors"
	"github.com/openkitx403/openkitx403/metrics"
	"github.com/openkitx403/openkitx403/replay"
)

// DefaultTokenGateTimeout is the per-verification bound spec.md §5
// suggests for a long-running token-gate predicate.
const DefaultTokenGateTimeout = 2 * time.Second

var tracer = otel.Tracer("github.com/openkitx403/openkitx403/verify")

// Clock is the minimal time source the verifier needs; jmhodges/clock's
// clock.Clock and clock.FakeClock both satisfy it.
type Clock interface {
	Now() time.Time
}

// Verifier runs the pipeline against a core.Config supplied by cfgFn on
// every call, so one Verifier (and the Prometheus collectors its scope
// registers) can outlive config hot-reloads. A single Verifier is safe for
// concurrent use across unrelated requests (spec.md §5).
type Verifier struct {
	cfgFn func() core.Config
	clk   Clock
	scope metrics.Scope
}

// New builds a Verifier against a fixed core.Config. scope may be
// metrics.NewNoopScope() if the host doesn't want Prometheus wired in.
func New(cfg core.Config, clk Clock, scope metrics.Scope) *Verifier {
	return NewDynamic(func() core.Config { return cfg }, clk, scope)
}

// NewDynamic builds a Verifier that reads cfgFn() fresh on every Verify
// call, for hosts that swap their core.Config at runtime (e.g. on config
// file reload). Building one long-lived Verifier this way — rather than
// one per request — keeps scope's Prometheus collectors registered exactly
// once: metrics.Scope.NewScope allocates new collectors the first time a
// stat name is touched, so a fresh Verifier (and fresh scope) per request
// would re-register the same collector names and panic on the second
// request.
func NewDynamic(cfgFn func() core.Config, clk Clock, scope metrics.Scope) *Verifier {
	if scope == nil {
		scope = metrics.NewNoopScope()
	}
	return &Verifier{cfgFn: cfgFn, clk: clk, scope: scope.NewScope("verify")}
}

// Request is the input the pipeline consumes: the raw Authorization header
// plus the request facts needed for binding checks (spec.md §4.6).
type Request struct {
	AuthorizationHeader string
	Method              string
	Path                string
	Headers             http.Header // optional; nil if origin/UA binding are unused
}

// Verify runs the pipeline in spec.md §4.6's mandatory order, returning the
// first failing step's code wrapped in a *errors.VerificationError, or a
// core.Result on success.
func (v *Verifier) Verify(ctx context.Context, req Request) (core.Result, error) {
	ctx, span := tracer.Start(ctx, "verify.Verify")
	defer span.End()

	res, err := v.verify(ctx, req)
	if err != nil {
		if ve, ok := err.(*verrors.VerificationError); ok {
			span.SetAttributes(attribute.String("openkitx403.reject_code", string(ve.Code)))
			span.SetStatus(codes.Error, ve.Error())
			_ = v.scope.Inc("rejected."+string(ve.Code), 1)
		}
		return core.Result{}, err
	}
	span.SetAttributes(attribute.String("openkitx403.address", res.Address))
	_ = v.scope.Inc("accepted", 1)
	return res, nil
}

func (v *Verifier) verify(ctx context.Context, req Request) (core.Result, error) {
	cfg := v.cfgFn()

	// Step 1: parse the Authorization header.
	auth, err := authz.Parse(req.AuthorizationHeader)
	if err != nil {
		return core.Result{}, verrors.New(verrors.InvalidRequest, "%s", err)
	}

	// Step 2: base64url-decode and JSON-parse the challenge.
	raw, err := encoding.DecodeB64URL(auth.Challenge)
	if err != nil {
		return core.Result{}, verrors.New(verrors.InvalidChallenge, "challenge is not valid base64url: %s", err)
	}
	var c core.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return core.Result{}, verrors.New(verrors.InvalidChallenge, "challenge is not valid JSON: %s", err)
	}

	// Step 3: protocol version.
	if c.V != core.ProtocolVersion {
		return core.Result{}, verrors.New(verrors.UnsupportedVersion, "got v=%d, want %d", c.V, core.ProtocolVersion)
	}

	// Step 4: signature algorithm.
	if c.Alg != core.AlgEd25519Solana {
		return core.Result{}, verrors.New(verrors.UnsupportedAlgorithm, "got alg=%q, want %q", c.Alg, core.AlgEd25519Solana)
	}

	now := v.clk.Now()

	// Step 5: challenge expiry.
	exp, err := encoding.ParseTimestamp(c.Exp)
	if err != nil {
		return core.Result{}, verrors.New(verrors.InvalidChallenge, "exp is not a valid timestamp: %s", err)
	}
	if !now.Before(exp) {
		return core.Result{}, verrors.New(verrors.ChallengeExpired, "challenge expired at %s", c.Exp)
	}

	// Step 6: audience.
	if subtle.ConstantTimeCompare([]byte(c.Aud), []byte(cfg.Audience)) != 1 {
		return core.Result{}, verrors.New(verrors.AudienceMismatch, "got aud=%q, want %q", c.Aud, cfg.Audience)
	}

	// Step 7: issuer/server identity.
	if subtle.ConstantTimeCompare([]byte(c.ServerID), []byte(cfg.Issuer)) != 1 {
		return core.Result{}, verrors.New(verrors.ServerIDMismatch, "got serverId=%q, want %q", c.ServerID, cfg.Issuer)
	}

	// Step 8: client timestamp clock skew.
	authTs, err := encoding.ParseTimestamp(auth.Ts)
	if err != nil {
		return core.Result{}, verrors.New(verrors.InvalidRequest, "ts is not a valid timestamp: %s", err)
	}
	skew := now.Sub(authTs)
	if skew < 0 {
		skew = -skew
	}
	if skew > cfg.ClockSkew() {
		return core.Result{}, verrors.New(verrors.TimestampSkew, "client ts %s is %s from server clock", auth.Ts, skew)
	}

	// Step 9: method/path binding. The stricter reading applies here: when
	// BindMethodPath is configured, a request missing "bind" is rejected
	// rather than silently let through (spec.md §9 open question 2).
	if cfg.BindMethodPath {
		if auth.Bind == "" {
			return core.Result{}, verrors.New(verrors.BindingMismatch, "bind parameter required but absent")
		}
		bindMethod, bindPath, ok := strings.Cut(auth.Bind, ":")
		if !ok || bindMethod != req.Method || bindPath != req.Path {
			return core.Result{}, verrors.New(verrors.BindingMismatch, "bind=%q does not match %s %s", auth.Bind, req.Method, req.Path)
		}
		if req.Method != c.Method || req.Path != c.Path {
			return core.Result{}, verrors.New(verrors.BindingMismatch, "request %s %s does not match challenge %s %s", req.Method, req.Path, c.Method, c.Path)
		}
	}

	// Step 10: origin binding.
	if c.OriginBind && req.Headers != nil {
		originHeader := req.Headers.Get("Origin")
		if originHeader == "" {
			originHeader = req.Headers.Get("Referer")
		}
		if originHeader == "" {
			return core.Result{}, verrors.New(verrors.OriginMismatch, "origin binding required but no Origin or Referer header present")
		}
		if !originsMatch(originHeader, c.Aud) {
			return core.Result{}, verrors.New(verrors.OriginMismatch, "origin %q does not match audience %q", originHeader, c.Aud)
		}
	}

	// Step 11: User-Agent binding.
	if c.UABind && req.Headers != nil {
		if req.Headers.Get("User-Agent") == "" {
			return core.Result{}, verrors.New(verrors.UserAgentRequired, "uaBind requires a non-empty User-Agent header")
		}
	}

	// Step 12: replay pre-check. A cheap, non-mutating lookup so an
	// already-burned nonce fails before the signature is ever checked.
	// Final insertion is deferred to after step 13 succeeds (spec.md §9
	// open question 4 / §7: inserting before signature verification would
	// let an attacker burn a legitimate holder's nonce without ever
	// proving possession of the key).
	key := ""
	if cfg.ReplayStore != nil {
		key = replay.Key(auth.Addr, c.Nonce)
		present, err := cfg.ReplayStore.Check(ctx, key)
		if err != nil {
			// A store I/O failure, not an ordinary rejection: carry the
			// cause so an audit logger upstream can recover its stack.
			return core.Result{}, verrors.Wrap(verrors.ReplayDetected, err, "replay store check failed: %s", err)
		}
		if present {
			return core.Result{}, verrors.New(verrors.ReplayDetected, "nonce already used for this address")
		}
	}

	// Step 13: signature.
	pub, err := encoding.DecodePublicKey(auth.Addr)
	if err != nil {
		return core.Result{}, verrors.New(verrors.InvalidSignature, "addr is not a valid base58 public key: %s", err)
	}
	sig, err := encoding.DecodeSignature(auth.Sig)
	if err != nil {
		return core.Result{}, verrors.New(verrors.InvalidSignature, "sig is not a valid base58 signature: %s", err)
	}
	signingString, err := challenge.SigningString(c)
	if err != nil {
		return core.Result{}, verrors.New(verrors.InvalidSignature, "could not recompute signing string: %s", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), signingString, sig) {
		return core.Result{}, verrors.New(verrors.InvalidSignature, "signature verification failed")
	}

	// Now that the caller has proven possession of the key, commit the
	// nonce. A second, atomic check-and-insert guards the race window
	// between the step-12 pre-check and here: two concurrent requests that
	// both passed step 12 for the same (addr, nonce) cannot both pass this.
	if cfg.ReplayStore != nil {
		ttl := exp.Sub(now)
		if ttl <= 0 {
			ttl = time.Second
		}
		replayed, err := checkAndStore(ctx, cfg.ReplayStore, key, ttl)
		if err != nil {
			return core.Result{}, verrors.Wrap(verrors.ReplayDetected, err, "replay store insert failed: %s", err)
		}
		if replayed {
			return core.Result{}, verrors.New(verrors.ReplayDetected, "nonce already used for this address")
		}
	}

	// Step 14: token gate.
	if cfg.TokenGate != nil {
		gateCtx, cancel := context.WithTimeout(ctx, DefaultTokenGateTimeout)
		ok, err := func() (ok bool, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = verrors.Wrap(verrors.TokenGateFailed, fmt.Errorf("%v", r), "token gate panicked: %v", r)
				}
			}()
			return cfg.TokenGate(gateCtx, auth.Addr)
		}()
		cancel()
		if err != nil {
			if ve, ok := err.(*verrors.VerificationError); ok {
				return core.Result{}, ve
			}
			return core.Result{}, verrors.New(verrors.TokenGateFailed, "%s", err)
		}
		if gateCtx.Err() == context.DeadlineExceeded {
			return core.Result{}, verrors.New(verrors.TokenGateFailed, "token gate timed out after %s", DefaultTokenGateTimeout)
		}
		if !ok {
			return core.Result{}, verrors.New(verrors.TokenGateFailed, "address did not satisfy the configured token gate")
		}
	}

	// Step 15: success.
	return core.Result{Address: auth.Addr, Challenge: c}, nil
}

// checkAndStore uses store's AtomicStore capability when available, and
// falls back to a plain check-then-store for a minimal user-supplied
// core.ReplayStore that only implements the two-method contract (spec.md
// §4.5). The fallback reintroduces the TOCTOU race spec.md §5 warns about;
// hosts that need the guarantee should supply an AtomicStore.
func checkAndStore(ctx context.Context, store core.ReplayStore, key string, ttl time.Duration) (bool, error) {
	if as, ok := store.(replay.AtomicStore); ok {
		return as.CheckAndStore(ctx, key, ttl)
	}
	present, err := store.Check(ctx, key)
	if err != nil {
		return false, err
	}
	if present {
		return true, nil
	}
	return false, store.Store(ctx, key, ttl)
}

// originsMatch reports whether originHeader (an Origin or Referer header
// value) names the same origin as aud, the audience a challenge was issued
// for. Both sides are normalized by stripping a default port (spec.md §9
// open question 3: ":443" for https, ":80" for http) so
// "https://a.example" and "https://a.example:443" compare equal.
func originsMatch(originHeader, aud string) bool {
	a, err := url.Parse(originHeader)
	if err != nil {
		return false
	}
	b, err := url.Parse(aud)
	if err != nil {
		return false
	}
	return normalizeOrigin(a) == normalizeOrigin(b)
}

func normalizeOrigin(u *url.URL) string {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		return u.Scheme + "://" + host
	}
	if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
		return u.Scheme + "://" + host
	}
	return u.Scheme + "://" + host + ":" + port
}
