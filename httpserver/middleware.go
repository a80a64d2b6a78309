// Package httpserver adapts the verify pipeline to net/http: a single
// RequireAuth middleware implementing the per-request state machine
// spec.md §4.8 describes (Unauthenticated → Challenged → ProofSubmitted →
// {Authenticated | Rejected}). Grounded on wfe2.go's HandleFunc/sendError
// wrapper pattern (_examples/sheurich-boulder/wfe2/wfe.go) — one handler
// wrapping another, logging and responding uniformly on every outcome —
// generalized from ACME's directory of endpoints to a single protecting
// middleware any net/http handler can be wrapped in.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"

	"github.com/openkitx403/openkitx403/challenge"
	"github.com/openkitx403/openkitx403/core"
	verrors "github.com/openkitx403/openkitx403/errors"
	"github.com/openkitx403/openkitx403/log"
	"github.com/openkitx403/openkitx403/probs"
	"github.com/openkitx403/openkitx403/verify"
)

type contextKey string

// addressContextKey is the context key RequireAuth stores the verified
// address under; handlers downstream of the middleware read it with
// AddressFromContext.
const addressContextKey contextKey = "openkitx403_address"

// AddressFromContext returns the verified caller address, if the request
// passed through RequireAuth successfully.
func AddressFromContext(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(addressContextKey).(string)
	return addr, ok
}

// Middleware wraps an http.Handler, running the OpenKitx403 verification
// pipeline in front of it.
type Middleware struct {
	cfgFn    func() core.Config
	clk      clock.Clock
	verifier *verify.Verifier
	logger   *log.Logger

	// SetAddressHeader, when true, sets X-Authenticated-Address on a
	// successful request in addition to the request context value
	// (spec.md §6: "optional").
	SetAddressHeader bool
}

// NewMiddleware builds a Middleware against a fixed core.Config. logger may
// be nil, in which case rejected requests are not logged.
func NewMiddleware(cfg core.Config, clk clock.Clock, verifier *verify.Verifier, logger *log.Logger) *Middleware {
	return NewMiddlewareDynamic(func() core.Config { return cfg }, clk, verifier, logger)
}

// NewMiddlewareDynamic builds a Middleware that reads cfgFn() fresh on every
// rejection, for hosts that swap their core.Config at runtime (e.g. on
// config file reload) and want the refreshed challenge parameters — issuer,
// audience, TTL — reflected immediately rather than frozen at construction
// time.
func NewMiddlewareDynamic(cfgFn func() core.Config, clk clock.Clock, verifier *verify.Verifier, logger *log.Logger) *Middleware {
	return &Middleware{cfgFn: cfgFn, clk: clk, verifier: verifier, logger: logger}
}

// RequireAuth returns an http.Handler that runs next only once the request
// carries a valid OpenKitx403 proof. Every rejection — including the
// initial unauthenticated request, which carries no Authorization header
// at all — emits a fresh challenge for the current request's method and
// path (spec.md §4.7), never the one the client failed to satisfy.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := log.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		header := r.Header.Get("Authorization")
		if header == "" {
			m.reject(ctx, w, r, verrors.New(probs.WalletAuthRequired, "no Authorization header present"))
			return
		}

		res, err := m.verifier.Verify(ctx, verify.Request{
			AuthorizationHeader: header,
			Method:              r.Method,
			Path:                r.URL.Path,
			Headers:             r.Header,
		})
		if err != nil {
			ve, ok := err.(*verrors.VerificationError)
			if !ok {
				ve = verrors.New(verrors.InvalidRequest, "%s", err)
			}
			m.reject(ctx, w, r, ve)
			return
		}

		if m.logger != nil {
			m.logger.FromContext(ctx).Info("request authenticated for " + res.Address)
		}
		if m.SetAddressHeader {
			w.Header().Set("X-Authenticated-Address", res.Address)
		}
		ctx = context.WithValue(ctx, addressContextKey, res.Address)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// reject emits the 403 + WWW-Authenticate + JSON body triple spec.md §4.7
// defines, with a challenge freshly built for this request's method/path.
func (m *Middleware) reject(ctx context.Context, w http.ResponseWriter, r *http.Request, ve *verrors.VerificationError) {
	if m.logger != nil {
		m.logger.FromContext(ctx).Warning("rejected " + r.Method + " " + r.URL.Path + ": " + ve.Error())
		if ve.Err != nil {
			m.logger.FromContext(ctx).AuditErr("internal error during verification", ve.Err)
		}
	}

	_, challengeHeader, err := challenge.Build(m.clk, r.Method, r.URL.Path, m.cfgFn(), nil)
	if err != nil {
		if m.logger != nil {
			m.logger.FromContext(ctx).AuditErr("failed to build replacement challenge", verrors.Internal(err))
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("WWW-Authenticate", challengeHeader)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(probs.FromVerificationError(ve))
}
