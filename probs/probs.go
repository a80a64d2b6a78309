// Package probs renders a closed errors.Code into the wire-level shapes
// spec.md §4.7/§6 define: a JSON problem body and the WWW-Authenticate
// challenge-refresh header. Grounded on boulder's wfe2.go call sites
// (probs.MethodNotAllowed(), probs.ServerInternal(...)) and
// core.ProblemDetails's Type/Detail shape — boulder's own probs package
// wasn't present in the retrieval pack, so this is the package wfe2.go's
// imports describe, rebuilt for this protocol's closed fifteen-code taxonomy
// (fourteen verifier rejections plus wallet_auth_required) instead of ACME's
// open-ended problem types.
package probs

import (
	"net/http"

	"github.com/openkitx403/openkitx403/errors"
)

// WalletAuthRequired is emitted on the initial, unauthenticated request —
// it is not one of the verifier's own rejection codes (spec.md §4.6
// doesn't produce it; the httpserver adapter does, before the verifier
// ever runs).
const WalletAuthRequired = errors.WalletAuthRequired

// ProblemDetails is the JSON body spec.md §4.7 defines:
// {"error": "<code>", "error_description": "<text>"}.
type ProblemDetails struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// FromCode renders a Code and human-readable detail into a ProblemDetails.
func FromCode(code errors.Code, detail string) ProblemDetails {
	return ProblemDetails{Error: string(code), ErrorDescription: detail}
}

// FromVerificationError renders a *errors.VerificationError as returned by
// the verify package.
func FromVerificationError(err *errors.VerificationError) ProblemDetails {
	return FromCode(err.Code, err.Detail)
}

// StatusCode is always http.StatusForbidden: spec.md §6 is explicit that
// "only 403 is ever emitted by the core on the auth path" — every one of
// the fourteen rejection codes, and the initial wallet_auth_required
// challenge, share the same HTTP status. The function exists so call
// sites read as a deliberate policy lookup rather than a magic number.
func StatusCode(_ errors.Code) int {
	return http.StatusForbidden
}
