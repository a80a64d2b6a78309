// Package errors defines the closed, fifteen-member error taxonomy
// spec.md §6/§7 requires every verification failure to collapse into.
// Grounded on boulder's errors.BoulderError (_examples/sheurich-boulder
// /errors/errors.go), but the open-ended ErrorType there is replaced by
// this protocol's exact named codes — nothing here is extensible, by
// design: algorithm agility and new failure categories are explicit
// non-goals (spec.md §1).
package errors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Code is one of the fifteen closed error codes spec.md §6 names.
type Code string

const (
	WalletAuthRequired   Code = "wallet_auth_required"
	InvalidRequest       Code = "invalid_request"
	InvalidChallenge     Code = "invalid_challenge"
	UnsupportedVersion   Code = "unsupported_version"
	UnsupportedAlgorithm Code = "unsupported_algorithm"
	ChallengeExpired     Code = "challenge_expired"
	AudienceMismatch     Code = "audience_mismatch"
	ServerIDMismatch     Code = "server_id_mismatch"
	TimestampSkew        Code = "timestamp_skew"
	BindingMismatch      Code = "binding_mismatch"
	OriginMismatch       Code = "origin_mismatch"
	UserAgentRequired    Code = "user_agent_required"
	ReplayDetected       Code = "replay_detected"
	InvalidSignature     Code = "invalid_signature"
	TokenGateFailed      Code = "token_gate_failed"
)

// VerificationError is the error a failed verification step returns: a
// closed Code plus the human-readable detail spec.md §7 says error codes
// carry for logging. It is returned up the call stack like any other Go
// error — not thrown across component boundaries (spec.md §9).
type VerificationError struct {
	Code   Code
	Detail string

	// Err is the underlying "can't happen" error that produced this
	// VerificationError, if any — wrapped with Internal so an audit logger
	// can recover its stack with Stack. Never rendered onto the wire.
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Unwrap exposes Err so errors.Is/errors.As from the standard library can
// see past a VerificationError to the internal cause.
func (e *VerificationError) Unwrap() error {
	return e.Err
}

// New builds a VerificationError with the given code and formatted detail.
func New(code Code, format string, args ...any) *VerificationError {
	return &VerificationError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap builds a VerificationError like New, additionally carrying cause —
// an unexpected internal error (a replay store that's unreachable, a
// filesystem failure) rather than an ordinary protocol rejection — wrapped
// with Internal so an audit logger downstream can log its stack trace.
func Wrap(code Code, cause error, format string, args ...any) *VerificationError {
	return &VerificationError{Code: code, Detail: fmt.Sprintf(format, args...), Err: Internal(cause)}
}

// Is reports whether err is a VerificationError with the given Code.
func Is(err error, code Code) bool {
	ve, ok := err.(*VerificationError)
	return ok && ve.Code == code
}

// Internal wraps an unexpected ("can't happen") internal error with a
// captured stack trace for audit logging. Wrap stores the result on
// VerificationError.Err; the trace never reaches the wire. Grounded on jesseduffield-lazydocker's
// go-errors/errors use for stack-carrying internal errors.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 1)
}

// Stack extracts the formatted stack trace from an error built with
// Internal, or "" if err wasn't wrapped that way.
func Stack(err error) string {
	if ge, ok := err.(*goerrors.Error); ok {
		return string(ge.Stack())
	}
	return ""
}
