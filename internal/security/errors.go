package security

import "fmt"

// FailureKind enumerates spec §4.1's fixed failure taxonomy.
type FailureKind string

const (
	FailureTrustInsufficient FailureKind = "trust_insufficient"
	FailureAccessDenied      FailureKind = "access_denied"
	FailureCapabilityDenied  FailureKind = "capability_denied"
	FailureGatewayRequired   FailureKind = "gateway_required"
	FailureRateLimited       FailureKind = "rate_limited"
	FailureGrantExpired      FailureKind = "grant_expired"
	FailureInvalidPattern    FailureKind = "invalid_pattern"
)

// SecurityError is the structured error every denial in this package
// returns; its text never leaks other sessions' existence (spec §4.4 step 3).
type SecurityError struct {
	Kind FailureKind
	Msg  string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newError(kind FailureKind, msg string) *SecurityError {
	return &SecurityError{Kind: kind, Msg: msg}
}
