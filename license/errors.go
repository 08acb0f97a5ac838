package license

import (
	"errors"
	"fmt"
)

// Issuance errors. These are caller errors, not security failures.
var (
	// ErrInvalidDuration is returned when a duration is missing for a
	// subscription or demo term, or supplied for a perpetual one.
	ErrInvalidDuration = errors.New("license: duration is required for subscription and demo terms and forbidden for perpetual")
	// ErrEmptyVersionList is returned when no allowed major versions are given.
	ErrEmptyVersionList = errors.New("license: allowed major versions must not be empty")
	// ErrInvalidType is returned for an unknown license type.
	ErrInvalidType = errors.New("license: unknown license type")
)

// FailureKind tags each terminal verification outcome. The kinds are
// disjoint: a verification returns exactly one, decided by the first check
// that fails.
type FailureKind string

const (
	FailureMalformedToken    FailureKind = "malformed_token"
	FailureUnknownKeyID      FailureKind = "unknown_key_id"
	FailureSignatureInvalid  FailureKind = "signature_invalid"
	FailureIssuerMismatch    FailureKind = "issuer_mismatch"
	FailureModuleMismatch    FailureKind = "module_mismatch"
	FailureVersionNotAllowed FailureKind = "version_not_allowed"
	FailureExpired           FailureKind = "expired"
	FailureInstanceMismatch  FailureKind = "instance_mismatch"
	FailureRevoked           FailureKind = "revoked"
)

// VerificationError is the tagged failure result of Verify. The boundary
// layer may map kinds to uniform user-facing messages; internally the kind
// is always specific.
type VerificationError struct {
	Kind   FailureKind
	Detail string
}

func (e *VerificationError) Error() string {
	if e.Detail == "" {
		return "license: verification failed: " + string(e.Kind)
	}
	return fmt.Sprintf("license: verification failed: %s: %s", e.Kind, e.Detail)
}

// Is lets errors.Is match two verification errors by kind.
func (e *VerificationError) Is(target error) bool {
	var other *VerificationError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

func failf(kind FailureKind, format string, args ...any) *VerificationError {
	return &VerificationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// AsVerificationError unwraps err into a VerificationError, if it is one.
func AsVerificationError(err error) (*VerificationError, bool) {
	var ve *VerificationError
	ok := errors.As(err, &ve)
	return ve, ok
}
