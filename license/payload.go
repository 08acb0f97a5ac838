// Package license implements the issuance and verification engine for
// signed module licenses. Tokens are EdDSA-signed JWTs; verification needs
// only public key material and is safe to run fully offline.
package license

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Type enumerates the license variants.
type Type string

const (
	TypePerpetual    Type = "perpetual"
	TypeSubscription Type = "subscription"
	TypeDemo         Type = "demo"
)

// Valid reports whether t is a known license type.
func (t Type) Valid() bool {
	switch t {
	case TypePerpetual, TypeSubscription, TypeDemo:
		return true
	}
	return false
}

// Term is the tagged pairing of license type and validity duration. The
// constructors are the only way to build one, so a demo without a duration
// or a perpetual with one cannot be expressed.
type Term struct {
	typ      Type
	duration time.Duration
}

// Perpetual returns a term that never expires.
func Perpetual() Term { return Term{typ: TypePerpetual} }

// Subscription returns a term expiring d after issuance.
func Subscription(d time.Duration) Term { return Term{typ: TypeSubscription, duration: d} }

// Demo returns a trial term expiring d after issuance.
func Demo(d time.Duration) Term { return Term{typ: TypeDemo, duration: d} }

// TermFor builds a term from external input, e.g. an API request carrying a
// type string and an optional duration. It enforces the duration rules the
// constructors otherwise make unrepresentable.
func TermFor(t Type, duration time.Duration) (Term, error) {
	switch t {
	case TypePerpetual:
		if duration != 0 {
			return Term{}, ErrInvalidDuration
		}
		return Perpetual(), nil
	case TypeSubscription, TypeDemo:
		if duration <= 0 {
			return Term{}, ErrInvalidDuration
		}
		return Term{typ: t, duration: duration}, nil
	default:
		return Term{}, ErrInvalidType
	}
}

// Type returns the license type of the term.
func (t Term) Type() Type { return t.typ }

// Duration returns the validity duration and whether the term expires at
// all. Perpetual terms return (0, false).
func (t Term) Duration() (time.Duration, bool) {
	if t.typ == TypePerpetual {
		return 0, false
	}
	return t.duration, true
}

func (t Term) validate() error {
	switch t.typ {
	case TypePerpetual:
		return nil
	case TypeSubscription, TypeDemo:
		if t.duration <= 0 {
			return ErrInvalidDuration
		}
		return nil
	default:
		return ErrInvalidType
	}
}

// Customer identifies the licensee. The engine treats both fields as opaque.
type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Module names the gated application module and the major versions the
// license covers.
type Module struct {
	TechnicalName        string   `json:"technical_name"`
	AllowedMajorVersions []string `json:"allowed_major_versions"`
}

// AllowsVersion reports whether a major version is covered (exact match).
func (m Module) AllowsVersion(version string) bool {
	for _, v := range m.AllowedMajorVersions {
		if v == version {
			return true
		}
	}
	return false
}

// Claims is the signed claim set inside a license token. Registered claims
// carry jti (license id), iss, iat and the optional exp; exp is omitted
// entirely for perpetual licenses rather than encoded as null.
type Claims struct {
	jwt.RegisteredClaims
	Customer            Customer `json:"customer"`
	Module              Module   `json:"module"`
	LicenseType         Type     `json:"license_type"`
	InstanceFingerprint string   `json:"instance_fingerprint,omitempty"`
}

// ValidatedClaims is the fully verified payload returned on success. No
// partially validated form exists; every field here passed signature and
// business checks.
type ValidatedClaims struct {
	LicenseID   string    `json:"license_id"`
	Customer    Customer  `json:"customer"`
	Module      Module    `json:"module"`
	LicenseType Type      `json:"license_type"`
	IssuedAt    time.Time `json:"issued_at"`
	// ExpiresAt is nil for perpetual licenses.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// ExpiresIn is the remaining validity at verification time; nil means
	// the license never expires.
	ExpiresIn *time.Duration `json:"expires_in,omitempty"`
	// InstanceFingerprint is empty when the license is not instance-bound.
	InstanceFingerprint string `json:"instance_fingerprint,omitempty"`
}
