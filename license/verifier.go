package license

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/biz4a/aegis/fingerprint"
	"github.com/biz4a/aegis/revocation"
)

// VerificationKeys resolves any current or historical key id to its public
// key. Rotation only affects future issuance; tokens signed under older
// keys must keep verifying.
type VerificationKeys interface {
	PublicKey(kid string) (ed25519.PublicKey, bool)
}

// Verifier checks license tokens. All checks are local and deterministic;
// the only I/O is the optional revocation gate. Set Leeway and the gate
// before first use; after that a Verifier is safe for concurrent use.
type Verifier struct {
	keys   VerificationKeys
	issuer string

	// Leeway tolerates clock skew on the iat claim: a token issued up to
	// Leeway in the future is still accepted. Zero means no tolerance.
	Leeway time.Duration

	// Gate is the optional revocation lookup. When nil, verification runs
	// offline and skips the revocation check entirely. When set, GatePolicy
	// must also be set to decide what a gate outage means.
	Gate       revocation.Gate
	GatePolicy revocation.Policy

	now func() time.Time
}

// NewVerifier constructs an offline verifier for the expected issuer.
func NewVerifier(keys VerificationKeys, issuer string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, now: time.Now}
}

var errUnknownKeyID = errors.New("unknown key id")

func (v *Verifier) keyfunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid header", errUnknownKeyID)
	}
	pub, ok := v.keys.PublicKey(kid)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownKeyID, kid)
	}
	return pub, nil
}

// Verify parses and validates a token against the expected module name and
// major version, plus the optional instance identity. Checks run in a fixed
// order and stop at the first failure, so the returned VerificationError
// kind is deterministic and specific. No payload field is acted on before
// the signature has been verified.
func (v *Verifier) Verify(ctx context.Context, token, moduleName, version string, identity *fingerprint.Identity) (*ValidatedClaims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, v.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		switch {
		case errors.Is(err, errUnknownKeyID):
			return nil, failf(FailureUnknownKeyID, "%v", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, failf(FailureMalformedToken, "%v", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, failf(FailureSignatureInvalid, "token signature does not verify")
		default:
			return nil, failf(FailureMalformedToken, "%v", err)
		}
	}

	// The signature is good from here on; the payload can be trusted to be
	// what the issuer signed, but not yet to satisfy business rules.
	now := v.now().UTC()

	if err := v.checkShape(claims, now); err != nil {
		return nil, err
	}
	if claims.Issuer != v.issuer {
		return nil, failf(FailureIssuerMismatch, "issued by %q, expected %q", claims.Issuer, v.issuer)
	}
	if claims.Module.TechnicalName != moduleName {
		return nil, failf(FailureModuleMismatch, "license is for module %q, not %q", claims.Module.TechnicalName, moduleName)
	}
	if !claims.Module.AllowsVersion(version) {
		return nil, failf(FailureVersionNotAllowed, "version %q not in %v", version, claims.Module.AllowedMajorVersions)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return nil, failf(FailureExpired, "license expired at %s", claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	if claims.InstanceFingerprint != "" {
		// A bound license can never be verified as unbound.
		if identity == nil {
			return nil, failf(FailureInstanceMismatch, "license is bound to an instance but no instance identity was supplied")
		}
		if fingerprint.Generate(*identity) != claims.InstanceFingerprint {
			return nil, failf(FailureInstanceMismatch, "license is bound to a different instance")
		}
	}
	if v.Gate != nil {
		revoked, err := v.Gate.IsRevoked(ctx, claims.ID)
		if err != nil {
			switch v.GatePolicy {
			case revocation.FailOpen:
				// Deliberate trade-off: an unreachable gate degrades to
				// offline behavior, which cannot observe revocation.
			case revocation.FailClosed:
				return nil, fmt.Errorf("license: revocation check unavailable: %w", err)
			default:
				return nil, fmt.Errorf("license: revocation gate set without a policy")
			}
		} else if revoked {
			return nil, failf(FailureRevoked, "license %s has been revoked", claims.ID)
		}
	}

	out := &ValidatedClaims{
		LicenseID:           claims.ID,
		Customer:            claims.Customer,
		Module:              claims.Module,
		LicenseType:         claims.LicenseType,
		IssuedAt:            claims.IssuedAt.Time,
		InstanceFingerprint: claims.InstanceFingerprint,
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		remaining := exp.Sub(now)
		out.ExpiresAt = &exp
		out.ExpiresIn = &remaining
	}
	return out, nil
}

// checkShape enforces the payload invariants a well-formed issuer always
// produces. A signed payload that violates them is treated as malformed.
func (v *Verifier) checkShape(claims *Claims, now time.Time) error {
	if claims.ID == "" {
		return failf(FailureMalformedToken, "missing jti claim")
	}
	if claims.IssuedAt == nil {
		return failf(FailureMalformedToken, "missing iat claim")
	}
	if claims.IssuedAt.Time.After(now.Add(v.Leeway)) {
		return failf(FailureMalformedToken, "iat %s is in the future", claims.IssuedAt.Time.Format(time.RFC3339))
	}
	if !claims.LicenseType.Valid() {
		return failf(FailureMalformedToken, "unknown license type %q", claims.LicenseType)
	}
	switch claims.LicenseType {
	case TypePerpetual:
		if claims.ExpiresAt != nil {
			return failf(FailureMalformedToken, "perpetual license carries an exp claim")
		}
	case TypeSubscription, TypeDemo:
		if claims.ExpiresAt == nil {
			return failf(FailureMalformedToken, "%s license missing exp claim", claims.LicenseType)
		}
	}
	if len(claims.Module.AllowedMajorVersions) == 0 {
		return failf(FailureMalformedToken, "empty allowed_major_versions")
	}
	return nil
}

// Inspect decodes a token without verifying it, for display purposes only.
// Callers must never make trust decisions on the result.
func Inspect(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, failf(FailureMalformedToken, "%v", err)
	}
	return claims, nil
}
