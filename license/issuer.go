package license

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningKeys is the keyring subset issuance needs.
type SigningKeys interface {
	// ActiveKID returns the key id used for new tokens.
	ActiveKID() string
	// ActiveKey returns the private key matching ActiveKID.
	ActiveKey() ed25519.PrivateKey
}

// Issuer builds license payloads and signs them with the active keyring
// key. It is stateless and safe for concurrent use; persisting issued
// licenses is the caller's job.
type Issuer struct {
	keys   SigningKeys
	issuer string

	// test hooks
	now   func() time.Time
	newID func() string
}

// NewIssuer constructs an issuer for the given signing authority string
// (the token's iss claim).
func NewIssuer(keys SigningKeys, issuer string) *Issuer {
	return &Issuer{
		keys:   keys,
		issuer: issuer,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// IssueParams are the caller-supplied inputs to Issue.
type IssueParams struct {
	Customer        Customer
	ModuleName      string
	AllowedVersions []string
	Term            Term
	// InstanceFingerprint optionally binds the license to one instance;
	// compute it with the fingerprint package.
	InstanceFingerprint string
}

func (p IssueParams) validate() error {
	if strings.TrimSpace(p.Customer.ID) == "" {
		return errors.New("license: customer id required")
	}
	if strings.TrimSpace(p.ModuleName) == "" {
		return errors.New("license: module name required")
	}
	if len(p.AllowedVersions) == 0 {
		return ErrEmptyVersionList
	}
	return p.Term.validate()
}

// Issue signs a new license token. Each call assigns a fresh license id and
// stamps iat with the current time; everything else is deterministic in the
// inputs. The returned token is opaque to callers.
func (i *Issuer) Issue(p IssueParams) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	now := i.now().UTC().Truncate(time.Second)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       i.newID(),
			Issuer:   i.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Customer: p.Customer,
		Module: Module{
			TechnicalName:        p.ModuleName,
			AllowedMajorVersions: append([]string(nil), p.AllowedVersions...),
		},
		LicenseType:         p.Term.Type(),
		InstanceFingerprint: p.InstanceFingerprint,
	}
	if d, expires := p.Term.Duration(); expires {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(d))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = i.keys.ActiveKID()

	signed, err := token.SignedString(i.keys.ActiveKey())
	if err != nil {
		return "", fmt.Errorf("license: sign token: %w", err)
	}
	return signed, nil
}
