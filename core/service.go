// Package core orchestrates license issuance, verification, and
// administration on top of the storage and crypto layers. HTTP
// adapters call into Provider and stay free of business rules.
package core

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"

	"github.com/biz4a/aegis/fingerprint"
	"github.com/biz4a/aegis/keyring"
	"github.com/biz4a/aegis/license"
	"github.com/biz4a/aegis/revocation"
	"github.com/biz4a/aegis/storage/postgres"
)

var (
	// ErrCustomerNotFound is returned when issuance references an
	// unknown or deactivated customer.
	ErrCustomerNotFound = errors.New("core: customer not found")
)

// RequestMeta carries caller details for the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// IssueRequest describes a license to mint.
type IssueRequest struct {
	CustomerID           string
	ModuleName           string
	AllowedMajorVersions []string
	LicenseType          string
	DurationDays         int
	InstanceFingerprint  string
	Notes                string
}

// IssuedLicense is the result of a successful issuance.
type IssuedLicense struct {
	LicenseID uuid.UUID  `json:"license_id"`
	Token     string     `json:"token"`
	KeyID     string     `json:"key_id"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ValidateRequest carries a token plus the runtime context it must
// match.
type ValidateRequest struct {
	Token      string
	ModuleName string
	Version    string
	Identity   *fingerprint.Identity
}

// Provider is the surface the HTTP layer depends on.
type Provider interface {
	IssueLicense(ctx context.Context, req IssueRequest, meta RequestMeta) (*IssuedLicense, error)
	ValidateToken(ctx context.Context, req ValidateRequest, meta RequestMeta) (*license.ValidatedClaims, error)
	DecodeToken(token string) (*license.Claims, error)
	Fingerprint(id fingerprint.Identity) string

	GetLicense(ctx context.Context, id uuid.UUID) (*postgres.License, error)
	ListLicenses(ctx context.Context, f postgres.LicenseFilter) ([]postgres.License, int, error)
	RevokeLicense(ctx context.Context, id uuid.UUID, reason string, meta RequestMeta) (*postgres.License, error)

	CreateCustomer(ctx context.Context, c *postgres.Customer) error
	GetCustomer(ctx context.Context, id string) (*postgres.Customer, error)
	ListCustomers(ctx context.Context, activeOnly bool, limit, offset int) ([]postgres.Customer, error)
	UpdateCustomer(ctx context.Context, c *postgres.Customer) error
	DeleteCustomer(ctx context.Context, id string) error

	Stats(ctx context.Context) (*postgres.Stats, error)
	AuditLogs(ctx context.Context, limit, offset int) ([]postgres.AuditLog, error)
	RotateKey(ctx context.Context, meta RequestMeta) (string, string, error)
	JWKS() (jwk.Set, error)
}

// Service is the production Provider backed by Postgres and the signing
// keyring.
type Service struct {
	store    *postgres.Store
	keys     *keyring.Handle
	keysPath string
	issuer   *license.Issuer
	verifier *license.Verifier
	gate     revocation.Gate
	log      *logrus.Logger
}

// NewService wires the orchestration layer. gate may be nil when
// revocation checking is disabled. keysPath is where rotated key
// material is persisted (empty means keyring.DefaultKeysPath).
func NewService(store *postgres.Store, keys *keyring.Handle, keysPath string, issuer *license.Issuer, verifier *license.Verifier, gate revocation.Gate, log *logrus.Logger) *Service {
	return &Service{
		store:    store,
		keys:     keys,
		keysPath: keysPath,
		issuer:   issuer,
		verifier: verifier,
		gate:     gate,
		log:      log,
	}
}

func (s *Service) IssueLicense(ctx context.Context, req IssueRequest, meta RequestMeta) (*IssuedLicense, error) {
	cust, err := s.store.GetCustomer(ctx, req.CustomerID)
	if errors.Is(err, postgres.ErrNotFound) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	if !cust.IsActive {
		return nil, ErrCustomerNotFound
	}

	term, err := license.TermFor(license.Type(req.LicenseType), time.Duration(req.DurationDays)*24*time.Hour)
	if err != nil {
		return nil, err
	}

	token, err := s.issuer.Issue(license.IssueParams{
		Customer:            license.Customer{ID: cust.ID, Name: cust.Name},
		ModuleName:          req.ModuleName,
		AllowedVersions:     req.AllowedMajorVersions,
		Term:                term,
		InstanceFingerprint: req.InstanceFingerprint,
	})
	if err != nil {
		return nil, err
	}

	claims, err := license.Inspect(token)
	if err != nil {
		return nil, err
	}

	licID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("core: bad license id %q: %w", claims.ID, err)
	}

	row := &postgres.License{
		ID:                   licID,
		CustomerID:           cust.ID,
		ModuleName:           req.ModuleName,
		LicenseType:          req.LicenseType,
		AllowedMajorVersions: req.AllowedMajorVersions,
		IssuedAt:             claims.IssuedAt.Time,
		Status:               postgres.StatusActive,
		InstanceFingerprint:  req.InstanceFingerprint,
		Token:                token,
		KeyID:                s.keys.ActiveKID(),
		Notes:                req.Notes,
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		row.ExpiresAt = &t
	}
	if err := s.store.CreateLicense(ctx, row); err != nil {
		return nil, err
	}

	s.audit(ctx, &postgres.AuditLog{
		LicenseID:  &licID,
		EventType:  postgres.EventIssued,
		CustomerID: cust.ID,
		ModuleName: req.ModuleName,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	out := &IssuedLicense{
		LicenseID: licID,
		Token:     token,
		KeyID:     row.KeyID,
		IssuedAt:  row.IssuedAt,
		ExpiresAt: row.ExpiresAt,
	}
	return out, nil
}

func (s *Service) ValidateToken(ctx context.Context, req ValidateRequest, meta RequestMeta) (*license.ValidatedClaims, error) {
	vc, err := s.verifier.Verify(ctx, req.Token, req.ModuleName, req.Version, req.Identity)
	if err != nil {
		return nil, err
	}

	licID, parseErr := uuid.Parse(vc.LicenseID)
	entry := &postgres.AuditLog{
		EventType:  postgres.EventValidated,
		CustomerID: vc.Customer.ID,
		ModuleName: vc.Module.TechnicalName,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if parseErr == nil {
		entry.LicenseID = &licID
	}
	s.audit(ctx, entry)

	return vc, nil
}

func (s *Service) DecodeToken(token string) (*license.Claims, error) {
	return license.Inspect(token)
}

func (s *Service) Fingerprint(id fingerprint.Identity) string {
	return fingerprint.Generate(id)
}

func (s *Service) GetLicense(ctx context.Context, id uuid.UUID) (*postgres.License, error) {
	return s.store.GetLicense(ctx, id)
}

func (s *Service) ListLicenses(ctx context.Context, f postgres.LicenseFilter) ([]postgres.License, int, error) {
	return s.store.ListLicenses(ctx, f)
}

func (s *Service) RevokeLicense(ctx context.Context, id uuid.UUID, reason string, meta RequestMeta) (*postgres.License, error) {
	row, err := s.store.RevokeLicense(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	// Push into the gate immediately so verifiers see the revocation
	// before the next full sync.
	if adder, ok := s.gate.(interface {
		Add(ctx context.Context, licenseID string) error
	}); ok && adder != nil {
		if err := adder.Add(ctx, id.String()); err != nil {
			s.log.WithError(err).WithField("license_id", id).Warn("gate update failed after revoke")
		}
	}

	s.audit(ctx, &postgres.AuditLog{
		LicenseID:  &row.ID,
		EventType:  postgres.EventRevoked,
		EventData:  reason,
		CustomerID: row.CustomerID,
		ModuleName: row.ModuleName,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return row, nil
}

func (s *Service) CreateCustomer(ctx context.Context, c *postgres.Customer) error {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("core: customer id and name required")
	}
	c.IsActive = true
	return s.store.CreateCustomer(ctx, c)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*postgres.Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context, activeOnly bool, limit, offset int) ([]postgres.Customer, error) {
	return s.store.ListCustomers(ctx, activeOnly, limit, offset)
}

func (s *Service) UpdateCustomer(ctx context.Context, c *postgres.Customer) error {
	return s.store.UpdateCustomer(ctx, c)
}

// DeleteCustomer deactivates a customer rather than removing the row:
// issued licenses keep their foreign key and their history.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	return s.store.DeactivateCustomer(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (*postgres.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) AuditLogs(ctx context.Context, limit, offset int) ([]postgres.AuditLog, error) {
	return s.store.ListAuditLogs(ctx, limit, offset)
}

// RotateKey mints a fresh signing key, persists the rotated ring to
// keys.json, then installs it as active. Persist-before-install: if the
// new material cannot be written to durable storage the rotation is
// aborted, so a restart can never strand tokens signed under a key that
// only ever lived in memory. Old public keys remain in the ring so
// outstanding tokens stay verifiable.
func (s *Service) RotateKey(ctx context.Context, meta RequestMeta) (string, string, error) {
	priv, err := keyring.GenerateKey()
	if err != nil {
		return "", "", err
	}

	kid := s.nextKID()
	next, err := s.keys.Current().Rotate(kid, priv)
	if err != nil {
		return "", "", err
	}
	if err := keyring.Save(next, s.keysPath); err != nil {
		return "", "", fmt.Errorf("core: persist rotated keys: %w", err)
	}
	if _, err := s.keys.Rotate(kid, priv); err != nil {
		return "", "", err
	}

	if os.Getenv("AEGIS_ACTIVE_KEY_ID") != "" {
		s.log.Warn("signing keys are provisioned via environment; update AEGIS_ACTIVE_KEY_ID/AEGIS_ACTIVE_PRIVATE_KEY_PEM from keys.json or the rotation is lost on restart")
	}

	pubPEM, err := keyring.MarshalPublicKeyPEM(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return "", "", err
	}

	s.audit(ctx, &postgres.AuditLog{
		EventType: postgres.EventKeyRotate,
		EventData: kid,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	s.log.WithField("kid", kid).Info("signing key rotated")
	return kid, string(pubPEM), nil
}

// nextKID picks the first aegis-YYYY-NN id this year that is not
// already in the ring.
func (s *Service) nextKID() string {
	ring := s.keys.Current()
	known := make(map[string]struct{})
	for _, kid := range ring.KIDs() {
		known[kid] = struct{}{}
	}
	now := time.Now().UTC()
	for seq := 1; ; seq++ {
		kid := keyring.NextKID(now, seq)
		if _, ok := known[kid]; !ok {
			return kid
		}
	}
}

func (s *Service) JWKS() (jwk.Set, error) {
	return s.keys.Current().JWKS()
}

func (s *Service) audit(ctx context.Context, e *postgres.AuditLog) {
	if err := s.store.RecordEvent(ctx, e); err != nil {
		s.log.WithError(err).WithField("event", e.EventType).Warn("audit write failed")
	}
}
