package ginadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"

	"github.com/biz4a/aegis/adapters/gin/handlers"
	"github.com/biz4a/aegis/apikey"
	"github.com/biz4a/aegis/core"
	"github.com/biz4a/aegis/fingerprint"
	"github.com/biz4a/aegis/keyring"
	"github.com/biz4a/aegis/license"
	"github.com/biz4a/aegis/storage/postgres"
)

type fakeProvider struct {
	issueResp    *core.IssuedLicense
	issueErr     error
	validateResp *license.ValidatedClaims
	validateErr  error
	revokeResp   *postgres.License
	revokeErr    error
	licenseResp  *postgres.License
	licenseErr   error

	deletedCustomer string
	deleteErr       error
}

func (f *fakeProvider) IssueLicense(context.Context, core.IssueRequest, core.RequestMeta) (*core.IssuedLicense, error) {
	return f.issueResp, f.issueErr
}

func (f *fakeProvider) ValidateToken(context.Context, core.ValidateRequest, core.RequestMeta) (*license.ValidatedClaims, error) {
	return f.validateResp, f.validateErr
}

func (f *fakeProvider) DecodeToken(token string) (*license.Claims, error) {
	return license.Inspect(token)
}

func (f *fakeProvider) Fingerprint(id fingerprint.Identity) string {
	return fingerprint.Generate(id)
}

func (f *fakeProvider) GetLicense(context.Context, uuid.UUID) (*postgres.License, error) {
	return f.licenseResp, f.licenseErr
}

func (f *fakeProvider) ListLicenses(context.Context, postgres.LicenseFilter) ([]postgres.License, int, error) {
	return nil, 0, nil
}

func (f *fakeProvider) RevokeLicense(context.Context, uuid.UUID, string, core.RequestMeta) (*postgres.License, error) {
	return f.revokeResp, f.revokeErr
}

func (f *fakeProvider) CreateCustomer(context.Context, *postgres.Customer) error { return nil }

func (f *fakeProvider) GetCustomer(context.Context, string) (*postgres.Customer, error) {
	return nil, postgres.ErrNotFound
}

func (f *fakeProvider) ListCustomers(context.Context, bool, int, int) ([]postgres.Customer, error) {
	return nil, nil
}

func (f *fakeProvider) UpdateCustomer(context.Context, *postgres.Customer) error { return nil }

func (f *fakeProvider) DeleteCustomer(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedCustomer = id
	return nil
}

func (f *fakeProvider) Stats(context.Context) (*postgres.Stats, error) {
	return &postgres.Stats{}, nil
}

func (f *fakeProvider) AuditLogs(context.Context, int, int) ([]postgres.AuditLog, error) {
	return nil, nil
}

func (f *fakeProvider) RotateKey(context.Context, core.RequestMeta) (string, string, error) {
	return "aegis-2026-02", "-----BEGIN PUBLIC KEY-----", nil
}

func (f *fakeProvider) JWKS() (jwk.Set, error) {
	priv, err := keyring.GenerateKey()
	if err != nil {
		return nil, err
	}
	ring, err := keyring.New("aegis-2026-01", priv, nil)
	if err != nil {
		return nil, err
	}
	return ring.JWKS()
}

type fakeKeyStore struct {
	keys []postgres.APIKey
}

func (f *fakeKeyStore) ActiveAPIKeys(context.Context) ([]postgres.APIKey, error) {
	return f.keys, nil
}

func (f *fakeKeyStore) TouchAPIKey(context.Context, int64) error { return nil }

func newTestRouter(t *testing.T, svc core.Provider, ks KeyStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRouter(Deps{
		Service: svc,
		Keys:    ks,
		Log:     log,
		PingDB:  func() error { return nil },
		Info: func() handlers.ServerInfo {
			return handlers.ServerInfo{Name: "aegis", Version: "test", Issuer: "https://license.biz4a.com", ActiveKID: "aegis-2026-01"}
		},
	})
}

// mintKey returns a plaintext API key and a store that accepts it.
func mintKey(t *testing.T, canIssue, canRevoke, canView bool) (string, *fakeKeyStore) {
	t.Helper()
	plain, hash, err := apikey.Generate()
	if err != nil {
		t.Fatal(err)
	}
	return plain, &fakeKeyStore{keys: []postgres.APIKey{{
		ID:                1,
		KeyHash:           hash,
		Name:              "test-key",
		CanIssueLicenses:  canIssue,
		CanRevokeLicenses: canRevoke,
		CanViewCustomers:  canView,
		IsActive:          true,
	}}}
}

func doJSON(r *gin.Engine, method, path, key string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{}, &fakeKeyStore{})
	w := doJSON(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestJWKSConditionalGet(t *testing.T) {
	// Provider must return a stable set across calls for the ETag to
	// match, so freeze one.
	svc := &stableJWKS{fakeProvider: &fakeProvider{}}
	r := newTestRouter(t, svc, &fakeKeyStore{})

	w := doJSON(r, http.MethodGet, "/.well-known/jwks.json", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	req.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusNotModified {
		t.Fatalf("conditional GET status = %d", w2.Code)
	}
}

type stableJWKS struct {
	*fakeProvider
	set jwk.Set
}

func (s *stableJWKS) JWKS() (jwk.Set, error) {
	if s.set == nil {
		var err error
		s.set, err = s.fakeProvider.JWKS()
		if err != nil {
			return nil, err
		}
	}
	return s.set, nil
}

func TestValidateMapsFailureKindsToOK(t *testing.T) {
	svc := &fakeProvider{validateErr: &license.VerificationError{Kind: license.FailureExpired}}
	r := newTestRouter(t, svc, &fakeKeyStore{})

	w := doJSON(r, http.MethodPost, "/api/v1/license/validate", "", gin.H{
		"token": "x.y.z", "module_name": "biz4a_payroll_drc", "version": "17",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Valid || resp.Error != "expired" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestValidateGateOutageIs503(t *testing.T) {
	svc := &fakeProvider{validateErr: errors.New("revocation gate unreachable")}
	r := newTestRouter(t, svc, &fakeKeyStore{})

	w := doJSON(r, http.MethodPost, "/api/v1/license/validate", "", gin.H{
		"token": "x.y.z", "module_name": "m", "version": "17",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestValidateSuccess(t *testing.T) {
	exp := time.Now().Add(24 * time.Hour)
	svc := &fakeProvider{validateResp: &license.ValidatedClaims{
		LicenseID: uuid.NewString(),
		ExpiresAt: &exp,
	}}
	r := newTestRouter(t, svc, &fakeKeyStore{})

	w := doJSON(r, http.MethodPost, "/api/v1/license/validate", "", gin.H{
		"token": "x.y.z", "module_name": "m", "version": "17",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Valid bool `json:"valid"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Valid {
		t.Fatalf("body = %s", w.Body)
	}
}

func TestIssueRequiresAuth(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{}, &fakeKeyStore{})
	w := doJSON(r, http.MethodPost, "/api/v1/licenses", "", gin.H{})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIssueRejectsWrongKey(t *testing.T) {
	_, ks := mintKey(t, true, false, false)
	other, _, err := apikey.Generate()
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRouter(t, &fakeProvider{}, ks)
	w := doJSON(r, http.MethodPost, "/api/v1/licenses", other, gin.H{})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIssueHappyPath(t *testing.T) {
	key, ks := mintKey(t, true, false, false)
	licID := uuid.New()
	svc := &fakeProvider{issueResp: &core.IssuedLicense{
		LicenseID: licID,
		Token:     "x.y.z",
		KeyID:     "aegis-2026-01",
		IssuedAt:  time.Now().UTC(),
	}}
	r := newTestRouter(t, svc, ks)

	w := doJSON(r, http.MethodPost, "/api/v1/licenses", key, gin.H{
		"customer_id":            "CUST-001",
		"module_name":            "biz4a_payroll_drc",
		"allowed_major_versions": []string{"17", "18"},
		"license_type":           "perpetual",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
}

func TestIssueCustomerNotFound(t *testing.T) {
	key, ks := mintKey(t, true, false, false)
	svc := &fakeProvider{issueErr: core.ErrCustomerNotFound}
	r := newTestRouter(t, svc, ks)

	w := doJSON(r, http.MethodPost, "/api/v1/licenses", key, gin.H{
		"customer_id": "ghost", "module_name": "m",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRevokeRequiresPermission(t *testing.T) {
	key, ks := mintKey(t, true, false, false) // issue only
	r := newTestRouter(t, &fakeProvider{}, ks)

	w := doJSON(r, http.MethodDelete, "/api/v1/licenses/"+uuid.NewString(), key, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRevokeConflict(t *testing.T) {
	key, ks := mintKey(t, true, true, true)
	svc := &fakeProvider{revokeErr: postgres.ErrAlreadyRevoked}
	r := newTestRouter(t, svc, ks)

	w := doJSON(r, http.MethodDelete, "/api/v1/licenses/"+uuid.NewString(), key, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCustomerDelete(t *testing.T) {
	key, ks := mintKey(t, true, false, true)
	svc := &fakeProvider{}
	r := newTestRouter(t, svc, ks)

	w := doJSON(r, http.MethodDelete, "/api/v1/customers/CUST-001", key, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if svc.deletedCustomer != "CUST-001" {
		t.Fatalf("deleted %q", svc.deletedCustomer)
	}
}

func TestCustomerDeleteNotFound(t *testing.T) {
	key, ks := mintKey(t, true, false, true)
	svc := &fakeProvider{deleteErr: postgres.ErrNotFound}
	r := newTestRouter(t, svc, ks)

	w := doJSON(r, http.MethodDelete, "/api/v1/customers/ghost", key, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAdminGatedOnRevokePermission(t *testing.T) {
	key, ks := mintKey(t, true, false, true)
	r := newTestRouter(t, &fakeProvider{}, ks)

	w := doJSON(r, http.MethodGet, "/api/v1/admin/stats", key, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestFingerprintPreview(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{}, &fakeKeyStore{})
	w := doJSON(r, http.MethodPost, "/api/v1/fingerprint", "", gin.H{
		"db_uuid": "0f3a", "domain": "erp.example.cd",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Fingerprint string `json:"fingerprint"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	want := fingerprint.Generate(fingerprint.Identity{DBUUID: "0f3a", Domain: "erp.example.cd"})
	if resp.Fingerprint != want {
		t.Fatalf("fingerprint = %q, want %q", resp.Fingerprint, want)
	}
}
