// Package licensetest provides a throwaway license authority for
// integration tests. It mints real Ed25519-signed tokens and serves
// the matching JWKS over an httptest server, so code under test can
// exercise the full verification path without a production keyring.
//
// Example:
//
//	auth := licensetest.NewAuthority(t)
//	token := auth.MintPerpetual(t, "CUST-001", "Acme", "biz4a_payroll_drc", []string{"17", "18"})
//	claims, err := auth.Verifier().Verify(ctx, token, "biz4a_payroll_drc", "17", nil)
package licensetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/biz4a/aegis/keyring"
	"github.com/biz4a/aegis/license"
)

// DefaultIssuer is the iss claim the authority signs with.
const DefaultIssuer = "https://license.biz4a.com"

// Authority bundles a keyring, issuer, verifier, and a JWKS endpoint.
type Authority struct {
	Keys   *keyring.Handle
	issuer *license.Issuer
	server *httptest.Server
}

// NewAuthority builds a fresh authority with one generated signing key.
// The JWKS server is closed automatically when the test ends.
func NewAuthority(t *testing.T) *Authority {
	t.Helper()

	priv, err := keyring.GenerateKey()
	if err != nil {
		t.Fatalf("licensetest: generate key: %v", err)
	}
	ring, err := keyring.New(keyring.NextKID(time.Now().UTC(), 1), priv, nil)
	if err != nil {
		t.Fatalf("licensetest: build keyring: %v", err)
	}

	a := &Authority{Keys: keyring.NewHandle(ring)}
	a.issuer = license.NewIssuer(a.Keys, DefaultIssuer)

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", a.handleJWKS)
	a.server = httptest.NewServer(mux)
	t.Cleanup(a.server.Close)

	return a
}

// URL returns the base URL of the JWKS server.
func (a *Authority) URL() string { return a.server.URL }

// Issuer exposes the signing side for custom IssueParams.
func (a *Authority) Issuer() *license.Issuer { return a.issuer }

// Verifier returns a verifier wired to this authority's keys. Callers
// may set Leeway, Gate, and GatePolicy on the result.
func (a *Authority) Verifier() *license.Verifier {
	return license.NewVerifier(a.Keys, DefaultIssuer)
}

// MintPerpetual signs a perpetual license for the given customer and
// module.
func (a *Authority) MintPerpetual(t *testing.T, customerID, customerName, moduleName string, versions []string) string {
	t.Helper()
	return a.mint(t, license.IssueParams{
		Customer:        license.Customer{ID: customerID, Name: customerName},
		ModuleName:      moduleName,
		AllowedVersions: versions,
		Term:            license.Perpetual(),
	})
}

// MintSubscription signs a subscription license with the given
// duration.
func (a *Authority) MintSubscription(t *testing.T, customerID, customerName, moduleName string, versions []string, d time.Duration) string {
	t.Helper()
	return a.mint(t, license.IssueParams{
		Customer:        license.Customer{ID: customerID, Name: customerName},
		ModuleName:      moduleName,
		AllowedVersions: versions,
		Term:            license.Subscription(d),
	})
}

// MintExpired signs a demo license whose expiry is already in the past,
// for testing expiry handling.
func (a *Authority) MintExpired(t *testing.T, customerID, customerName, moduleName string, versions []string) string {
	t.Helper()
	tok := a.mint(t, license.IssueParams{
		Customer:        license.Customer{ID: customerID, Name: customerName},
		ModuleName:      moduleName,
		AllowedVersions: versions,
		Term:            license.Demo(time.Second),
	})
	// The shortest legal term still needs a beat to lapse.
	time.Sleep(1100 * time.Millisecond)
	return tok
}

func (a *Authority) mint(t *testing.T, p license.IssueParams) string {
	t.Helper()
	tok, err := a.issuer.Issue(p)
	if err != nil {
		t.Fatalf("licensetest: issue: %v", err)
	}
	return tok
}

func (a *Authority) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	set, err := a.Keys.Current().JWKS()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}
