package licensetest

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/biz4a/aegis/license"
)

func TestAuthorityRoundTrip(t *testing.T) {
	auth := NewAuthority(t)
	token := auth.MintPerpetual(t, "CUST-001", "Acme", "biz4a_payroll_drc", []string{"17", "18"})

	vc, err := auth.Verifier().Verify(context.Background(), token, "biz4a_payroll_drc", "17", nil)
	if err != nil {
		t.Fatal(err)
	}
	if vc.Customer.ID != "CUST-001" || vc.ExpiresAt != nil {
		t.Fatalf("claims = %+v", vc)
	}
}

func TestAuthorityServesJWKS(t *testing.T) {
	auth := NewAuthority(t)

	resp, err := http.Get(auth.URL() + "/.well-known/jwks.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	set, err := jwk.ParseReader(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 1 {
		t.Fatalf("set has %d keys", set.Len())
	}
	key, _ := set.Key(0)
	if key.KeyID() != auth.Keys.ActiveKID() {
		t.Fatalf("kid = %q, want %q", key.KeyID(), auth.Keys.ActiveKID())
	}
}

func TestMintExpiredIsExpired(t *testing.T) {
	auth := NewAuthority(t)
	token := auth.MintExpired(t, "CUST-001", "Acme", "biz4a_payroll_drc", []string{"17"})

	_, err := auth.Verifier().Verify(context.Background(), token, "biz4a_payroll_drc", "17", nil)
	if !errors.Is(err, &license.VerificationError{Kind: license.FailureExpired}) {
		t.Fatalf("err = %v, want expired", err)
	}
}

func TestMintSubscriptionCarriesExpiry(t *testing.T) {
	auth := NewAuthority(t)
	token := auth.MintSubscription(t, "CUST-001", "Acme", "biz4a_payroll_drc", []string{"17"}, 30*24*time.Hour)

	vc, err := auth.Verifier().Verify(context.Background(), token, "biz4a_payroll_drc", "17", nil)
	if err != nil {
		t.Fatal(err)
	}
	if vc.ExpiresAt == nil || vc.ExpiresIn == nil {
		t.Fatal("subscription should carry expiry")
	}
}
