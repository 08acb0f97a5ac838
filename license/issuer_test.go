package license

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/biz4a/aegis/keyring"
)

func testKeyring(t *testing.T, kid string) *keyring.Keyring {
	t.Helper()
	priv, err := keyring.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	k, err := keyring.New(kid, priv, nil)
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	return k
}

const testIssuerURL = "https://license.biz4a.com"

func validParams() IssueParams {
	return IssueParams{
		Customer:        Customer{ID: "CUST-001", Name: "Acme Corporation"},
		ModuleName:      "biz4a_payroll_drc",
		AllowedVersions: []string{"17", "18"},
		Term:            Perpetual(),
	}
}

func decodeSegment(t *testing.T, token string, idx int) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[idx])
	if err != nil {
		t.Fatalf("decode segment %d: %v", idx, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal segment %d: %v", idx, err)
	}
	return m
}

func TestIssueWireFormat(t *testing.T) {
	k := testKeyring(t, "aegis-2026-01")
	iss := NewIssuer(k, testIssuerURL)

	token, err := iss.Issue(validParams())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	header := decodeSegment(t, token, 0)
	if header["alg"] != "EdDSA" {
		t.Errorf("alg = %v", header["alg"])
	}
	if header["typ"] != "JWT" {
		t.Errorf("typ = %v", header["typ"])
	}
	if header["kid"] != "aegis-2026-01" {
		t.Errorf("kid = %v", header["kid"])
	}

	payload := decodeSegment(t, token, 1)
	if payload["iss"] != testIssuerURL {
		t.Errorf("iss = %v", payload["iss"])
	}
	if payload["license_type"] != "perpetual" {
		t.Errorf("license_type = %v", payload["license_type"])
	}
	if _, ok := payload["jti"].(string); !ok {
		t.Error("missing jti")
	}
	if _, ok := payload["iat"].(float64); !ok {
		t.Error("missing iat")
	}
	cust, _ := payload["customer"].(map[string]any)
	if cust["id"] != "CUST-001" || cust["name"] != "Acme Corporation" {
		t.Errorf("customer = %v", payload["customer"])
	}
	mod, _ := payload["module"].(map[string]any)
	if mod["technical_name"] != "biz4a_payroll_drc" {
		t.Errorf("module = %v", payload["module"])
	}
}

func TestIssuePerpetualOmitsExp(t *testing.T) {
	k := testKeyring(t, "k1")
	iss := NewIssuer(k, testIssuerURL)

	token, err := iss.Issue(validParams())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	payload := decodeSegment(t, token, 1)
	if _, present := payload["exp"]; present {
		t.Error("perpetual license must not carry an exp claim")
	}
	if _, present := payload["instance_fingerprint"]; present {
		t.Error("unbound license must not carry instance_fingerprint")
	}
}

func TestIssueDemoComputesExp(t *testing.T) {
	k := testKeyring(t, "k1")
	iss := NewIssuer(k, testIssuerURL)
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return issued }

	p := validParams()
	p.Term = Demo(30 * 24 * time.Hour)
	token, err := iss.Issue(p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	payload := decodeSegment(t, token, 1)
	exp, ok := payload["exp"].(float64)
	if !ok {
		t.Fatal("demo license missing exp claim")
	}
	want := issued.Add(30 * 24 * time.Hour).Unix()
	if int64(exp) != want {
		t.Errorf("exp = %d, want %d", int64(exp), want)
	}
	if int64(payload["iat"].(float64)) != issued.Unix() {
		t.Errorf("iat = %v, want %d", payload["iat"], issued.Unix())
	}
}

func TestIssueValidation(t *testing.T) {
	k := testKeyring(t, "k1")
	iss := NewIssuer(k, testIssuerURL)

	cases := []struct {
		name   string
		mutate func(*IssueParams)
		want   error
	}{
		{"empty versions", func(p *IssueParams) { p.AllowedVersions = nil }, ErrEmptyVersionList},
		{"zero term", func(p *IssueParams) { p.Term = Term{} }, ErrInvalidType},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := validParams()
			c.mutate(&p)
			_, err := iss.Issue(p)
			if err != c.want {
				t.Errorf("err = %v, want %v", err, c.want)
			}
		})
	}

	p := validParams()
	p.Customer.ID = " "
	if _, err := iss.Issue(p); err == nil {
		t.Error("expected error for blank customer id")
	}
}

func TestTermFor(t *testing.T) {
	if _, err := TermFor(TypePerpetual, time.Hour); err != ErrInvalidDuration {
		t.Errorf("perpetual with duration: err = %v", err)
	}
	if _, err := TermFor(TypeSubscription, 0); err != ErrInvalidDuration {
		t.Errorf("subscription without duration: err = %v", err)
	}
	if _, err := TermFor(Type("trial"), time.Hour); err != ErrInvalidType {
		t.Errorf("unknown type: err = %v", err)
	}
	term, err := TermFor(TypeDemo, 24*time.Hour)
	if err != nil {
		t.Fatalf("TermFor(demo): %v", err)
	}
	if d, expires := term.Duration(); !expires || d != 24*time.Hour {
		t.Errorf("Duration() = %v, %v", d, expires)
	}
	if _, expires := Perpetual().Duration(); expires {
		t.Error("perpetual term reports an expiry")
	}
}

func TestIssueFreshLicenseIDs(t *testing.T) {
	k := testKeyring(t, "k1")
	iss := NewIssuer(k, testIssuerURL)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := iss.Issue(validParams())
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		jti := decodeSegment(t, token, 1)["jti"].(string)
		if seen[jti] {
			t.Fatalf("license id %q reused", jti)
		}
		seen[jti] = true
	}
}
