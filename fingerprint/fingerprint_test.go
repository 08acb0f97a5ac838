package fingerprint

import (
	"strings"
	"testing"
)

func TestGenerateDeterministic(t *testing.T) {
	id := Identity{DBUUID: "550e8400-e29b-41d4-a716-446655440000", Domain: "acme.odoo.com"}
	a := Generate(id)
	b := Generate(id)
	if a != b {
		t.Fatalf("same identity produced different fingerprints: %q vs %q", a, b)
	}
}

func TestGenerateFormat(t *testing.T) {
	fp := Generate(Identity{DBUUID: "uuid", Domain: "example.com"})
	if !strings.HasPrefix(fp, "sha256:") {
		t.Fatalf("missing algorithm tag: %q", fp)
	}
	digest := strings.TrimPrefix(fp, "sha256:")
	if len(digest) != 64 {
		t.Fatalf("expected 64 hex chars, got %d: %q", len(digest), digest)
	}
	if digest != strings.ToLower(digest) {
		t.Errorf("digest is not lowercase hex: %q", digest)
	}
}

func TestGenerateNormalizesDomainRepresentations(t *testing.T) {
	base := Generate(Identity{DBUUID: "uuid", Domain: "acme.odoo.com"})
	variants := []string{
		"ACME.Odoo.Com",
		"https://acme.odoo.com",
		"http://acme.odoo.com/",
		"acme.odoo.com:8069",
		"https://ACME.odoo.com:443/web/login",
		"  acme.odoo.com.  ",
	}
	for _, v := range variants {
		got := Generate(Identity{DBUUID: "uuid", Domain: v})
		if got != base {
			t.Errorf("domain %q did not normalize to same fingerprint", v)
		}
	}
}

func TestGenerateDistinguishesInstances(t *testing.T) {
	a := Generate(Identity{DBUUID: "uuid-a", Domain: "acme.odoo.com"})
	b := Generate(Identity{DBUUID: "uuid-b", Domain: "acme.odoo.com"})
	c := Generate(Identity{DBUUID: "uuid-a", Domain: "other.odoo.com"})
	if a == b || a == c {
		t.Fatalf("distinct identities collided: %q %q %q", a, b, c)
	}
}

func TestNormalizeDomain(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Example.COM", "example.com"},
		{"https://example.com:8080/path", "example.com"},
		{"example.com.", "example.com"},
		{" example.com ", "example.com"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeDomain(c.in); got != c.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
