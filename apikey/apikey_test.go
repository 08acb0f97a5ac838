package apikey

import (
	"strings"
	"testing"
)

func TestGenerateAndVerify(t *testing.T) {
	plaintext, hash, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(plaintext, Prefix) {
		t.Errorf("plaintext missing prefix: %q", plaintext)
	}
	if !WellFormed(plaintext) {
		t.Errorf("generated key not well formed: %q", plaintext)
	}

	ok, err := Verify(hash, plaintext)
	if err != nil || !ok {
		t.Fatalf("Verify(own hash) = %v, %v", ok, err)
	}

	ok, err = Verify(hash, plaintext+"x")
	if err != nil {
		t.Fatalf("Verify mismatched: %v", err)
	}
	if ok {
		t.Error("tampered key verified")
	}
}

func TestGenerateUnique(t *testing.T) {
	a, _, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a == b {
		t.Fatal("two generated keys collided")
	}
}

func TestWellFormed(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"aeg_", false},
		{"nope_abc", false},
		{"aeg_0OIl", false}, // 0, O, I, l are not base58
		{"aeg_3mJr7AoUXx2Wqd", true},
	}
	for _, c := range cases {
		if got := WellFormed(c.in); got != c.want {
			t.Errorf("WellFormed(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
