package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AEGIS_DATABASE_URL", "postgres://localhost/aegis")

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Issuer != "https://license.biz4a.com" {
		t.Errorf("Issuer = %q", c.Issuer)
	}
	if c.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", c.HTTPAddr)
	}
	if c.VerifyLeeway != time.Minute {
		t.Errorf("VerifyLeeway = %v", c.VerifyLeeway)
	}
	if c.RevocationPolicy != "fail-closed" {
		t.Errorf("RevocationPolicy = %q", c.RevocationPolicy)
	}
	if c.IsProd() {
		t.Error("default env should not be prod")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("AEGIS_DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("missing database url should fail")
	}
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	t.Setenv("AEGIS_DATABASE_URL", "postgres://localhost/aegis")
	t.Setenv("AEGIS_REVOCATION_POLICY", "sometimes")
	if _, err := Load(); err == nil {
		t.Fatal("unknown policy should fail validation")
	}
}

func TestValidateRejectsNegativeLeeway(t *testing.T) {
	t.Setenv("AEGIS_DATABASE_URL", "postgres://localhost/aegis")
	t.Setenv("AEGIS_VERIFY_LEEWAY", "-5s")
	if _, err := Load(); err == nil {
		t.Fatal("negative leeway should fail validation")
	}
}
