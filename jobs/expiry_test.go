package jobs

import "testing"

func TestExpirySweepKind(t *testing.T) {
	if got := (ExpirySweepArgs{}).Kind(); got != "license_expiry_sweep" {
		t.Fatalf("Kind() = %q", got)
	}
}
