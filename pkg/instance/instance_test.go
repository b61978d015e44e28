package instance

import (
	"strings"
	"testing"
)

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("CABINETRY_INSTANCE_ID", "cron-1")
	if got := GetID(); got != "cron-1" {
		t.Fatalf("expected env id, got %q", got)
	}
}

func TestGetIDFallsBackToHostAndPID(t *testing.T) {
	t.Setenv("CABINETRY_INSTANCE_ID", "")
	got := GetID()
	if got == "" || !strings.Contains(got, "-") {
		t.Fatalf("expected host-pid identifier, got %q", got)
	}
}
