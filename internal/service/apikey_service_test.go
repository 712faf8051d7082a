package service

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	key := GenerateAPIKey()

	if !strings.HasPrefix(key, "pixie_") {
		t.Errorf("GenerateAPIKey() = %q, want prefix pixie_", key)
	}

	hex := strings.TrimPrefix(key, "pixie_")
	if len(hex) != 32 {
		t.Errorf("hex suffix length = %d, want 32", len(hex))
	}
	if strings.Contains(hex, "-") {
		t.Errorf("hex suffix %q should not contain dashes", hex)
	}
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	a := GenerateAPIKey()
	b := GenerateAPIKey()
	if a == b {
		t.Error("expected two calls to produce distinct keys")
	}
}
