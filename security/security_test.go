package security_test

import (
	"testing"

	"github.com/quotaguard/rls-gateway/security"
)

func TestHashAPIKeyDeterministic(t *testing.T) {
	a := security.HashAPIKey("raw-key", "pepper")
	b := security.HashAPIKey("raw-key", "pepper")
	if a != b {
		t.Fatalf("expected deterministic hash, got %q vs %q", a, b)
	}
	if c := security.HashAPIKey("raw-key", "different-pepper"); c == a {
		t.Fatalf("expected different salt to change hash")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !security.ConstantTimeEqual("abc", "abc") {
		t.Fatalf("expected equal strings to compare equal")
	}
	if security.ConstantTimeEqual("abc", "abd") {
		t.Fatalf("expected different strings to compare unequal")
	}
}

func TestGenerateRawKeyUnique(t *testing.T) {
	a, err := security.GenerateRawKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := security.GenerateRawKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct random keys")
	}
	if len(a) == 0 {
		t.Fatalf("expected non-empty key")
	}
}

func TestParseBearerToken(t *testing.T) {
	tok, ok := security.ParseBearerToken("Bearer abc123")
	if !ok || tok != "abc123" {
		t.Fatalf("expected token abc123, got %q ok=%v", tok, ok)
	}
	if _, ok := security.ParseBearerToken(""); ok {
		t.Fatalf("expected empty header to fail")
	}
	if _, ok := security.ParseBearerToken("Basic abc123"); ok {
		t.Fatalf("expected non-bearer scheme to fail")
	}
}
