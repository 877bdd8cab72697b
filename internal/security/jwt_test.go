package security

import (
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer := NewJWTIssuer("test-secret", time.Hour)
	token, err := issuer.Issue("tenant-1", "user-1", "device-1", "ios")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.TenantID != "tenant-1" || claims.UserID != "user-1" || claims.DeviceID != "device-1" || claims.Platform != "ios" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTIssuer("secret-a", time.Hour).Issue("t", "u", "d", "android")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := NewJWTIssuer("secret-b", time.Hour).Verify(token); err == nil {
		t.Fatal("expected verify with wrong secret to fail")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewJWTIssuer("test-secret", -time.Minute)
	token, err := issuer.Issue("t", "u", "d", "web")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected verify to fail for expired token")
	}
}

func TestNewJWTIssuerDefaultsTTL(t *testing.T) {
	issuer := NewJWTIssuer("s", 0)
	if issuer.ttl != time.Hour {
		t.Fatalf("expected default ttl of 1h, got %v", issuer.ttl)
	}
}
