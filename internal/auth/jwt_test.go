package auth

import (
	"testing"
	"time"
)

func testManager() *Manager {
	return &Manager{
		Secret:     []byte("test-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Issuer:     "autodealers-backend",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := testManager()

	token, err := m.NewAccessToken("dealer", "tenant-1")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Role != "dealer" {
		t.Fatalf("expected role dealer, got %q", claims.Role)
	}
	if claims.TenantID != "tenant-1" {
		t.Fatalf("expected tenantId tenant-1, got %q", claims.TenantID)
	}
	if claims.Issuer != "autodealers-backend" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := testManager()

	token, err := m.NewAccessToken("seller", "tenant-1")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	other := testManager()
	other.Secret = []byte("another-secret")
	if _, err := other.Parse(token); err == nil {
		t.Fatal("expected parse failure with a different secret")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := testManager()
	m.AccessTTL = -time.Minute

	token, err := m.NewAccessToken("dealer", "tenant-1")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected parse failure for expired token")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := testManager().Parse("not-a-token"); err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestPasswordHashAndCompare(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if err := ComparePassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("ComparePassword error: %v", err)
	}
	if err := ComparePassword(hash, "wrong password"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestHashPasswordRejectsShort(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected error for short password")
	}
}
