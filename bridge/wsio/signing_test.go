package wsio

import (
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func fixedClock() Clock {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return Clock{
		Now:   func() time.Time { return fixed },
		Nonce: func() string { return "fixed-nonce" },
	}
}

func TestSignedURLIsDeterministicForFixedClock(t *testing.T) {
	signer := &URLSigner{KeyID: "key-1", SecretKey: "deadbeef", Region: "ny", Clock: fixedClock()}

	a, err := signer.SignedURL("wss://example.test/stream", "GET")
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	b, err := signer.SignedURL("wss://example.test/stream", "GET")
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical signed URLs for fixed clock, got:\n%s\n%s", a, b)
	}
}

func TestSignedURLCarriesExpectedClaims(t *testing.T) {
	signer := &URLSigner{KeyID: "key-1", SecretKey: "deadbeef", Region: "eu", Clock: fixedClock()}

	signed, err := signer.SignedURL("wss://example.test/stream", "GET")
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parsing signed URL: %v", err)
	}
	tokenStr := u.Query().Get("jwt")
	if tokenStr == "" {
		t.Fatal("expected jwt query parameter")
	}

	token, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		t.Fatalf("parsing token: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)

	for _, key := range []string{"iss", "kid", "client_id", "key_id"} {
		if claims[key] != "key-1" {
			t.Errorf("claim %s = %v, want key-1", key, claims[key])
		}
	}
	if claims["region"] != "eu" {
		t.Errorf("claim region = %v, want eu", claims["region"])
	}
	if claims["nonce"] != "fixed-nonce" {
		t.Errorf("claim nonce = %v, want fixed-nonce", claims["nonce"])
	}
	if claims["connection_expiry"] == nil {
		t.Error("expected connection_expiry claim in signed payload")
	}
	if u.Query().Get("connection_expiry") != "" {
		t.Error("connection_expiry must not appear as an unsigned query parameter")
	}
}

func TestSignedURLRejectsNonHexSecret(t *testing.T) {
	signer := &URLSigner{KeyID: "key-1", SecretKey: "not-hex", Region: "ny", Clock: fixedClock()}
	if _, err := signer.SignedURL("wss://example.test/stream", "GET"); err == nil {
		t.Fatal("expected an error for a non-hex secret key")
	}
}

func TestNewURLSignerDefaultsRegionToNY(t *testing.T) {
	signer := NewURLSigner("k", "s", "")
	if signer.Region != "ny" {
		t.Errorf("expected default region 'ny', got %q", signer.Region)
	}
}
