package oauthflow

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestJWKSServer(t *testing.T, key *rsa.PrivateKey, kid string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
		e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{"kid": kid, "kty": "RSA", "use": "sig", "n": n, "e": e}},
		})
	}))
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, kid, issuer, audience, subject string) string {
	t.Helper()
	claims := idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email:         "user@example.com",
		EmailVerified: true,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestIDTokenVerifier_VerifySucceeds(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	server := newTestJWKSServer(t, key, "test-kid")
	defer server.Close()

	verifier := newIDTokenVerifier("https://issuer.example.com", server.URL)
	token := signTestToken(t, key, "test-kid", "https://issuer.example.com", "client-123", "user-1")

	claims, err := verifier.verify(token, []string{"client-123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
	if !claims.emailVerified() {
		t.Error("expected email_verified to be true")
	}
}

func TestIDTokenVerifier_RejectsWrongAudience(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	server := newTestJWKSServer(t, key, "test-kid")
	defer server.Close()

	verifier := newIDTokenVerifier("https://issuer.example.com", server.URL)
	token := signTestToken(t, key, "test-kid", "https://issuer.example.com", "someone-else", "user-1")

	if _, err := verifier.verify(token, []string{"client-123"}); err == nil {
		t.Error("expected audience mismatch to be rejected")
	}
}

func TestIDTokenVerifier_RejectsWrongIssuer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	server := newTestJWKSServer(t, key, "test-kid")
	defer server.Close()

	verifier := newIDTokenVerifier("https://issuer.example.com", server.URL)
	token := signTestToken(t, key, "test-kid", "https://wrong-issuer.com", "client-123", "user-1")

	if _, err := verifier.verify(token, []string{"client-123"}); err == nil {
		t.Error("expected issuer mismatch to be rejected")
	}
}

func TestEmailVerified_StringForm(t *testing.T) {
	c := &idTokenClaims{EmailVerified: "true"}
	if !c.emailVerified() {
		t.Error("expected string \"true\" to be treated as verified")
	}
	c.EmailVerified = "false"
	if c.emailVerified() {
		t.Error("expected string \"false\" to be treated as unverified")
	}
}
