// Package oauthflow implements every identity surface the gateway accepts:
// the GitHub/Google authorization-code exchange used by the web and CLI
// callback routes, native ID-token verification for mobile clients, and the
// RFC 8628 device-code grant used by the CLI's headless login.
package oauthflow

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errInvalidToken = errors.New("invalid token")
	errJWKSFetch    = errors.New("failed to fetch JWKS")
)

// idTokenVerifier verifies RSA-signed OIDC ID tokens against a provider's
// published JWKS endpoint, caching keys for an hour at a time.
type idTokenVerifier struct {
	issuer     string
	jwksURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

func newIDTokenVerifier(issuer, jwksURL string) *idTokenVerifier {
	return &idTokenVerifier{
		issuer:     issuer,
		jwksURL:    jwksURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		keys:       map[string]*rsa.PublicKey{},
	}
}

// idTokenClaims is the subset of standard OIDC claims every supported
// native-token provider (Google, Apple) populates.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified any    `json:"email_verified,omitempty"` // bool (Google) or string "true"/"false" (Apple)
}

func (c *idTokenClaims) emailVerified() bool {
	switch v := c.EmailVerified.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// verify checks signature, issuer, expiry, and that aud is one of audiences.
func (v *idTokenVerifier) verify(tokenString string, audiences []string) (*idTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &idTokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("missing key ID in token header")
		}
		return v.publicKey(kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	claims, ok := token.Claims.(*idTokenClaims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	if claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", errInvalidToken, claims.Issuer)
	}

	audOK := false
	for _, want := range audiences {
		for _, got := range claims.Audience {
			if got == want {
				audOK = true
			}
		}
	}
	if !audOK {
		return nil, fmt.Errorf("%w: audience not accepted", errInvalidToken)
	}

	return claims, nil
}

func (v *idTokenVerifier) publicKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	if key, ok := v.keys[kid]; ok && time.Now().Before(v.expiresAt) {
		v.mu.RUnlock()
		return key, nil
	}
	v.mu.RUnlock()

	if err := v.refresh(); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %s not found in JWKS", kid)
	}
	return key, nil
}

func (v *idTokenVerifier) refresh() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if time.Now().Before(v.expiresAt) {
		return nil
	}

	resp, err := v.httpClient.Get(v.jwksURL)
	if err != nil {
		return fmt.Errorf("%w: %v", errJWKSFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", errJWKSFetch, resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("%w: %v", errJWKSFetch, err)
	}

	keys := map[string]*rsa.PublicKey{}
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	v.keys = keys
	v.expiresAt = time.Now().Add(time.Hour)
	return nil
}

func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func trimBearer(s string) string {
	return strings.TrimPrefix(s, "Bearer ")
}
