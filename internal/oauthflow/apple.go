package oauthflow

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/guitaripod/pixie/internal/account"
	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
	"github.com/guitaripod/pixie/internal/models"
)

const (
	appleIssuer   = "https://appleid.apple.com"
	appleTokenURL = "https://appleid.apple.com/auth/token"
	appleAuthURL  = "https://appleid.apple.com/auth/authorize"
)

// AppleFlow drives Sign in with Apple: the authorization-code exchange (web,
// which requires a freshly signed client_secret JWT on every request because
// Apple does not accept a static secret) and native ID-token verification
// (iOS, where the client already holds an identityToken from AuthenticationServices).
type AppleFlow struct {
	clientID    string // the Services ID used for web redirects
	teamID      string
	keyID       string
	privateKey  *ecdsa.PrivateKey
	accounts    *account.Service
	http        *http.Client
	bundleIDs   []string // native app bundle ID(s), accepted as an additional audience
	verifier    *idTokenVerifier
}

// NewAppleFlow builds an Apple flow from the gateway's configured credentials.
// If the configured private key fails to parse, signing-dependent operations
// (the authorization-code path) return an error lazily rather than panicking
// at startup, so native-only deployments aren't forced to configure it.
func NewAppleFlow(cfg *config.Config, accounts *account.Service) *AppleFlow {
	key, _ := jwt.ParseECPrivateKeyFromPEM([]byte(cfg.OAuthApplePrivateKey))
	bundleIDs := []string{cfg.OAuthAppleClientID}
	return &AppleFlow{
		clientID:   cfg.OAuthAppleClientID,
		teamID:     cfg.OAuthAppleTeamID,
		keyID:      cfg.OAuthAppleKeyID,
		privateKey: key,
		accounts:   accounts,
		http:       &http.Client{},
		bundleIDs:  bundleIDs,
		verifier:   newIDTokenVerifier(appleIssuer, "https://appleid.apple.com/auth/keys"),
	}
}

// AuthorizationURL is redirected to by GET /v1/auth/apple.
func (f *AppleFlow) AuthorizationURL(state, redirectURI string) string {
	v := url.Values{}
	v.Set("client_id", f.clientID)
	v.Set("redirect_uri", redirectURI)
	v.Set("response_type", "code")
	v.Set("response_mode", "form_post")
	v.Set("scope", "email name")
	v.Set("state", state)
	return appleAuthURL + "?" + v.Encode()
}

type appleTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

// Exchange trades an authorization code for the caller's local user.
func (f *AppleFlow) Exchange(ctx context.Context, code, redirectURI string) (*models.User, error) {
	clientSecret, err := f.clientSecretJWT()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("client_id", f.clientID)
	form.Set("client_secret", clientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, appleTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, apperror.WrapKind(apperror.Internal, "failed to reach Apple", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.New(apperror.Unauthorized, "Apple rejected the authorization code")
	}

	var tok appleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, apperror.Wrap(err)
	}

	claims, err := f.verifier.verify(tok.IDToken, append([]string{f.clientID}, f.bundleIDs...))
	if err != nil {
		return nil, apperror.WrapKind(apperror.Unauthorized, "invalid Apple ID token", err)
	}

	return f.accounts.FindOrCreate(ctx, account.Identity{
		Provider:   models.ProviderApple,
		ProviderID: claims.Subject,
		Email:      claims.Email,
		Name:       "Apple User", // Apple's ID token never carries a display name
	})
}

// ExchangeNativeIDToken verifies an identityToken minted by AuthenticationServices
// on an iOS client and finds or creates the corresponding local user.
func (f *AppleFlow) ExchangeNativeIDToken(ctx context.Context, idToken string) (*models.User, error) {
	claims, err := f.verifier.verify(trimBearer(idToken), f.bundleIDs)
	if err != nil {
		return nil, apperror.WrapKind(apperror.Unauthorized, "invalid Apple ID token", err)
	}

	return f.accounts.FindOrCreate(ctx, account.Identity{
		Provider:   models.ProviderApple,
		ProviderID: claims.Subject,
		Email:      claims.Email,
		Name:       "Apple User",
	})
}

// clientSecretJWT mints the ES256 JWT (valid for 180 days) Apple requires in place of
// a static client secret for every authorization-code exchange.
func (f *AppleFlow) clientSecretJWT() (string, error) {
	if f.privateKey == nil {
		return "", apperror.New(apperror.Internal, "Apple Sign In is not configured")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    f.teamID,
		Subject:   f.clientID,
		Audience:  jwt.ClaimStrings{appleIssuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(180 * 24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = f.keyID

	signed, err := token.SignedString(f.privateKey)
	if err != nil {
		return "", apperror.WrapKind(apperror.Internal, "failed to sign Apple client secret", err)
	}
	return signed, nil
}
