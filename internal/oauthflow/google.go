package oauthflow

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/guitaripod/pixie/internal/account"
	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
	"github.com/guitaripod/pixie/internal/models"
)

const googleIssuer = "https://accounts.google.com"

// GoogleFlow drives both the authorization-code exchange (web/CLI) and native
// ID-token verification (mobile, where the client already holds a Google
// Sign-In ID token and just wants it traded for a pixie API key).
type GoogleFlow struct {
	cfg       oauth2.Config
	accounts  *account.Service
	http      *http.Client
	audiences []string
	verifier  *idTokenVerifier
}

// NewGoogleFlow builds a Google flow from the gateway's configured client credentials.
func NewGoogleFlow(cfg *config.Config, accounts *account.Service) *GoogleFlow {
	audiences := cfg.OAuthGoogleClientIDs
	if len(audiences) == 0 && cfg.OAuthGoogleClientID != "" {
		audiences = []string{cfg.OAuthGoogleClientID}
	}
	return &GoogleFlow{
		cfg: oauth2.Config{
			ClientID:     cfg.OAuthGoogleClientID,
			ClientSecret: cfg.OAuthGoogleClientSecret,
			Endpoint:     googleoauth.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		accounts:  accounts,
		http:      &http.Client{},
		audiences: audiences,
		verifier:  newIDTokenVerifier(googleIssuer, "https://www.googleapis.com/oauth2/v3/certs"),
	}
}

// AuthorizationURL is redirected to by GET /v1/auth/google.
func (f *GoogleFlow) AuthorizationURL(state, redirectURI string) string {
	cfg := f.cfg
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// Exchange trades an authorization code for the caller's local user.
func (f *GoogleFlow) Exchange(ctx context.Context, code, redirectURI string) (*models.User, error) {
	cfg := f.cfg
	cfg.RedirectURL = redirectURI

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.WrapKind(apperror.Unauthorized, "google code exchange failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, apperror.WrapKind(apperror.Internal, "failed to reach Google", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.New(apperror.Unauthorized, "Google rejected the request")
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperror.Wrap(err)
	}

	name := info.Name
	if name == "" {
		name = "Google User"
	}
	return f.accounts.FindOrCreate(ctx, account.Identity{
		Provider:   models.ProviderGoogle,
		ProviderID: info.ID,
		Email:      info.Email,
		Name:       name,
	})
}

// ExchangeNativeIDToken verifies a Google Sign-In ID token minted natively on
// a mobile client and finds or creates the corresponding local user.
func (f *GoogleFlow) ExchangeNativeIDToken(ctx context.Context, idToken string) (*models.User, error) {
	claims, err := f.verifier.verify(trimBearer(idToken), f.audiences)
	if err != nil {
		return nil, apperror.WrapKind(apperror.Unauthorized, "invalid Google ID token", err)
	}
	if !claims.emailVerified() {
		return nil, apperror.New(apperror.Unauthorized, "Google account email is not verified")
	}

	return f.accounts.FindOrCreate(ctx, account.Identity{
		Provider:   models.ProviderGoogle,
		ProviderID: claims.Subject,
		Email:      claims.Email,
		Name:       claims.Email,
	})
}
