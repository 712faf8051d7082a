package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/models"
	"github.com/guitaripod/pixie/internal/oauthflow"
)

// OAuthHandler drives the authorization-code (web) and native-token (mobile)
// identity surfaces for all three providers.
type OAuthHandler struct {
	github *oauthflow.GitHubFlow
	google *oauthflow.GoogleFlow
	apple  *oauthflow.AppleFlow
}

// NewOAuthHandler creates an OAuth handler.
func NewOAuthHandler(github *oauthflow.GitHubFlow, google *oauthflow.GoogleFlow, apple *oauthflow.AppleFlow) *OAuthHandler {
	return &OAuthHandler{github: github, google: google, apple: apple}
}

// Start handles GET /v1/auth/{provider} by redirecting to the provider's
// authorize URL. It is a raw handler (not huma-typed) because its only
// response is a 302 redirect, never a JSON body.
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	state := r.URL.Query().Get("state")
	redirectURI := r.URL.Query().Get("redirect_uri")

	var authURL string
	switch provider {
	case models.ProviderGitHub:
		authURL = h.github.AuthorizationURL(state, redirectURI)
	case models.ProviderGoogle:
		authURL = h.google.AuthorizationURL(state, redirectURI)
	case models.ProviderApple:
		authURL = h.apple.AuthorizationURL(state, redirectURI)
	default:
		apperror.WithParam(apperror.BadRequest, "unsupported oauth provider", "provider").WriteJSON(w)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// CallbackInput is the path+body of POST /v1/auth/{provider}/callback.
type CallbackInput struct {
	Provider string `path:"provider"`
	Body     struct {
		Code        string `json:"code" minLength:"1"`
		State       string `json:"state,omitempty"`
		RedirectURI string `json:"redirect_uri"`
	}
}

// IdentityOutput is returned by every identity-issuing endpoint: the
// authorization-code callback, the native token exchange, and device-flow
// completion.
type IdentityOutput struct {
	Body struct {
		APIKey string `json:"api_key"`
		UserID string `json:"user_id"`
	}
}

// Callback handles POST /v1/auth/{provider}/callback.
func (h *OAuthHandler) Callback(ctx context.Context, input *CallbackInput) (*IdentityOutput, error) {
	var user *models.User
	var err error

	switch input.Provider {
	case models.ProviderGitHub:
		user, err = h.github.Exchange(ctx, input.Body.Code, input.Body.RedirectURI)
	case models.ProviderGoogle:
		user, err = h.google.Exchange(ctx, input.Body.Code, input.Body.RedirectURI)
	case models.ProviderApple:
		user, err = h.apple.Exchange(ctx, input.Body.Code, input.Body.RedirectURI)
	default:
		err = apperror.WithParam(apperror.BadRequest, "unsupported oauth provider", "provider")
	}
	if err != nil {
		return nil, humaErr(err)
	}

	out := &IdentityOutput{}
	out.Body.APIKey = user.APIKey
	out.Body.UserID = user.ID
	return out, nil
}

// NativeTokenInput is the path+body of POST /v1/auth/{provider}/token.
type NativeTokenInput struct {
	Provider string `path:"provider"`
	Body     struct {
		IDToken string `json:"id_token" minLength:"1"`
	}
}

// NativeToken handles POST /v1/auth/{google|apple}/token.
func (h *OAuthHandler) NativeToken(ctx context.Context, input *NativeTokenInput) (*IdentityOutput, error) {
	var user *models.User
	var err error

	switch input.Provider {
	case models.ProviderGoogle:
		user, err = h.google.ExchangeNativeIDToken(ctx, input.Body.IDToken)
	case models.ProviderApple:
		user, err = h.apple.ExchangeNativeIDToken(ctx, input.Body.IDToken)
	default:
		err = apperror.WithParam(apperror.BadRequest, "unsupported native token provider", "provider")
	}
	if err != nil {
		return nil, humaErr(err)
	}

	out := &IdentityOutput{}
	out.Body.APIKey = user.APIKey
	out.Body.UserID = user.ID
	return out, nil
}
