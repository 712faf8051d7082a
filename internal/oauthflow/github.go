package oauthflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/guitaripod/pixie/internal/account"
	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
	"github.com/guitaripod/pixie/internal/models"
)

// GitHubFlow drives the authorization-code exchange against github.com.
type GitHubFlow struct {
	cfg      oauth2.Config
	accounts *account.Service
	http     *http.Client
}

// NewGitHubFlow builds a GitHub flow from the gateway's configured client credentials.
func NewGitHubFlow(cfg *config.Config, accounts *account.Service) *GitHubFlow {
	return &GitHubFlow{
		cfg: oauth2.Config{
			ClientID:     cfg.OAuthGitHubClientID,
			ClientSecret: cfg.OAuthGitHubClientSecret,
			Endpoint:     githuboauth.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		accounts: accounts,
		http:     &http.Client{},
	}
}

// AuthorizationURL is redirected to by GET /v1/auth/github.
func (f *GitHubFlow) AuthorizationURL(state, redirectURI string) string {
	cfg := f.cfg
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL(state)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange trades an authorization code for the caller's local user.
func (f *GitHubFlow) Exchange(ctx context.Context, code, redirectURI string) (*models.User, error) {
	cfg := f.cfg
	cfg.RedirectURL = redirectURI

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.WrapKind(apperror.Unauthorized, "github code exchange failed", err)
	}

	user, err := f.fetchJSON(ctx, token, "https://api.github.com/user", &githubUser{})
	if err != nil {
		return nil, err
	}
	ghUser := user.(*githubUser)

	if ghUser.Email == "" {
		emails, err := f.fetchJSON(ctx, token, "https://api.github.com/user/emails", &[]githubEmail{})
		if err != nil {
			return nil, err
		}
		for _, e := range *emails.(*[]githubEmail) {
			if e.Primary && e.Verified {
				ghUser.Email = e.Email
				break
			}
		}
		if ghUser.Email == "" {
			for _, e := range *emails.(*[]githubEmail) {
				if e.Verified {
					ghUser.Email = e.Email
					break
				}
			}
		}
	}

	name := ghUser.Name
	if name == "" {
		name = ghUser.Login
	}

	return f.accounts.FindOrCreate(ctx, account.Identity{
		Provider:   models.ProviderGitHub,
		ProviderID: fmt.Sprintf("%d", ghUser.ID),
		Email:      ghUser.Email,
		Name:       name,
	})
}

func (f *GitHubFlow) fetchJSON(ctx context.Context, token *oauth2.Token, url string, out any) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "pixie-gateway")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, apperror.WrapKind(apperror.Internal, "failed to reach GitHub", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.New(apperror.Unauthorized, "GitHub rejected the request")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, apperror.Wrap(err)
	}
	return out, nil
}
