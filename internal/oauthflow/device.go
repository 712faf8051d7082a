package oauthflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guitaripod/pixie/internal/account"
	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
	"github.com/guitaripod/pixie/internal/models"
	"github.com/guitaripod/pixie/internal/repository"
)

// DeviceFlow drives the RFC 8628 device-code grant the CLI uses for headless
// login: it starts an upstream device-code request with GitHub or Google,
// stores the mapping under its own opaque ID, and polls the upstream token
// endpoint on the caller's behalf each time the client polls us.
type DeviceFlow struct {
	cfg      *config.Config
	devices  repository.DeviceAuthRepository
	accounts *account.Service
	http     *http.Client
}

// NewDeviceFlow builds a device-code flow.
func NewDeviceFlow(cfg *config.Config, devices repository.DeviceAuthRepository, accounts *account.Service) *DeviceFlow {
	return &DeviceFlow{cfg: cfg, devices: devices, accounts: accounts, http: &http.Client{Timeout: 15 * time.Second}}
}

// DeviceCode is what's returned to the client from the start endpoint.
type DeviceCode struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               int
	Interval                int
}

type githubDeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type googleDeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// Start requests a device/user code pair from the upstream provider and
// records the flow under a freshly minted opaque ID.
func (f *DeviceFlow) Start(ctx context.Context, provider, clientType string) (*DeviceCode, error) {
	var upstreamDeviceCode, userCode, verificationURI string
	var expiresIn, interval int

	switch provider {
	case models.ProviderGitHub:
		form := url.Values{"client_id": {f.cfg.OAuthGitHubClientID}, "scope": {"read:user user:email"}}
		var resp githubDeviceCodeResponse
		if err := f.postForm(ctx, "https://github.com/login/device/code", form, &resp); err != nil {
			return nil, err
		}
		upstreamDeviceCode, userCode, verificationURI = resp.DeviceCode, resp.UserCode, resp.VerificationURI
		expiresIn, interval = resp.ExpiresIn, resp.Interval

	case models.ProviderGoogle:
		form := url.Values{"client_id": {f.cfg.OAuthGoogleClientID}, "scope": {"openid email profile"}}
		var resp googleDeviceCodeResponse
		if err := f.postForm(ctx, "https://oauth2.googleapis.com/device/code", form, &resp); err != nil {
			return nil, err
		}
		upstreamDeviceCode, userCode, verificationURI = resp.DeviceCode, resp.UserCode, resp.VerificationURL
		expiresIn, interval = resp.ExpiresIn, resp.Interval

	default:
		return nil, apperror.WithParam(apperror.BadRequest, "unsupported device-flow provider", "provider")
	}

	flow := &models.DeviceAuthFlow{
		ID:                 uuid.New().String(),
		UpstreamDeviceCode: upstreamDeviceCode,
		UserCode:           userCode,
		ClientType:         clientType,
		Provider:           provider,
		PollInterval:       interval,
		ExpiresAt:          time.Now().Add(time.Duration(expiresIn) * time.Second),
		CreatedAt:          time.Now(),
	}
	if err := f.devices.Create(ctx, flow); err != nil {
		return nil, apperror.Wrap(err)
	}

	return &DeviceCode{
		DeviceCode:              flow.ID,
		UserCode:                userCode,
		VerificationURI:         verificationURI,
		VerificationURIComplete: verificationURI + "?user_code=" + userCode,
		ExpiresIn:               expiresIn,
		Interval:                interval,
	}, nil
}

// PollResult is returned to the CLI on every poll of /auth/device/token.
type PollResult struct {
	Status string // "pending" | "complete"
	APIKey string
	UserID string
}

// tokenOrError covers both a successful token response and the RFC 8628
// polling errors (authorization_pending, slow_down, expired_token, access_denied).
type tokenOrError struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

// Poll checks whether the device-code grant has completed. It is safe to
// call repeatedly — a flow that already has a user attached short-circuits
// without hitting the upstream token endpoint again.
func (f *DeviceFlow) Poll(ctx context.Context, deviceAuthID string) (*PollResult, error) {
	flow, err := f.devices.GetByID(ctx, deviceAuthID)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	if flow == nil {
		return nil, apperror.New(apperror.NotFound, "invalid device code")
	}
	if flow.Denied {
		return nil, apperror.New(apperror.Unauthorized, "Access denied")
	}
	if time.Now().After(flow.ExpiresAt) {
		return nil, apperror.New(apperror.BadRequest, "Device code expired")
	}
	if flow.UserID != nil {
		user, err := f.accounts.GetByID(ctx, *flow.UserID)
		if err != nil {
			return nil, err
		}
		return &PollResult{Status: "complete", APIKey: user.APIKey, UserID: user.ID}, nil
	}

	var identity account.Identity
	switch flow.Provider {
	case models.ProviderGitHub:
		identity, err = f.pollGitHub(ctx, flow.UpstreamDeviceCode)
	case models.ProviderGoogle:
		identity, err = f.pollGoogle(ctx, flow.UpstreamDeviceCode)
	default:
		return nil, apperror.New(apperror.Internal, "unsupported device-flow provider")
	}
	if err != nil {
		switch apperror.As(err).Message {
		case "authorization_pending":
			return &PollResult{Status: "pending"}, nil
		case "slow_down":
			return nil, apperror.New(apperror.BadRequest, "Slow down")
		}
		return nil, err
	}

	user, err := f.accounts.FindOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := f.devices.SetUser(ctx, deviceAuthID, user.ID); err != nil {
		return nil, apperror.Wrap(err)
	}

	return &PollResult{Status: "complete", APIKey: user.APIKey, UserID: user.ID}, nil
}

func (f *DeviceFlow) pollGitHub(ctx context.Context, upstreamDeviceCode string) (account.Identity, error) {
	form := url.Values{
		"client_id":     {f.cfg.OAuthGitHubClientID},
		"client_secret": {f.cfg.OAuthGitHubClientSecret},
		"device_code":   {upstreamDeviceCode},
		"grant_type":    {"urn:ietf:params:oauth:grant-type:device_code"},
	}
	var tok tokenOrError
	if err := f.postForm(ctx, "https://github.com/login/oauth/access_token", form, &tok); err != nil {
		return account.Identity{}, err
	}
	if tok.Error != "" {
		return account.Identity{}, mapDeviceError(tok.Error)
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "pixie-gateway")
	resp, err := f.http.Do(req)
	if err != nil {
		return account.Identity{}, apperror.WrapKind(apperror.Internal, "failed to reach GitHub", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var ghUser struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return account.Identity{}, apperror.Wrap(err)
	}
	name := ghUser.Name
	if name == "" {
		name = ghUser.Login
	}
	return account.Identity{Provider: models.ProviderGitHub, ProviderID: strconv.FormatInt(ghUser.ID, 10), Email: ghUser.Email, Name: name}, nil
}

func (f *DeviceFlow) pollGoogle(ctx context.Context, upstreamDeviceCode string) (account.Identity, error) {
	form := url.Values{
		"client_id":     {f.cfg.OAuthGoogleClientID},
		"client_secret": {f.cfg.OAuthGoogleClientSecret},
		"device_code":   {upstreamDeviceCode},
		"grant_type":    {"urn:ietf:params:oauth:grant-type:device_code"},
	}
	var tok tokenOrError
	if err := f.postForm(ctx, "https://oauth2.googleapis.com/token", form, &tok); err != nil {
		return account.Identity{}, err
	}
	if tok.Error != "" {
		return account.Identity{}, mapDeviceError(tok.Error)
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	resp, err := f.http.Do(req)
	if err != nil {
		return account.Identity{}, apperror.WrapKind(apperror.Internal, "failed to reach Google", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var gUser struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&gUser); err != nil {
		return account.Identity{}, apperror.Wrap(err)
	}
	name := gUser.Name
	if name == "" {
		name = "Google User"
	}
	return account.Identity{Provider: models.ProviderGoogle, ProviderID: gUser.ID, Email: gUser.Email, Name: name}, nil
}

func mapDeviceError(code string) error {
	switch code {
	case "authorization_pending":
		return apperror.New(apperror.BadRequest, "authorization_pending")
	case "slow_down":
		return apperror.New(apperror.BadRequest, "slow_down")
	case "expired_token":
		return apperror.New(apperror.BadRequest, "Device code expired")
	case "access_denied":
		return apperror.New(apperror.Unauthorized, "Access denied")
	default:
		return apperror.New(apperror.Internal, "provider returned error: "+code)
	}
}

func (f *DeviceFlow) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return apperror.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return apperror.WrapKind(apperror.Internal, "failed to reach identity provider", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return json.NewDecoder(resp.Body).Decode(out)
}
