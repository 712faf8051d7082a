package handlers

import (
	"context"
	"time"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/oauthflow"
	"github.com/guitaripod/pixie/internal/repository"
)

// DeviceHandler serves the CLI's RFC 8628 device-code grant.
type DeviceHandler struct {
	flow    *oauthflow.DeviceFlow
	devices repository.DeviceAuthRepository
}

// NewDeviceHandler creates a device-flow handler.
func NewDeviceHandler(flow *oauthflow.DeviceFlow, devices repository.DeviceAuthRepository) *DeviceHandler {
	return &DeviceHandler{flow: flow, devices: devices}
}

// DeviceCodeInput is the body of POST /v1/auth/device/code.
type DeviceCodeInput struct {
	Body struct {
		Provider   string `json:"provider" doc:"github | google"`
		ClientType string `json:"client_type" doc:"cli | mobile"`
	}
}

// DeviceCodeOutput is the response of POST /v1/auth/device/code.
type DeviceCodeOutput struct {
	Body struct {
		DeviceCode              string `json:"device_code"`
		UserCode                string `json:"user_code"`
		VerificationURI         string `json:"verification_uri"`
		VerificationURIComplete string `json:"verification_uri_complete"`
		ExpiresIn               int    `json:"expires_in"`
		Interval                int    `json:"interval"`
	}
}

// StartDeviceCode handles POST /v1/auth/device/code.
func (h *DeviceHandler) StartDeviceCode(ctx context.Context, input *DeviceCodeInput) (*DeviceCodeOutput, error) {
	dc, err := h.flow.Start(ctx, input.Body.Provider, input.Body.ClientType)
	if err != nil {
		return nil, humaErr(err)
	}

	out := &DeviceCodeOutput{}
	out.Body.DeviceCode = dc.DeviceCode
	out.Body.UserCode = dc.UserCode
	out.Body.VerificationURI = dc.VerificationURI
	out.Body.VerificationURIComplete = dc.VerificationURIComplete
	out.Body.ExpiresIn = dc.ExpiresIn
	out.Body.Interval = dc.Interval
	return out, nil
}

// DeviceTokenInput is the body of POST /v1/auth/device/token.
type DeviceTokenInput struct {
	Body struct {
		DeviceCode string `json:"device_code" minLength:"1"`
	}
}

// PollDeviceToken handles POST /v1/auth/device/token. A still-pending grant
// fails with bad_request "Authorization pending" so the CLI keeps polling;
// a provider slow_down answer fails with bad_request "Slow down", and expiry
// and denial surface through their own mapped kinds.
func (h *DeviceHandler) PollDeviceToken(ctx context.Context, input *DeviceTokenInput) (*IdentityOutput, error) {
	result, err := h.flow.Poll(ctx, input.Body.DeviceCode)
	if err != nil {
		return nil, humaErr(err)
	}
	if result.Status != "complete" {
		return nil, humaErr(apperror.New(apperror.BadRequest, "Authorization pending"))
	}

	out := &IdentityOutput{}
	out.Body.APIKey = result.APIKey
	out.Body.UserID = result.UserID
	return out, nil
}

// DeviceStatusInput is the path of GET /v1/auth/device/{device_code}/status.
type DeviceStatusInput struct {
	DeviceCode string `path:"device_code"`
}

// DeviceStatusOutput is the response of GET /v1/auth/device/{device_code}/status.
type DeviceStatusOutput struct {
	Body struct {
		Status string `json:"status" doc:"pending | completed | expired"`
	}
}

// GetStatus handles GET /v1/auth/device/{device_code}/status, an
// inspection-only endpoint: it never polls the upstream provider or mutates
// the flow, it only reports the locally-known state.
func (h *DeviceHandler) GetStatus(ctx context.Context, input *DeviceStatusInput) (*DeviceStatusOutput, error) {
	flow, err := h.devices.GetByID(ctx, input.DeviceCode)
	if err != nil {
		return nil, humaErr(apperror.Wrap(err))
	}
	if flow == nil {
		return nil, humaErr(apperror.New(apperror.NotFound, "invalid device code"))
	}

	out := &DeviceStatusOutput{}
	switch {
	case flow.UserID != nil:
		out.Body.Status = "completed"
	case flow.Denied:
		out.Body.Status = "expired"
	case time.Now().After(flow.ExpiresAt):
		out.Body.Status = "expired"
	default:
		out.Body.Status = "pending"
	}
	return out, nil
}
