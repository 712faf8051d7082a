package handlers

import (
	"context"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/repository"
)

// UsageHandler serves the per-user and system-wide usage reporting endpoints.
type UsageHandler struct {
	usage repository.UsageRepository
}

// NewUsageHandler creates a usage handler.
func NewUsageHandler(usage repository.UsageRepository) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// UsageSummaryInput is the path of GET /v1/usage/users/{user_id}.
type UsageSummaryInput struct {
	UserID string `path:"user_id"`
}

// UsageSummaryOutput is the response of GET /v1/usage/users/{user_id}.
type UsageSummaryOutput struct {
	Body repository.UsageSummary
}

// GetSummary handles GET /v1/usage/users/{user_id}.
func (h *UsageHandler) GetSummary(ctx context.Context, input *UsageSummaryInput) (*UsageSummaryOutput, error) {
	requester := getUser(ctx)
	if requester == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}
	if requester.ID != input.UserID && !requester.IsAdmin {
		return nil, humaErr(apperror.New(apperror.Forbidden, "cannot view another user's usage"))
	}

	summary, err := h.usage.GetSummary(ctx, input.UserID)
	if err != nil {
		return nil, humaErr(apperror.Wrap(err))
	}
	return &UsageSummaryOutput{Body: summary}, nil
}

// UsageDetailsInput is the path+query of GET /v1/usage/users/{user_id}/details.
type UsageDetailsInput struct {
	UserID string `path:"user_id"`
	Days   int    `query:"days" doc:"Number of trailing days to bucket, default 30"`
}

// UsageDetailsOutput is the response of GET /v1/usage/users/{user_id}/details.
type UsageDetailsOutput struct {
	Body struct {
		Daily []repository.DailyUsage `json:"daily"`
	}
}

// GetDetails handles GET /v1/usage/users/{user_id}/details.
func (h *UsageHandler) GetDetails(ctx context.Context, input *UsageDetailsInput) (*UsageDetailsOutput, error) {
	requester := getUser(ctx)
	if requester == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}
	if requester.ID != input.UserID && !requester.IsAdmin {
		return nil, humaErr(apperror.New(apperror.Forbidden, "cannot view another user's usage"))
	}

	days := input.Days
	if days <= 0 {
		days = 30
	}

	daily, err := h.usage.GetDaily(ctx, input.UserID, days)
	if err != nil {
		return nil, humaErr(apperror.Wrap(err))
	}
	out := &UsageDetailsOutput{}
	out.Body.Daily = daily
	return out, nil
}

// SystemUsageOutput is the response of GET /v1/usage/system.
type SystemUsageOutput struct {
	Body repository.SystemStats
}

// GetSystem handles GET /v1/usage/system (admin-gated).
func (h *UsageHandler) GetSystem(ctx context.Context, input *struct{}) (*SystemUsageOutput, error) {
	stats, err := h.usage.GetSystemStats(ctx)
	if err != nil {
		return nil, humaErr(apperror.Wrap(err))
	}
	return &SystemUsageOutput{Body: stats}, nil
}
