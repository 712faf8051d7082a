package handlers

import (
	"context"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/credit"
	"github.com/guitaripod/pixie/internal/repository"
)

// AdminHandler serves the operator-only credit-adjustment and system-stats
// surfaces. Route registration gates every method behind RequireAdmin; these
// handlers don't re-check IsAdmin themselves.
type AdminHandler struct {
	ledger *credit.Ledger
	usage  repository.UsageRepository
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(ledger *credit.Ledger, usage repository.UsageRepository) *AdminHandler {
	return &AdminHandler{ledger: ledger, usage: usage}
}

// AdjustCreditsInput is the body of POST /v1/admin/credits/adjust.
type AdjustCreditsInput struct {
	Body struct {
		UserID string `json:"user_id" minLength:"1"`
		Amount int    `json:"amount" doc:"Signed delta; negative amounts clamp at the user's current balance"`
		Reason string `json:"reason" minLength:"1"`
	}
}

// AdjustCreditsOutput is the response of POST /v1/admin/credits/adjust.
type AdjustCreditsOutput struct {
	Body struct {
		Balance int `json:"balance"`
		Applied int `json:"applied"`
	}
}

// AdjustCredits handles POST /v1/admin/credits/adjust.
func (h *AdminHandler) AdjustCredits(ctx context.Context, input *AdjustCreditsInput) (*AdjustCreditsOutput, error) {
	balance, applied, err := h.ledger.AdminAdjust(ctx, input.Body.UserID, input.Body.Amount, input.Body.Reason)
	if err != nil {
		return nil, humaErr(err)
	}
	out := &AdjustCreditsOutput{}
	out.Body.Balance = balance
	out.Body.Applied = applied
	return out, nil
}

// StatsOutput is the response of GET /v1/admin/credits/stats.
type StatsOutput struct {
	Body repository.SystemStats
}

// GetStats handles GET /v1/admin/credits/stats, the operator-facing mirror
// of GET /v1/usage/system backed by the same aggregate query.
func (h *AdminHandler) GetStats(ctx context.Context, input *struct{}) (*StatsOutput, error) {
	stats, err := h.usage.GetSystemStats(ctx)
	if err != nil {
		return nil, humaErr(apperror.Wrap(err))
	}
	return &StatsOutput{Body: stats}, nil
}
