package purchase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
)

const revenueCatBaseURL = "https://api.revenuecat.com/v1"

// RevenueCatGateway validates mobile receipts (App Store / Play Store
// purchases relayed through RevenueCat) against the RevenueCat subscriber API.
type RevenueCatGateway struct {
	cfg  *config.Config
	http *http.Client
}

// NewRevenueCatGateway builds a gateway.
func NewRevenueCatGateway(cfg *config.Config) *RevenueCatGateway {
	return &RevenueCatGateway{cfg: cfg, http: &http.Client{Timeout: 15 * time.Second}}
}

type subscriberResponse struct {
	Subscriber struct {
		NonSubscriptions map[string][]struct {
			Store string `json:"store"`
		} `json:"non_subscriptions"`
		Entitlements map[string]struct {
			ExpiresDate *string `json:"expires_date"`
		} `json:"entitlements"`
	} `json:"subscriber"`
}

// ValidatePurchase looks up purchaseToken (RevenueCat's subscriber ID for a
// mobile purchase) and reports whether productID was granted to that
// subscriber, either as a one-off non-subscription purchase on the given
// store or as a non-expiring entitlement.
func (g *RevenueCatGateway) ValidatePurchase(ctx context.Context, purchaseToken, productID, store string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, revenueCatBaseURL+"/subscribers/"+purchaseToken, nil)
	if err != nil {
		return false, apperror.Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.RevenueCatAPIKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return false, apperror.WrapKind(apperror.Internal, "failed to reach RevenueCat", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, apperror.Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, apperror.New(apperror.BadRequest, fmt.Sprintf("RevenueCat error: %s", body))
	}

	var sub subscriberResponse
	if err := json.Unmarshal(body, &sub); err != nil {
		return false, apperror.Wrap(err)
	}

	for _, purchase := range sub.Subscriber.NonSubscriptions[productID] {
		if purchase.Store == store {
			return true, nil
		}
	}
	if ent, ok := sub.Subscriber.Entitlements[productID]; ok && ent.ExpiresDate == nil {
		return true, nil
	}
	return false, nil
}
