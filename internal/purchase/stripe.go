package purchase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
	"github.com/guitaripod/pixie/internal/models"
)

// StripeGateway creates Checkout Sessions for the card-payment backend and
// verifies the webhook Stripe sends back on completion.
type StripeGateway struct {
	cfg *config.Config
}

// NewStripeGateway configures the process-wide stripe-go client and returns a gateway.
func NewStripeGateway(cfg *config.Config) *StripeGateway {
	stripe.Key = cfg.StripeSecretKey
	return &StripeGateway{cfg: cfg}
}

// CreateCheckoutSession starts a one-off "payment" mode Checkout Session for
// a single credit pack, tagging it with the metadata the webhook handler
// needs to identify the purchase without a database round trip.
func (g *StripeGateway) CreateCheckoutSession(purchaseID string, pack models.CreditPack, successURL, cancelURL, customerEmail string) (checkoutURL, sessionID string, err error) {
	priceID, ok := g.cfg.StripePriceIDs[pack.ID]
	if !ok || priceID == "" {
		return "", "", apperror.New(apperror.Internal, "no Stripe price configured for pack "+pack.ID)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		Metadata: map[string]string{
			"purchase_id": purchaseID,
			"pack_id":     pack.ID,
			"pack_name":   pack.Name,
			"credits":     fmt.Sprintf("%d", pack.TotalCredits()),
		},
		ExpiresAt: stripe.Int64(time.Now().Add(30 * time.Minute).Unix()),
	}
	if customerEmail != "" {
		params.CustomerEmail = stripe.String(customerEmail)
	}

	sess, err := session.New(params)
	if err != nil {
		return "", "", apperror.WrapKind(apperror.Internal, "stripe checkout session creation failed", err)
	}
	return sess.URL, sess.ID, nil
}

// GetCheckoutSession is used by the status-polling fallback when a webhook
// delivery is delayed or lost.
func (g *StripeGateway) GetCheckoutSession(sessionID string) (*stripe.CheckoutSession, error) {
	sess, err := session.Get(sessionID, nil)
	if err != nil {
		return nil, apperror.WrapKind(apperror.Internal, "stripe checkout session lookup failed", err)
	}
	return sess, nil
}

// ConstructEvent verifies the Stripe-Signature header against the raw
// request body and returns the parsed event. stripe-go's webhook package
// already implements the t=timestamp,v1=signature / 5-minute replay window
// scheme, so there is no hand-rolled HMAC here.
func (g *StripeGateway) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, g.cfg.StripeWebhookSecret)
	if err != nil {
		return stripe.Event{}, apperror.WrapKind(apperror.BadRequest, "invalid stripe webhook signature", err)
	}
	return event, nil
}

// CheckoutSessionFromEvent unmarshals a checkout.session.completed event's
// payload and reports whether its payment_status is paid.
func CheckoutSessionFromEvent(event stripe.Event) (sess stripe.CheckoutSession, purchaseID string, paid bool, err error) {
	if jsonErr := json.Unmarshal(event.Data.Raw, &sess); jsonErr != nil {
		return stripe.CheckoutSession{}, "", false, apperror.WrapKind(apperror.Internal, "failed to decode checkout session", jsonErr)
	}
	return sess, sess.Metadata["purchase_id"], sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, nil
}
