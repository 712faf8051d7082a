package purchase

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
)

const nowPaymentsBaseURL = "https://api.nowpayments.io/v1"

// NOWPaymentsGateway creates crypto payments for the crypto-payment backend
// and verifies the IPN (instant payment notification) webhook.
type NOWPaymentsGateway struct {
	cfg  *config.Config
	http *http.Client
}

// NewNOWPaymentsGateway builds a gateway.
func NewNOWPaymentsGateway(cfg *config.Config) *NOWPaymentsGateway {
	return &NOWPaymentsGateway{cfg: cfg, http: &http.Client{Timeout: 15 * time.Second}}
}

type nowPaymentsPaymentRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
}

// PaymentResponse is the subset of NOWPayments' payment object this gateway
// depends on.
type PaymentResponse struct {
	PaymentID        string  `json:"-"`
	PaymentStatus    string  `json:"payment_status"`
	PayAddress       string  `json:"pay_address"`
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayAmount        float64 `json:"pay_amount"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
	ExpiryEstimate   string  `json:"expiry_estimate"`
}

// nowPaymentsRawResponse mirrors PaymentResponse but keeps payment_id as a
// json.RawMessage since NOWPayments returns it as either a string or a
// number depending on endpoint.
type nowPaymentsRawResponse struct {
	PaymentID        json.RawMessage `json:"payment_id"`
	PaymentStatus    string          `json:"payment_status"`
	PayAddress       string          `json:"pay_address"`
	PriceAmount      float64         `json:"price_amount"`
	PriceCurrency    string          `json:"price_currency"`
	PayAmount        float64         `json:"pay_amount"`
	PayCurrency      string          `json:"pay_currency"`
	OrderID          string          `json:"order_id"`
	OrderDescription string          `json:"order_description"`
	ExpiryEstimate   string          `json:"expiry_estimate"`
}

// CreatePayment opens a crypto payment for orderID (the purchase's ID),
// priced in USD and payable in payCurrency.
func (g *NOWPaymentsGateway) CreatePayment(ctx context.Context, orderID, orderDescription string, amountUSD float64, payCurrency string) (*PaymentResponse, error) {
	body, err := json.Marshal(nowPaymentsPaymentRequest{
		PriceAmount:      amountUSD,
		PriceCurrency:    "usd",
		PayCurrency:      strings.ToLower(payCurrency),
		OrderID:          orderID,
		OrderDescription: orderDescription,
	})
	if err != nil {
		return nil, apperror.Wrap(err)
	}

	var raw nowPaymentsRawResponse
	if err := g.do(ctx, http.MethodPost, "/payment", body, &raw); err != nil {
		return nil, err
	}
	return rawToPaymentResponse(raw), nil
}

// GetPaymentStatus polls a previously created payment, used by the
// status-polling fallback when an IPN delivery is delayed or lost.
func (g *NOWPaymentsGateway) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentResponse, error) {
	var raw nowPaymentsRawResponse
	if err := g.do(ctx, http.MethodGet, "/payment/"+strings.Trim(paymentID, `"`), nil, &raw); err != nil {
		return nil, err
	}
	return rawToPaymentResponse(raw), nil
}

func rawToPaymentResponse(raw nowPaymentsRawResponse) *PaymentResponse {
	id := strings.Trim(string(raw.PaymentID), `"`)
	return &PaymentResponse{
		PaymentID:        id,
		PaymentStatus:    raw.PaymentStatus,
		PayAddress:       raw.PayAddress,
		PriceAmount:      raw.PriceAmount,
		PriceCurrency:    raw.PriceCurrency,
		PayAmount:        raw.PayAmount,
		PayCurrency:      raw.PayCurrency,
		OrderID:          raw.OrderID,
		OrderDescription: raw.OrderDescription,
		ExpiryEstimate:   raw.ExpiryEstimate,
	}
}

func (g *NOWPaymentsGateway) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, nowPaymentsBaseURL+path, reader)
	if err != nil {
		return apperror.Wrap(err)
	}
	req.Header.Set("x-api-key", g.cfg.NOWPaymentsAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return apperror.WrapKind(apperror.Internal, "failed to reach NOWPayments", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperror.New(apperror.BadRequest, fmt.Sprintf("NOWPayments error: %s", respBody))
	}
	return json.Unmarshal(respBody, out)
}

// IPNWebhook is the payload NOWPayments POSTs to the IPN callback URL.
type IPNWebhook struct {
	PaymentID        int64   `json:"payment_id"`
	PaymentStatus    string  `json:"payment_status"`
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayAmount        float64 `json:"pay_amount"`
	ActuallyPaid     float64 `json:"actually_paid"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
	OutcomeAmount    float64 `json:"outcome_amount"`
	OutcomeCurrency  string  `json:"outcome_currency"`
}

// VerifyIPNSignature checks the x-nowpayments-sig header, which is an
// HMAC-SHA512 of the request body after re-serializing it with keys sorted
// alphabetically — json.Marshal of a map already produces that canonical
// ordering, so no hand-rolled sort is needed.
func (g *NOWPaymentsGateway) VerifyIPNSignature(signature string, body []byte) (bool, error) {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, apperror.WrapKind(apperror.BadRequest, "invalid JSON in IPN webhook", err)
	}
	sorted, err := json.Marshal(parsed)
	if err != nil {
		return false, apperror.Wrap(err)
	}

	mac := hmac.New(sha512.New, []byte(g.cfg.NOWPaymentsIPNSecret))
	mac.Write(sorted)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// statusSucceeded reports whether a NOWPayments payment_status indicates the
// charge has cleared.
func statusSucceeded(status string) bool {
	return status == "finished" || status == "confirmed"
}
