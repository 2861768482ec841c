package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StripeGateway captures immediately: one payment-intent call authorizes and
// captures, so Initiate is final and Confirm does not exist.
type StripeGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewStripeGateway creates the immediate-capture gateway.
func NewStripeGateway(baseURL, secretKey string) *StripeGateway {
	return &StripeGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type stripeIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *StripeGateway) Initiate(ctx context.Context, amount decimal.Decimal, payer PayerDetails) (*Result, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(floorCents(amount), 10))
	form.Set("currency", "usd")
	form.Set("payment_method_types[]", "card")
	form.Set("description", "Payment for Order")
	form.Set("receipt_email", payer.Email)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build stripe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	var intent stripeIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("failed to decode stripe response: %w", err)
	}
	if intent.Error != nil {
		return nil, paymentFailed("stripe", intent.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || intent.ID == "" {
		return nil, paymentFailed("stripe", fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	return &Result{TransactionID: intent.ID}, nil
}
