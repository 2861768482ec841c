package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trellismart/backend/internal/apperr"
)

// PayPalGateway is a two-phase gateway: Initiate creates a provider-side
// order and returns the approval redirect; the payer approves on the
// provider's page; Confirm captures the funds.
type PayPalGateway struct {
	baseURL   string
	clientID  string
	secret    string
	returnURL string
	cancelURL string
	client    *http.Client
}

// NewPayPalGateway creates the two-phase gateway. appBaseURL is where the
// provider redirects the payer after approval or cancellation.
func NewPayPalGateway(baseURL, clientID, secret, appBaseURL string) *PayPalGateway {
	app := strings.TrimRight(appBaseURL, "/")
	return &PayPalGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		clientID:  clientID,
		secret:    secret,
		returnURL: app + "/checkout/complete-order",
		cancelURL: app + "/checkout/cancel-order",
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *PayPalGateway) accessToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(g.clientID, g.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request failed: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || body.AccessToken == "" {
		return "", paymentFailed("paypal", fmt.Sprintf("token request returned %d", resp.StatusCode))
	}
	return body.AccessToken, nil
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	Message string `json:"message"`
}

func (g *PayPalGateway) Initiate(ctx context.Context, amount decimal.Decimal, payer PayerDetails) (*Result, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	// PayPal takes a fixed-point decimal string; value is floored to whole
	// cents like every other adapter.
	cents := floorCents(amount)
	value := fmt.Sprintf("%d.%02d", cents/100, cents%100)

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": paypalAmount{CurrencyCode: "USD", Value: value},
		}},
		"payer": map[string]any{
			"email_address": payer.Email,
		},
		"application_context": map[string]any{
			"return_url":          g.returnURL,
			"cancel_url":          g.cancelURL,
			"shipping_preference": "NO_SHIPPING",
			"user_action":         "PAY_NOW",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal paypal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build paypal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal order request failed: %w", err)
	}
	defer resp.Body.Close()

	var order paypalOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode paypal response: %w", err)
	}
	if resp.StatusCode >= 300 || order.ID == "" {
		return nil, paymentFailed("paypal", order.Message)
	}

	result := &Result{TransactionID: order.ID}
	for _, link := range order.Links {
		if link.Rel == "approve" {
			result.ApprovalURL = link.Href
		}
	}
	if result.ApprovalURL == "" {
		return nil, paymentFailed("paypal", "no approval link in order response")
	}
	return result, nil
}

// Confirm captures a previously approved provider order.
func (g *PayPalGateway) Confirm(ctx context.Context, reference string) (*Capture, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v2/checkout/orders/"+url.PathEscape(reference)+"/capture", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("failed to build capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal capture request failed: %w", err)
	}
	defer resp.Body.Close()

	var capture paypalOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&capture); err != nil {
		return nil, fmt.Errorf("failed to decode capture response: %w", err)
	}
	if resp.StatusCode >= 300 || capture.Status != "COMPLETED" {
		return nil, paymentFailed("paypal", fmt.Sprintf("capture not completed (status %q)", capture.Status))
	}

	return &Capture{TransactionID: capture.ID, Status: capture.Status}, nil
}

func paymentFailed(provider, detail string) error {
	if detail == "" {
		detail = "payment failed"
	}
	return apperr.Paymentf("%s: %s", provider, detail)
}
