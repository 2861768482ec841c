package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellismart/backend/internal/apperr"
)

func TestStripeInitiate(t *testing.T) {
	var gotForm map[string]string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotAuth = r.Header.Get("Authorization")
		gotForm = map[string]string{
			"amount":        r.PostForm.Get("amount"),
			"currency":      r.PostForm.Get("currency"),
			"receipt_email": r.PostForm.Get("receipt_email"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_test_123","client_secret":"cs_test","status":"succeeded"}`))
	}))
	defer srv.Close()

	gw := NewStripeGateway(srv.URL, "sk_test_abc")
	result, err := gw.Initiate(context.Background(), decimal.RequireFromString("20.00"), PayerDetails{Email: "buyer@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "pi_test_123", result.TransactionID)
	assert.Empty(t, result.ApprovalURL)
	assert.Equal(t, "Bearer sk_test_abc", gotAuth)
	assert.Equal(t, "2000", gotForm["amount"])
	assert.Equal(t, "usd", gotForm["currency"])
	assert.Equal(t, "buyer@example.com", gotForm["receipt_email"])
}

func TestStripeInitiateDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"message":"Your card was declined."}}`))
	}))
	defer srv.Close()

	gw := NewStripeGateway(srv.URL, "sk_test_abc")
	_, err := gw.Initiate(context.Background(), decimal.RequireFromString("20.00"), PayerDetails{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPayment, apperr.KindOf(err))
	assert.EqualError(t, err, "stripe: Your card was declined.")
}

func TestStripeInitiateUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	gw := NewStripeGateway(srv.URL, "sk_test_abc")
	_, err := gw.Initiate(context.Background(), decimal.RequireFromString("5.00"), PayerDetails{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPayment, apperr.KindOf(err))
}
