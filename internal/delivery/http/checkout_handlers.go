package http

import (
	"encoding/json"
	"net/http"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/auth"
	"github.com/trellismart/backend/internal/payment"
	"github.com/trellismart/backend/internal/service"
)

type checkoutRequest struct {
	ShippingAddress string               `json:"shippingAddress"`
	BillingAddress  string               `json:"billingAddress"`
	PaymentDetails  payment.PayerDetails `json:"paymentDetails"`
	PaymentMethod   string               `json:"paymentMethod"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Validationf("invalid request body"))
		return
	}
	if req.ShippingAddress == "" || req.BillingAddress == "" || req.PaymentMethod == "" {
		respondError(w, apperr.Validationf("shipping address, billing address, payment details, and payment method are required"))
		return
	}

	method, err := payment.ParseMethod(req.PaymentMethod)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.checkout.Checkout(r.Context(), identity.UserID, service.CheckoutRequest{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Payer:           req.PaymentDetails,
		Method:          method,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	body := map[string]any{
		"message": "Checkout successful",
		"order":   result.Order,
	}
	if result.ApprovalURL != "" {
		body["message"] = "Checkout initiated"
		body["approvalUrl"] = result.ApprovalURL
	}
	respondJSON(w, http.StatusOK, body)
}

func (h *Handler) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, apperr.Validationf("token is required"))
		return
	}

	order, err := h.checkout.CompleteOrder(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Payment completed successfully",
		"order":   order,
	})
}

// handleCancelOrder acknowledges the provider's cancel redirect. No state
// changes: the Pending order is left for the expiry reaper.
func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Payment cancelled"})
}
