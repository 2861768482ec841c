package http

import (
	"encoding/json"
	"net/http"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/auth"
	"github.com/trellismart/backend/internal/entity"
)

type cartRequest struct {
	ProductID string              `json:"productId"`
	Quantity  int                 `json:"quantity"`
	Variation entity.VariationKey `json:"variation"`
}

func (h *Handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Validationf("invalid request body"))
		return
	}

	cart, err := h.carts.AddToCart(r.Context(), identity.UserID, req.ProductID, req.Quantity, req.Variation)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Product added to cart",
		"cart":    cart,
	})
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	cart, err := h.carts.GetCart(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *Handler) handleUpdateCart(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Validationf("invalid request body"))
		return
	}

	cart, err := h.carts.UpdateCart(r.Context(), identity.UserID, req.ProductID, req.Quantity, req.Variation)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *Handler) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Validationf("invalid request body"))
		return
	}

	cart, err := h.carts.RemoveFromCart(r.Context(), identity.UserID, req.ProductID, req.Variation)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}
