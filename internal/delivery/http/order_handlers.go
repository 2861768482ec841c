package http

import (
	"encoding/json"
	"net/http"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/auth"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/service"
)

type placeOrderRequest struct {
	Items []struct {
		ProductID string              `json:"productId"`
		Quantity  int                 `json:"quantity"`
		Variation entity.VariationKey `json:"variation"`
	} `json:"items"`
	ShippingAddress string `json:"shippingAddress"`
	BillingAddress  string `json:"billingAddress"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Validationf("invalid request body"))
		return
	}

	items := make([]service.PlaceItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.PlaceItem{
			ProductID: item.ProductID,
			Key:       item.Variation,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.Place(r.Context(), identity.UserID, items, req.ShippingAddress, req.BillingAddress)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Order placed successfully",
		"order":   order,
	})
}

func (h *Handler) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	orders, err := h.orders.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

type updateOrderRequest struct {
	Status     string `json:"status"`
	TrackingID string `json:"trackingId"`
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Validationf("invalid request body"))
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), entity.OrderStatus(req.Status), req.TrackingID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Order deleted successfully"})
}
