package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trellismart/backend/internal/auth"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/service"
)

// Handler wires the HTTP surface to the service layer.
type Handler struct {
	users    *service.UserService
	products *service.ProductService
	carts    *service.CartService
	orders   *service.OrderService
	checkout *service.CheckoutService

	authenticator *auth.Authenticator
}

func NewHandler(
	users *service.UserService,
	products *service.ProductService,
	carts *service.CartService,
	orders *service.OrderService,
	checkout *service.CheckoutService,
	authenticator *auth.Authenticator,
) *Handler {
	return &Handler{
		users:         users,
		products:      products,
		carts:         carts,
		orders:        orders,
		checkout:      checkout,
		authenticator: authenticator,
	}
}

// RegisterRoutes mounts every route on the mux. Auth wraps everything
// except signup, signin, catalog reads, health and metrics.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	authed := h.authed
	seller := func(fn http.HandlerFunc) http.Handler {
		return h.authenticator.Middleware(fn, entity.RoleSeller, entity.RoleAdmin)
	}

	mux.HandleFunc("POST /users/signup", h.handleSignUp)
	mux.HandleFunc("POST /users/signin", h.handleSignIn)

	mux.HandleFunc("GET /products", h.handleGetProducts)
	mux.HandleFunc("GET /products/{id}", h.handleGetProduct)
	mux.Handle("POST /products", seller(h.handleCreateProduct))
	mux.Handle("PUT /products/{id}", seller(h.handleUpdateProduct))
	mux.Handle("DELETE /products/{id}", seller(h.handleDeleteProduct))

	mux.Handle("POST /cart/add", authed(h.handleAddToCart))
	mux.Handle("GET /cart", authed(h.handleGetCart))
	mux.Handle("PUT /cart/update", authed(h.handleUpdateCart))
	mux.Handle("DELETE /cart/remove", authed(h.handleRemoveFromCart))

	mux.Handle("POST /checkout/payment", authed(h.handleCheckout))
	mux.Handle("GET /checkout/complete-order", authed(h.handleCompleteOrder))
	mux.Handle("GET /checkout/cancel-order", authed(h.handleCancelOrder))

	mux.Handle("POST /orders", authed(h.handlePlaceOrder))
	mux.Handle("GET /orders", authed(h.handleGetOrders))
	mux.Handle("GET /orders/{id}", authed(h.handleGetOrder))
	mux.Handle("PUT /orders/{id}", authed(h.handleUpdateOrderStatus))
	mux.Handle("DELETE /orders/{id}", authed(h.handleDeleteOrder))

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (h *Handler) authed(fn http.HandlerFunc) http.Handler {
	return h.authenticator.Middleware(fn)
}

// EnableCORS allows browser frontends to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
