package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/messaging"
	"github.com/trellismart/backend/internal/metrics"
	"github.com/trellismart/backend/internal/payment"
	"github.com/trellismart/backend/internal/repository"
)

// CheckoutRequest is one checkout attempt.
type CheckoutRequest struct {
	ShippingAddress string
	BillingAddress  string
	Payer           payment.PayerDetails
	Method          payment.Method
}

// CheckoutResult is what the orchestrator hands back. ApprovalURL is set
// only for two-phase payments awaiting the payer's approval.
type CheckoutResult struct {
	Order       *entity.Order
	ApprovalURL string
}

// CheckoutService is the orchestrator: verify cart against live stock,
// compute the total from cart snapshots, create a Pending order, reserve
// stock, dispatch to the payment gateway, and settle on confirmed payment.
type CheckoutService struct {
	carts     repository.CartRepository
	products  repository.ProductRepository
	orders    repository.OrderRepository
	gateways  map[payment.Method]payment.Gateway
	publisher messaging.Publisher
	metrics   *metrics.Metrics

	topicConfirmed string
}

func NewCheckoutService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	gateways map[payment.Method]payment.Gateway,
	publisher messaging.Publisher,
	m *metrics.Metrics,
	topicConfirmed string,
) *CheckoutService {
	return &CheckoutService{
		carts:          carts,
		products:       products,
		orders:         orders,
		gateways:       gateways,
		publisher:      publisher,
		metrics:        m,
		topicConfirmed: topicConfirmed,
	}
}

// Checkout runs one checkout attempt for the user.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	start := time.Now()
	defer func() { s.metrics.CheckoutDuration.Observe(time.Since(start).Seconds()) }()

	gateway, ok := s.gateways[req.Method]
	if !ok {
		return nil, apperr.Validationf("invalid payment method")
	}

	slog.Info("Checkout initiated", "user_id", userID, "method", req.Method.String())

	// Verify: every line must be satisfiable from live stock right now.
	// A single shortfall fails the whole attempt; no partial checkout.
	cart, err := s.verifyCart(ctx, userID)
	if err != nil {
		s.metrics.CheckoutAttempts.WithLabelValues(req.Method.String(), "rejected").Inc()
		return nil, err
	}

	// Total comes from the cart's price snapshots, never re-fetched, so a
	// catalog price change between add-to-cart and checkout cannot move the
	// charge the user was shown.
	items := orderItemsFromCart(cart)
	total := entity.Total(items)

	// The Pending order is persisted before any payment call so every
	// attempt leaves an auditable record even if payment fails.
	order := &entity.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           items,
		TotalAmount:     total,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Status:          entity.StatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.metrics.CheckoutAttempts.WithLabelValues(req.Method.String(), "error").Inc()
		return nil, apperr.Wrap(apperr.KindInternal, "order creation failed", err)
	}
	slog.Info("Order created", "order_id", order.ID, "user_id", userID, "total", total.StringFixed(2))

	switch g := gateway.(type) {
	case payment.TwoPhaseGateway:
		return s.initiateTwoPhase(ctx, order, g, req)
	default:
		return s.payImmediate(ctx, order, gateway, req)
	}
}

// payImmediate reserves stock, captures payment in the same request, and
// settles. The reservation is released if the gateway declines, so a failed
// payment never strands stock.
func (s *CheckoutService) payImmediate(ctx context.Context, order *entity.Order, gateway payment.Gateway, req CheckoutRequest) (*CheckoutResult, error) {
	reservation := reservationItems(order.Items)
	if err := s.products.ReserveItems(ctx, reservation); err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			s.metrics.ReservationFailures.Inc()
		}
		s.metrics.CheckoutAttempts.WithLabelValues(req.Method.String(), "rejected").Inc()
		return nil, err
	}

	result, err := gateway.Initiate(ctx, order.TotalAmount, req.Payer)
	if err != nil {
		if relErr := s.products.ReleaseItems(ctx, reservation); relErr != nil {
			slog.Error("Failed to release reservation after payment failure", "order_id", order.ID, "err", relErr)
		}
		s.metrics.CheckoutAttempts.WithLabelValues(req.Method.String(), "payment_failed").Inc()
		// The Pending order stays behind as the audit record of the attempt.
		return nil, err
	}

	order.Payment = &entity.Payment{Method: req.Method.String(), TransactionID: result.TransactionID}
	if err := s.orders.SetPayment(ctx, order.ID, *order.Payment); err != nil {
		return nil, fmt.Errorf("failed to stamp payment on order %s: %w", order.ID, err)
	}

	if err := s.settle(ctx, order); err != nil {
		return nil, err
	}

	s.metrics.CheckoutAttempts.WithLabelValues(req.Method.String(), "success").Inc()
	slog.Info("Checkout successful", "order_id", order.ID, "transaction_id", result.TransactionID)
	return &CheckoutResult{Order: order}, nil
}

// initiateTwoPhase creates the provider-side order and returns the approval
// redirect. No stock is touched and the cart stays intact until the
// completion callback confirms the payment.
func (s *CheckoutService) initiateTwoPhase(ctx context.Context, order *entity.Order, gateway payment.TwoPhaseGateway, req CheckoutRequest) (*CheckoutResult, error) {
	result, err := gateway.Initiate(ctx, order.TotalAmount, req.Payer)
	if err != nil {
		s.metrics.CheckoutAttempts.WithLabelValues(req.Method.String(), "payment_failed").Inc()
		return nil, err
	}

	order.Payment = &entity.Payment{Method: req.Method.String(), TransactionID: result.TransactionID}
	if err := s.orders.SetPayment(ctx, order.ID, *order.Payment); err != nil {
		return nil, fmt.Errorf("failed to stamp payment on order %s: %w", order.ID, err)
	}

	s.metrics.CheckoutAttempts.WithLabelValues(req.Method.String(), "initiated").Inc()
	slog.Info("Two-phase payment initiated", "order_id", order.ID, "transaction_id", result.TransactionID)
	return &CheckoutResult{Order: order, ApprovalURL: result.ApprovalURL}, nil
}

// CompleteOrder is the completion callback of a two-phase checkout: the
// payer approved on the provider's page and came back with the provider's
// token. Stock is reserved before the capture so the last unit cannot be
// sold twice, and released again if the capture fails.
func (s *CheckoutService) CompleteOrder(ctx context.Context, token string) (*entity.Order, error) {
	order, err := s.orders.FindByTransactionID(ctx, token)
	if err != nil {
		return nil, err
	}
	if order.Status == entity.StatusCompleted {
		return order, nil // replayed callback
	}
	if order.Status != entity.StatusPending {
		return nil, apperr.Validationf("order %s is %s and can no longer be completed", order.ID, order.Status)
	}

	// The capture must go through the adapter that initiated the payment,
	// looked up from the method stamped on the order.
	method, err := payment.ParseMethod(order.Payment.Method)
	if err != nil {
		return nil, apperr.Newf(apperr.KindInternal, "order %s has no recognizable payment method %q", order.ID, order.Payment.Method)
	}
	gateway, ok := s.gateways[method].(payment.TwoPhaseGateway)
	if !ok {
		return nil, apperr.Newf(apperr.KindInternal, "payment method %s cannot complete a two-phase payment", method)
	}

	reservation := reservationItems(order.Items)
	if err := s.products.ReserveItems(ctx, reservation); err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			s.metrics.ReservationFailures.Inc()
		}
		return nil, err
	}

	capture, err := gateway.Confirm(ctx, token)
	if err != nil {
		if relErr := s.products.ReleaseItems(ctx, reservation); relErr != nil {
			slog.Error("Failed to release reservation after capture failure", "order_id", order.ID, "err", relErr)
		}
		return nil, err
	}

	order.Payment = &entity.Payment{Method: method.String(), TransactionID: capture.TransactionID}
	if err := s.orders.SetPayment(ctx, order.ID, *order.Payment); err != nil {
		return nil, fmt.Errorf("failed to stamp capture on order %s: %w", order.ID, err)
	}

	if err := s.settle(ctx, order); err != nil {
		return nil, err
	}

	slog.Info("Order completed", "order_id", order.ID, "transaction_id", capture.TransactionID)
	return order, nil
}

// settle finishes a paid order: stock was already decremented by the
// reservation, so what remains is clearing the cart, advancing the status,
// and the best-effort confirmation.
func (s *CheckoutService) settle(ctx context.Context, order *entity.Order) error {
	if err := s.orders.UpdateStatus(ctx, order.ID, entity.StatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to advance order %s: %w", order.ID, err)
	}
	order.Status = entity.StatusCompleted

	if err := s.carts.Clear(ctx, order.UserID); err != nil {
		// Payment is captured and stock decremented; a stale cart is an
		// annoyance, not a reason to fail the settlement.
		slog.Error("Failed to clear cart after settlement", "order_id", order.ID, "err", err)
	}

	event := entity.OrderConfirmed{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Method:      order.Payment.Method,
		ConfirmedAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishEvent(ctx, s.topicConfirmed, order.ID, event); err != nil {
		slog.Error("Failed to publish OrderConfirmed", "order_id", order.ID, "err", err)
	}
	return nil
}

// verifyCart loads the cart and re-checks every line against live stock.
func (s *CheckoutService) verifyCart(ctx context.Context, userID string) (*entity.Cart, error) {
	cart, err := s.carts.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, apperr.Validationf("cart is empty")
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products for verification: %w", err)
	}

	for _, item := range cart.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, apperr.Validationf("product %s is no longer available", item.ProductName)
		}
		variation := product.Variation(item.Variation.Key())
		if variation == nil || variation.Stock < item.Quantity {
			return nil, apperr.Validationf(
				"product %s with variation %s/%s is not available in the requested quantity",
				product.Name, item.Variation.Color, item.Variation.Size,
			)
		}
	}
	return cart, nil
}

// RunPendingOrderReaper cancels Pending orders older than ttl on the given
// interval until ctx ends. Abandoned two-phase checkouts hold no stock, so
// cancelling them needs no release.
func (s *CheckoutService) RunPendingOrderReaper(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.orders.CancelStalePending(ctx, time.Now().Add(-ttl))
			if err != nil {
				slog.Error("Failed to expire pending orders", "err", err)
				continue
			}
			if n > 0 {
				s.metrics.OrdersExpired.Add(float64(n))
				slog.Info("Expired stale pending orders", "count", n)
			}
		}
	}
}

func orderItemsFromCart(cart *entity.Cart) []entity.OrderItem {
	items := make([]entity.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, entity.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Color:       line.Variation.Color,
			Size:        line.Variation.Size,
			Price:       line.Variation.Price,
			Quantity:    line.Quantity,
		})
	}
	return items
}

func reservationItems(items []entity.OrderItem) []repository.ReservationItem {
	res := make([]repository.ReservationItem, 0, len(items))
	for _, item := range items {
		res = append(res, repository.ReservationItem{
			ProductID: item.ProductID,
			Key:       entity.VariationKey{Color: item.Color, Size: item.Size},
			Quantity:  item.Quantity,
		})
	}
	return res
}
