package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/messaging"
	"github.com/trellismart/backend/internal/repository"
)

// PlaceItem is one requested line of a direct order placement.
type PlaceItem struct {
	ProductID string
	Key       entity.VariationKey
	Quantity  int
}

// OrderService covers the read/status side of orders plus direct placement
// (ordering without a cart). Direct placement goes through the same
// variation matching and the same ReserveItems primitive as checkout.
type OrderService struct {
	orders    repository.OrderRepository
	products  repository.ProductRepository
	publisher messaging.Publisher

	topicPlaced string
}

func NewOrderService(orders repository.OrderRepository, products repository.ProductRepository, publisher messaging.Publisher, topicPlaced string) *OrderService {
	return &OrderService{orders: orders, products: products, publisher: publisher, topicPlaced: topicPlaced}
}

// Place creates an order directly from (product, variation, quantity)
// requests, snapshotting current catalog prices.
func (s *OrderService) Place(ctx context.Context, userID string, items []PlaceItem, shippingAddress, billingAddress string) (*entity.Order, error) {
	if len(items) == 0 {
		return nil, apperr.Validationf("order must have at least one item")
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, apperr.Validationf("quantity must be at least 1")
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "order creation failed", err)
	}

	orderItems := make([]entity.OrderItem, 0, len(items))
	reservation := make([]repository.ReservationItem, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, apperr.NotFoundf("product with ID %s not found", item.ProductID)
		}
		variation := product.Variation(item.Key)
		if variation == nil {
			return nil, apperr.NotFoundf("variation not found for product with color %s and size %s", item.Key.Color, item.Key.Size)
		}
		orderItems = append(orderItems, entity.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Color:       variation.Color,
			Size:        variation.Size,
			Price:       variation.Price,
			Quantity:    item.Quantity,
		})
		reservation = append(reservation, repository.ReservationItem{
			ProductID: item.ProductID,
			Key:       item.Key,
			Quantity:  item.Quantity,
		})
	}

	if err := s.products.ReserveItems(ctx, reservation); err != nil {
		return nil, err
	}

	order := &entity.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           orderItems,
		TotalAmount:     entity.Total(orderItems),
		ShippingAddress: shippingAddress,
		BillingAddress:  billingAddress,
		Status:          entity.StatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if relErr := s.products.ReleaseItems(ctx, reservation); relErr != nil {
			slog.Error("Failed to release reservation after create failure", "err", relErr)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "order creation failed", err)
	}

	event := entity.OrderPlaced{
		OrderID:     order.ID,
		UserID:      userID,
		Items:       order.Items,
		TotalAmount: order.TotalAmount,
		PlacedAt:    order.CreatedAt,
	}
	if err := s.publisher.PublishEvent(ctx, s.topicPlaced, order.ID, event); err != nil {
		slog.Error("Failed to publish OrderPlaced", "order_id", order.ID, "err", err)
	}

	slog.Info("Order placed", "order_id", order.ID, "user_id", userID, "items", len(order.Items))
	return order, nil
}

// ListByUser returns all orders belonging to the user, newest first.
func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	return s.orders.FindByUser(ctx, userID)
}

// GetByID returns one order.
func (s *OrderService) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	return s.orders.FindByID(ctx, id)
}

// UpdateStatus advances the order lifecycle and optionally sets tracking.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status entity.OrderStatus, trackingID string) (*entity.Order, error) {
	if !entity.ValidOrderStatus(status) {
		return nil, apperr.Validationf("invalid order status %q", status)
	}
	if err := s.orders.UpdateStatus(ctx, id, status, trackingID); err != nil {
		return nil, err
	}
	return s.orders.FindByID(ctx, id)
}

// Delete removes the order.
func (s *OrderService) Delete(ctx context.Context, id string) error {
	return s.orders.Delete(ctx, id)
}
