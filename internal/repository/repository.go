package repository

import (
	"context"
	"time"

	"github.com/trellismart/backend/internal/entity"
)

// ReservationItem is one (product, variation, quantity) triple handed to the
// stock reservation primitive. Checkout and direct order placement both
// build their reservations from order items, so there is exactly one
// decrement path.
type ReservationItem struct {
	ProductID string
	Key       entity.VariationKey
	Quantity  int
}

// UserRepository handles persistence for Users.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id string) (*entity.User, error)
}

// ProductRepository handles persistence for Products and their variations,
// including the atomic stock reservation primitive.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	FindAll(ctx context.Context) ([]entity.Product, error)
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error)
	Update(ctx context.Context, product *entity.Product) error
	Delete(ctx context.Context, id string) error

	// ReserveItems decrements stock for every item in one transaction using
	// a conditional update (stock = stock - q WHERE stock >= q). If any item
	// cannot be satisfied the whole reservation rolls back and the returned
	// error names the offending product/variation.
	ReserveItems(ctx context.Context, items []ReservationItem) error
	// ReleaseItems puts a failed reservation's quantities back.
	ReleaseItems(ctx context.Context, items []ReservationItem) error

	// Seed inserts demo products if the catalog is empty.
	Seed(ctx context.Context, products []entity.Product) error
}

// CartRepository handles persistence for Carts.
type CartRepository interface {
	Find(ctx context.Context, userID string) (*entity.Cart, error)
	// Update atomically applies mutate to the user's cart and persists the
	// result. The read, mutate and write happen as one unit, so concurrent
	// updates to the same user's cart serialize instead of lost-updating.
	// When the user has no cart yet, mutate receives a fresh empty cart. An
	// error from mutate aborts the update and is returned unchanged.
	Update(ctx context.Context, userID string, mutate func(cart *entity.Cart) error) (*entity.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// OrderRepository handles persistence for Orders.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	FindByUser(ctx context.Context, userID string) ([]entity.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*entity.Order, error)
	UpdateStatus(ctx context.Context, id string, status entity.OrderStatus, trackingID string) error
	SetPayment(ctx context.Context, id string, payment entity.Payment) error
	Delete(ctx context.Context, id string) error

	// CancelStalePending marks Pending orders older than the cutoff as
	// Cancelled and returns how many were affected.
	CancelStalePending(ctx context.Context, olderThan time.Time) (int64, error)
}
