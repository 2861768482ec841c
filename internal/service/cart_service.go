package service

import (
	"context"
	"log/slog"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/repository"
)

// CartService orchestrates shopping cart logic. Mutations run through the
// repository's atomic Update, so two concurrent changes to the same user's
// cart serialize instead of overwriting each other. Any low-level failure
// surfaces as a single cart-operation error preserving the original message;
// domain errors (not found, validation) keep their kind.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// AddToCart puts quantity units of a product variation into the user's
// cart, creating the cart lazily. Adding a (product, variation) pair already
// present increments its quantity instead of duplicating the line.
func (s *CartService) AddToCart(ctx context.Context, userID, productID string, quantity int, key entity.VariationKey) (*entity.Cart, error) {
	if quantity < 1 {
		return nil, apperr.Validationf("quantity must be at least 1")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "cart operation failed", err)
	}

	variation := product.Variation(key)
	if variation == nil {
		return nil, apperr.NotFoundf("variation not found for product with color %s and size %s", key.Color, key.Size)
	}

	cart, err := s.carts.Update(ctx, userID, func(cart *entity.Cart) error {
		if i := cart.FindItem(productID, key); i >= 0 {
			cart.Items[i].Quantity += quantity
			return nil
		}
		cart.Items = append(cart.Items, entity.CartItem{
			ProductID:   productID,
			ProductName: product.Name,
			Variation:   *variation, // price and stock snapshot at add-time
			Quantity:    quantity,
		})
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "cart operation failed", err)
	}

	slog.Info("Added product to cart", "user_id", userID, "product_id", productID, "quantity", quantity)
	return cart, nil
}

// GetCart returns the user's cart with each line resolved against live
// product data.
func (s *CartService) GetCart(ctx context.Context, userID string) (*entity.Cart, error) {
	cart, err := s.carts.Find(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "cart operation failed", err)
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "cart operation failed", err)
	}

	for i := range cart.Items {
		cart.Items[i].Product = products[cart.Items[i].ProductID]
	}
	return cart, nil
}

// UpdateCart sets the quantity on an existing (product, variation) line.
func (s *CartService) UpdateCart(ctx context.Context, userID, productID string, quantity int, key entity.VariationKey) (*entity.Cart, error) {
	if quantity < 1 {
		return nil, apperr.Validationf("quantity must be at least 1")
	}

	cart, err := s.carts.Update(ctx, userID, func(cart *entity.Cart) error {
		i := cart.FindItem(productID, key)
		if i < 0 {
			return apperr.NotFoundf("product with the specified variation not found in cart")
		}
		cart.Items[i].Quantity = quantity
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "cart operation failed", err)
	}

	slog.Info("Updated cart", "user_id", userID, "product_id", productID, "quantity", quantity)
	return cart, nil
}

// RemoveFromCart deletes the matching line. Removing a line that does not
// exist is a no-op returning the unchanged cart.
func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID string, key entity.VariationKey) (*entity.Cart, error) {
	cart, err := s.carts.Update(ctx, userID, func(cart *entity.Cart) error {
		kept := cart.Items[:0]
		for _, item := range cart.Items {
			if item.ProductID == productID && item.Variation.Color == key.Color && item.Variation.Size == key.Size {
				continue
			}
			kept = append(kept, item)
		}
		cart.Items = kept
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "cart operation failed", err)
	}

	slog.Info("Removed product from cart", "user_id", userID, "product_id", productID)
	return cart, nil
}
