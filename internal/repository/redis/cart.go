// Package redis stores carts as one JSON document per user. Every mutation
// runs read-modify-write inside a WATCH transaction on the cart key, so
// concurrent updates to the same user's cart serialize optimistically: a
// write that raced with another writer fails with TxFailedErr and the whole
// read-mutate-write is retried against the fresh document.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/repository"
)

const (
	cartKeyPrefix = "cart:"
	updateRetries = 5
)

type cartRepository struct {
	client *redis.Client
}

// NewCartRepository creates a CartRepository backed by Redis.
func NewCartRepository(client *redis.Client) repository.CartRepository {
	return &cartRepository{client: client}
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}

func (r *cartRepository) Find(ctx context.Context, userID string) (*entity.Cart, error) {
	raw, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, apperr.NotFoundf("cart not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return decodeCart(raw)
}

func (r *cartRepository) Update(ctx context.Context, userID string, mutate func(cart *entity.Cart) error) (*entity.Cart, error) {
	key := cartKey(userID)
	var cart *entity.Cart

	// The GET runs inside Watch so the optimistic lock covers the read: if
	// another writer touches the key between our GET and the pipelined SET,
	// the transaction fails and the loop re-reads the fresh document.
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
			cart = &entity.Cart{UserID: userID, Items: []entity.CartItem{}}
		case err != nil:
			return fmt.Errorf("failed to load cart: %w", err)
		default:
			if cart, err = decodeCart(raw); err != nil {
				return err
			}
		}

		if err := mutate(cart); err != nil {
			return err
		}
		cart.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("failed to encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	for i := 0; i < updateRetries; i++ {
		err := r.client.Watch(ctx, txn, key)
		if err == nil {
			return cart, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // key touched by a concurrent writer, retry
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to update cart for user %s after %d retries", userID, updateRetries)
}

func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	empty := &entity.Cart{UserID: userID, Items: []entity.CartItem{}, UpdatedAt: time.Now().UTC()}
	payload, err := json.Marshal(empty)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	// Settlement owns the cart at this point; an unconditional overwrite is
	// the intended terminal state.
	if err := r.client.Set(ctx, cartKey(userID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func decodeCart(raw []byte) (*entity.Cart, error) {
	var cart entity.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &cart, nil
}
