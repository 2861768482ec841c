package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/payment"
	"github.com/trellismart/backend/internal/repository"
)

// ---- in-memory fakes for the repository interfaces ----

type fakeCartRepo struct {
	mu    sync.Mutex
	carts map[string]*entity.Cart

	updateErr error
	cleared   []string
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{carts: make(map[string]*entity.Cart)}
}

func cloneCart(cart *entity.Cart) *entity.Cart {
	copied := *cart
	copied.Items = append([]entity.CartItem(nil), cart.Items...)
	return &copied
}

func (f *fakeCartRepo) Find(ctx context.Context, userID string) (*entity.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[userID]
	if !ok {
		return nil, apperr.NotFoundf("cart not found")
	}
	return cloneCart(cart), nil
}

// Update holds the lock across the whole read-mutate-write, matching the
// store's contract that concurrent updates to one user's cart serialize.
func (f *fakeCartRepo) Update(ctx context.Context, userID string, mutate func(cart *entity.Cart) error) (*entity.Cart, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	cart, ok := f.carts[userID]
	if !ok {
		cart = &entity.Cart{UserID: userID, Items: []entity.CartItem{}}
	}
	working := cloneCart(cart)
	if err := mutate(working); err != nil {
		return nil, err
	}
	f.carts[userID] = working
	return cloneCart(working), nil
}

func (f *fakeCartRepo) Clear(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[userID] = &entity.Cart{UserID: userID, Items: []entity.CartItem{}}
	f.cleared = append(f.cleared, userID)
	return nil
}

func (f *fakeCartRepo) seed(cart *entity.Cart) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[cart.UserID] = cloneCart(cart)
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*entity.Product

	released [][]repository.ReservationItem
}

func newFakeProductRepo(products ...*entity.Product) *fakeProductRepo {
	f := &fakeProductRepo{products: make(map[string]*entity.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProductRepo) Create(ctx context.Context, p *entity.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
	return nil
}

func (f *fakeProductRepo) FindAll(ctx context.Context) ([]entity.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Product
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProductRepo) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, apperr.NotFoundf("product with ID %s not found", id)
	}
	return p, nil
}

func (f *fakeProductRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*entity.Product)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeProductRepo) Update(ctx context.Context, p *entity.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
	return nil
}

func (f *fakeProductRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
	return nil
}

// ReserveItems mirrors the postgres primitive: all-or-nothing conditional
// decrements under one lock.
func (f *fakeProductRepo) ReserveItems(ctx context.Context, items []repository.ReservationItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	applied := make([]repository.ReservationItem, 0, len(items))
	for _, item := range items {
		v := f.variation(item)
		if v == nil || v.Stock < item.Quantity {
			for _, undo := range applied {
				f.variation(undo).Stock += undo.Quantity
			}
			return apperr.Validationf(
				"product %s with variation %s/%s is not available in the requested quantity",
				item.ProductID, item.Key.Color, item.Key.Size,
			)
		}
		v.Stock -= item.Quantity
		applied = append(applied, item)
	}
	return nil
}

func (f *fakeProductRepo) ReleaseItems(ctx context.Context, items []repository.ReservationItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		if v := f.variation(item); v != nil {
			v.Stock += item.Quantity
		}
	}
	f.released = append(f.released, items)
	return nil
}

func (f *fakeProductRepo) Seed(ctx context.Context, products []entity.Product) error { return nil }

func (f *fakeProductRepo) variation(item repository.ReservationItem) *entity.Variation {
	p, ok := f.products[item.ProductID]
	if !ok {
		return nil
	}
	return p.Variation(item.Key)
}

func (f *fakeProductRepo) stock(productID string, key entity.VariationKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.variation(repository.ReservationItem{ProductID: productID, Key: key}).Stock
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*entity.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return apperr.Validationf("username or email already registered")
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.NotFoundf("user not found")
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFoundf("user not found")
	}
	return u, nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*entity.Order

	createErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*entity.Order)}
}

func (f *fakeOrderRepo) Create(ctx context.Context, o *entity.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *o
	f.orders[o.ID] = &copied
	return nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, apperr.NotFoundf("order with ID %s not found", id)
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrderRepo) FindByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) FindByTransactionID(ctx context.Context, transactionID string) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.Payment != nil && o.Payment.TransactionID == transactionID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, apperr.NotFoundf("order with transaction %s not found", transactionID)
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id string, status entity.OrderStatus, trackingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return apperr.NotFoundf("order with ID %s not found", id)
	}
	o.Status = status
	if trackingID != "" {
		o.TrackingID = trackingID
	}
	return nil
}

func (f *fakeOrderRepo) SetPayment(ctx context.Context, id string, p entity.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return apperr.NotFoundf("order with ID %s not found", id)
	}
	o.Payment = &p
	return nil
}

func (f *fakeOrderRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return apperr.NotFoundf("order with ID %s not found", id)
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeOrderRepo) CancelStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, o := range f.orders {
		if o.Status == entity.StatusPending && o.CreatedAt.Before(olderThan) {
			o.Status = entity.StatusCancelled
			n++
		}
	}
	return n, nil
}

func (f *fakeOrderRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// ---- fakes for messaging and payment ----

type fakePublisher struct {
	mu     sync.Mutex
	events []any
}

func (f *fakePublisher) PublishEvent(ctx context.Context, topic, key string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type stubGateway struct {
	mu        sync.Mutex
	result    *payment.Result
	err       error
	initiated []decimal.Decimal
}

func (g *stubGateway) Initiate(ctx context.Context, amount decimal.Decimal, payer payment.PayerDetails) (*payment.Result, error) {
	g.mu.Lock()
	g.initiated = append(g.initiated, amount)
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type stubTwoPhaseGateway struct {
	stubGateway
	capture    *payment.Capture
	confirmErr error
	confirmed  []string
}

func (g *stubTwoPhaseGateway) Confirm(ctx context.Context, reference string) (*payment.Capture, error) {
	g.confirmed = append(g.confirmed, reference)
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	return g.capture, nil
}

// ---- shared fixtures ----

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func redM() entity.VariationKey { return entity.VariationKey{Color: "red", Size: "M"} }

func productP1(stock int) *entity.Product {
	return &entity.Product{
		ID:       "P1",
		Name:     "Classic Cotton Tee",
		SellerID: "seller-1",
		Variations: []entity.Variation{
			{Color: "red", Size: "M", Price: price("10.00"), Stock: stock},
			{Color: "blue", Size: "L", Price: price("12.50"), Stock: 4},
		},
	}
}

func cartWithP1(quantity int) *entity.Cart {
	return &entity.Cart{
		UserID: "user-1",
		Items: []entity.CartItem{{
			ProductID:   "P1",
			ProductName: "Classic Cotton Tee",
			Variation:   entity.Variation{Color: "red", Size: "M", Price: price("10.00"), Stock: 5},
			Quantity:    quantity,
		}},
	}
}
