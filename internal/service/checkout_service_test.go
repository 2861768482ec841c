package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/metrics"
	"github.com/trellismart/backend/internal/payment"
)

type checkoutFixture struct {
	carts    *fakeCartRepo
	products *fakeProductRepo
	orders   *fakeOrderRepo
	stripe   *stubGateway
	paypal   *stubTwoPhaseGateway
	events   *fakePublisher
	svc      *CheckoutService
}

func newCheckoutFixture(t *testing.T, products ...*entity.Product) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		carts:    newFakeCartRepo(),
		products: newFakeProductRepo(products...),
		orders:   newFakeOrderRepo(),
		stripe:   &stubGateway{result: &payment.Result{TransactionID: "pi_123"}},
		paypal: &stubTwoPhaseGateway{
			stubGateway: stubGateway{result: &payment.Result{TransactionID: "PAY-42", ApprovalURL: "https://paypal.test/approve/PAY-42"}},
			capture:     &payment.Capture{TransactionID: "CAP-42", Status: "COMPLETED"},
		},
		events: &fakePublisher{},
	}
	gateways := map[payment.Method]payment.Gateway{
		payment.MethodStripe: f.stripe,
		payment.MethodPayPal: f.paypal,
	}
	f.svc = NewCheckoutService(f.carts, f.products, f.orders, gateways, f.events, metrics.NewNop(), "orders.confirmed")
	return f
}

func stripeRequest() CheckoutRequest {
	return CheckoutRequest{
		ShippingAddress: "1 Main St",
		BillingAddress:  "1 Main St",
		Payer:           payment.PayerDetails{Email: "buyer@example.com"},
		Method:          payment.MethodStripe,
	}
}

func paypalRequest() CheckoutRequest {
	req := stripeRequest()
	req.Method = payment.MethodPayPal
	return req
}

func TestCheckoutImmediateCapture(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))
	f.carts.seed(cartWithP1(2))

	result, err := f.svc.Checkout(context.Background(), "user-1", stripeRequest())
	require.NoError(t, err)

	assert.Equal(t, entity.StatusCompleted, result.Order.Status)
	assert.True(t, result.Order.TotalAmount.Equal(price("20.00")), "total was %s", result.Order.TotalAmount)
	assert.Empty(t, result.ApprovalURL)
	require.NotNil(t, result.Order.Payment)
	assert.Equal(t, "pi_123", result.Order.Payment.TransactionID)

	// Stock decremented by the reservation, cart cleared on settlement.
	assert.Equal(t, 3, f.products.stock("P1", redM()))
	cart, err := f.carts.Find(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	// Gateway was charged exactly the snapshot total.
	require.Len(t, f.stripe.initiated, 1)
	assert.True(t, f.stripe.initiated[0].Equal(price("20.00")))

	require.Len(t, f.events.events, 1)
	confirmed, ok := f.events.events[0].(entity.OrderConfirmed)
	require.True(t, ok)
	assert.Equal(t, result.Order.ID, confirmed.OrderID)
}

func TestCheckoutRejectsInsufficientStock(t *testing.T) {
	f := newCheckoutFixture(t, productP1(1))
	f.carts.seed(cartWithP1(2))

	_, err := f.svc.Checkout(context.Background(), "user-1", stripeRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Rejected at verification: no order, no stock movement, no charge.
	assert.Zero(t, f.orders.count())
	assert.Equal(t, 1, f.products.stock("P1", redM()))
	assert.Empty(t, f.stripe.initiated)
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))
	f.carts.seed(&entity.Cart{UserID: "user-1", Items: []entity.CartItem{}})

	_, err := f.svc.Checkout(context.Background(), "user-1", stripeRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.EqualError(t, err, "cart is empty")
}

func TestCheckoutRejectsUnknownMethod(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))
	f.carts.seed(cartWithP1(1))

	req := stripeRequest()
	req.Method = payment.MethodUnknown
	_, err := f.svc.Checkout(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCheckoutChargesSnapshotPriceNotCatalogPrice(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))
	f.carts.seed(cartWithP1(2))

	// Seller raises the price after the item went into the cart.
	catalog, err := f.products.FindByID(context.Background(), "P1")
	require.NoError(t, err)
	catalog.Variations[0].Price = price("99.99")

	result, err := f.svc.Checkout(context.Background(), "user-1", stripeRequest())
	require.NoError(t, err)
	assert.True(t, result.Order.TotalAmount.Equal(price("20.00")), "total was %s", result.Order.TotalAmount)
	assert.True(t, result.Order.Items[0].Price.Equal(price("10.00")))
}

func TestCheckoutPaymentFailureReleasesReservation(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))
	f.stripe.err = apperr.Paymentf("stripe: card declined")
	f.carts.seed(cartWithP1(2))

	_, err := f.svc.Checkout(context.Background(), "user-1", stripeRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.KindPayment, apperr.KindOf(err))

	// Reservation rolled back, cart untouched, Pending order kept as the
	// audit record of the attempt.
	assert.Equal(t, 5, f.products.stock("P1", redM()))
	require.Len(t, f.products.released, 1)
	cart, err := f.carts.Find(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 1, f.orders.count())
}

func TestCheckoutTwoPhaseHoldsNothing(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))
	f.carts.seed(cartWithP1(2))

	result, err := f.svc.Checkout(context.Background(), "user-1", paypalRequest())
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPending, result.Order.Status)
	assert.Equal(t, "https://paypal.test/approve/PAY-42", result.ApprovalURL)

	// Nothing is held until the payer approves: stock and cart unchanged.
	assert.Equal(t, 5, f.products.stock("P1", redM()))
	cart, err := f.carts.Find(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Empty(t, f.events.events)
}

func TestCompleteOrderSettlesTwoPhaseCheckout(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))
	f.carts.seed(cartWithP1(2))

	initiated, err := f.svc.Checkout(context.Background(), "user-1", paypalRequest())
	require.NoError(t, err)

	order, err := f.svc.CompleteOrder(context.Background(), "PAY-42")
	require.NoError(t, err)

	assert.Equal(t, initiated.Order.ID, order.ID)
	assert.Equal(t, entity.StatusCompleted, order.Status)
	require.NotNil(t, order.Payment)
	assert.Equal(t, "CAP-42", order.Payment.TransactionID)

	assert.Equal(t, 3, f.products.stock("P1", redM()))
	cart, err := f.carts.Find(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	require.Len(t, f.paypal.confirmed, 1)
	require.Len(t, f.events.events, 1)
}

func TestCompleteOrderIsIdempotent(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))
	f.carts.seed(cartWithP1(2))

	_, err := f.svc.Checkout(context.Background(), "user-1", paypalRequest())
	require.NoError(t, err)
	first, err := f.svc.CompleteOrder(context.Background(), "PAY-42")
	require.NoError(t, err)

	// The provider replays the callback; the settled capture token is now on
	// the order.
	second, err := f.svc.CompleteOrder(context.Background(), "CAP-42")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, entity.StatusCompleted, second.Status)
	assert.Equal(t, 3, f.products.stock("P1", redM()), "replay must not reserve again")
	assert.Len(t, f.paypal.confirmed, 1, "replay must not capture again")
}

func TestCompleteOrderRequiresMatchingTwoPhaseGateway(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))

	// A Pending order stamped with an immediate-capture method must never be
	// captured through another provider's adapter.
	stamped := &entity.Order{
		ID:      "O-stripe",
		UserID:  "user-1",
		Status:  entity.StatusPending,
		Payment: &entity.Payment{Method: "stripe", TransactionID: "pi_9"},
	}
	require.NoError(t, f.orders.Create(context.Background(), stamped))

	_, err := f.svc.CompleteOrder(context.Background(), "pi_9")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Empty(t, f.paypal.confirmed, "the wrong adapter must not capture")
	assert.Equal(t, 5, f.products.stock("P1", redM()))
}

func TestCompleteOrderUnknownToken(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))

	_, err := f.svc.CompleteOrder(context.Background(), "no-such-token")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCompleteOrderCaptureFailureReleasesReservation(t *testing.T) {
	f := newCheckoutFixture(t, productP1(5))
	f.paypal.confirmErr = apperr.Paymentf("paypal: capture failed")
	f.carts.seed(cartWithP1(2))

	_, err := f.svc.Checkout(context.Background(), "user-1", paypalRequest())
	require.NoError(t, err)

	_, err = f.svc.CompleteOrder(context.Background(), "PAY-42")
	require.Error(t, err)
	assert.Equal(t, apperr.KindPayment, apperr.KindOf(err))

	assert.Equal(t, 5, f.products.stock("P1", redM()))
	require.Len(t, f.products.released, 1)

	order, err := f.orders.FindByTransactionID(context.Background(), "PAY-42")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, order.Status)
}

func TestConcurrentCheckoutsSellLastUnitOnce(t *testing.T) {
	f := newCheckoutFixture(t, productP1(1))

	users := []string{"user-a", "user-b"}
	for _, userID := range users {
		cart := cartWithP1(1)
		cart.UserID = userID
		f.carts.seed(cart)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, userID := range users {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(context.Background(), userID, stripeRequest())
		}(i, userID)
	}
	wg.Wait()

	var successes, rejections int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case apperr.KindOf(err) == apperr.KindValidation:
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.LessOrEqual(t, successes, 1, "the last unit must not be sold twice")
	assert.Equal(t, len(users), successes+rejections)
	assert.GreaterOrEqual(t, f.products.stock("P1", redM()), 0)
}

func TestPendingOrderReaperCancelsStaleOrders(t *testing.T) {
	f := newCheckoutFixture(t)

	stale := &entity.Order{
		ID:        "stale-1",
		UserID:    "user-1",
		Status:    entity.StatusPending,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	fresh := &entity.Order{
		ID:        "fresh-1",
		UserID:    "user-1",
		Status:    entity.StatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.orders.Create(context.Background(), stale))
	require.NoError(t, f.orders.Create(context.Background(), fresh))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.svc.RunPendingOrderReaper(ctx, 30*time.Minute, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		order, err := f.orders.FindByID(context.Background(), "stale-1")
		return err == nil && order.Status == entity.StatusCancelled
	}, time.Second, 10*time.Millisecond)

	order, err := f.orders.FindByID(context.Background(), "fresh-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, order.Status)
}
