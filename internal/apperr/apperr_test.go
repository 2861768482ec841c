package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapClassifiesPlainErrors(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Wrap(KindInternal, "order creation failed", cause)

	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.EqualError(t, err, "order creation failed: pq: connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestWrapPreservesExistingKind(t *testing.T) {
	notFound := NotFoundf("cart not found")

	err := Wrap(KindInternal, "cart operation failed", notFound)
	assert.Equal(t, KindNotFound, KindOf(err))

	// Even when a layer in between already wrapped it with fmt-style %w.
	nested := Wrap(KindInternal, "outer", errors.Join(errors.New("noise"), notFound))
	assert.Equal(t, KindNotFound, KindOf(nested))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindInternal, "whatever", nil))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{Validationf("bad input"), http.StatusBadRequest},
		{NotFoundf("missing"), http.StatusNotFound},
		{New(KindUnauthorized, "no token"), http.StatusUnauthorized},
		{New(KindForbidden, "not yours"), http.StatusForbidden},
		{Paymentf("declined"), http.StatusPaymentRequired},
		{New(KindInternal, "boom"), http.StatusInternalServerError},
		{errors.New("untagged"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), "error %v", tc.err)
	}
}
