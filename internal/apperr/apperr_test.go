package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	wrapped := fmt.Errorf("cancel order: %w", State("EOrder:Cannot cancel closed order"))

	assert.Equal(t, KindState, KindOf(wrapped))
	assert.Equal(t, "EOrder:Cannot cancel closed order", CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, State("EOrder:Cannot cancel closed order")))
	assert.False(t, errors.Is(wrapped, NotFound(CodeUnknownOrder)))
}

func TestUnclassifiedErrorsStayInternal(t *testing.T) {
	err := errors.New("disk I/O error")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindOf(err)))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(KindAuth))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(KindRateLimit))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindInsufficientFunds))
}

func TestInvalidArgument(t *testing.T) {
	err := InvalidArgument("pair")

	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, "EGeneral:Invalid arguments:pair", err.Error())
}

func TestMarketDataWrapsCause(t *testing.T) {
	cause := errors.New("coingecko timeout")
	err := MarketData(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnavailable, CodeOf(err))
}
