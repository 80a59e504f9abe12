package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MockSource is a mock implementation of Source.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) PriceFor(ctx context.Context, pair string) (decimal.Decimal, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// setupTestServer creates a new test server and a CoinGecko client configured to use it.
func setupTestServer(handler http.Handler) (*CoinGecko, *httptest.Server) {
	server := httptest.NewServer(handler)

	cg := NewCoinGecko(&config.CoinGecko{BaseURL: server.URL, Timeout: 2}, zap.NewNop())
	cg.client = resty.New().SetBaseURL(server.URL)
	cg.limiter = rate.NewLimiter(rate.Inf, 1) // Allow all requests in tests
	cg.backoff = time.Millisecond

	return cg, server
}

func TestStatic(t *testing.T) {
	s, err := NewStatic(nil)
	require.NoError(t, err)

	price, err := s.PriceFor(context.Background(), "XXBTZUSD")
	require.NoError(t, err)
	assert.Equal(t, "30000", price.String())

	_, err = s.PriceFor(context.Background(), "XDOGZUSD")
	assert.Equal(t, apperr.KindMarketData, apperr.KindOf(err))

	s.Set("XXBTZUSD", decimal.Zero)
	_, err = s.PriceFor(context.Background(), "XXBTZUSD")
	assert.Equal(t, apperr.KindMarketData, apperr.KindOf(err))

	_, err = NewStatic([]config.StaticPrice{{Pair: "XXBTZUSD", Price: "thirty"}})
	assert.Error(t, err)
}

func TestCoinGecko_PriceFor(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/simple/price", r.URL.Path)
			assert.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
			assert.Equal(t, "aud", r.URL.Query().Get("vs_currencies"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"bitcoin":{"aud":45123.5}}`))
		})
		cg, server := setupTestServer(handler)
		defer server.Close()

		// Act
		price, err := cg.PriceFor(context.Background(), "XXBTZAUD")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "45123.5", price.String())
	})

	t.Run("RetriesServerErrors", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ethereum":{"usd":2001.25}}`))
		})
		cg, server := setupTestServer(handler)
		defer server.Close()

		price, err := cg.PriceFor(context.Background(), "XETHZUSD")

		require.NoError(t, err)
		assert.Equal(t, "2001.25", price.String())
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("ClientErrorNotRetried", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid vs_currency"}`))
		})
		cg, server := setupTestServer(handler)
		defer server.Close()

		_, err := cg.PriceFor(context.Background(), "XXBTZUSD")

		assert.Equal(t, apperr.KindMarketData, apperr.KindOf(err))
		assert.Contains(t, err.Error(), "request failed with status")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("GivesUp", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		cg, server := setupTestServer(handler)
		defer server.Close()

		_, err := cg.PriceFor(context.Background(), "XXBTZUSD")

		assert.Equal(t, apperr.KindMarketData, apperr.KindOf(err))
		assert.Contains(t, err.Error(), "request failed after 3 attempts")
	})

	t.Run("MissingPrice", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		})
		cg, server := setupTestServer(handler)
		defer server.Close()

		_, err := cg.PriceFor(context.Background(), "XXBTZUSD")
		assert.Equal(t, apperr.KindMarketData, apperr.KindOf(err))
	})

	t.Run("UnmappedPair", func(t *testing.T) {
		cg := NewCoinGecko(&config.CoinGecko{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
		_, err := cg.PriceFor(context.Background(), "XDOGZUSD")
		assert.Equal(t, apperr.KindMarketData, apperr.KindOf(err))
	})
}

func TestCached(t *testing.T) {
	src := new(MockSource)
	src.On("PriceFor", mock.Anything, "XXBTZUSD").Return(decimal.NewFromInt(30000), nil).Twice()

	now := time.Unix(1700000000, 0)
	c := NewCached(src, 10*time.Second)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		price, err := c.PriceFor(ctx, "XXBTZUSD")
		require.NoError(t, err)
		assert.Equal(t, "30000", price.String())
	}

	now = now.Add(11 * time.Second)
	_, err := c.PriceFor(ctx, "XXBTZUSD")
	require.NoError(t, err)

	src.AssertExpectations(t)
}

func TestFallback(t *testing.T) {
	primary := new(MockSource)
	secondary := new(MockSource)
	primary.On("PriceFor", mock.Anything, "XXBTZUSD").Return(decimal.Zero, errors.New("upstream down"))
	secondary.On("PriceFor", mock.Anything, "XXBTZUSD").Return(decimal.NewFromInt(29000), nil)

	f := NewFallback(primary, secondary, zap.NewNop())
	price, err := f.PriceFor(context.Background(), "XXBTZUSD")

	require.NoError(t, err)
	assert.Equal(t, "29000", price.String())
	primary.AssertExpectations(t)
	secondary.AssertExpectations(t)
}

func TestNew(t *testing.T) {
	src, err := New(&config.Pricing{Source: "static"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Static{}, src)

	src, err = New(&config.Pricing{Source: "coingecko", CacheTTL: 5}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Fallback{}, src)

	_, err = New(&config.Pricing{Source: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}
