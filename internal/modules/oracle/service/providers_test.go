package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trade_watch/internal/symbols"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serveJSON(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMetals_DirectRate(t *testing.T) {
	srv := serveJSON(t, 200, `{"success":true,"base":"XAU","rates":{"USD":2350.5}}`, func(r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "XAU", r.URL.Query().Get("base"))
		assert.Equal(t, "USD", r.URL.Query().Get("symbols"))
		assert.Equal(t, "k", r.URL.Query().Get("access_key"))
	})
	m := NewMetals(srv.URL, "k", srv.Client(), nil, symbols.Default())

	price, err := m.Price(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.InDelta(t, 2350.5, price, 1e-9)
}

func TestMetals_InvertedRate(t *testing.T) {
	srv := serveJSON(t, 200, `{"success":true,"base":"USD","rates":{"XAG":0.04}}`, nil)
	m := NewMetals(srv.URL, "k", srv.Client(), nil, symbols.Default())

	price, err := m.Price(context.Background(), "SILVER")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, price, 1e-9)
}

func TestMetals_QuotaErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		monthly bool
	}{
		{"monthly code", 200, `{"success":false,"error":{"code":104,"type":"usage_limit_reached","info":"Your monthly usage limit has been reached."}}`, true},
		{"rate code", 200, `{"success":false,"error":{"code":106,"type":"rate_limit_reached"}}`, false},
		{"http 429", 429, `{}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serveJSON(t, tc.status, tc.body, nil)
			m := NewMetals(srv.URL, "k", srv.Client(), nil, symbols.Default())

			_, err := m.Price(context.Background(), "XAUUSD")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRateLimited)
			assert.Equal(t, tc.monthly, errors.Is(err, ErrMonthlyQuota))
		})
	}
}

func TestMetals_OtherErrorIsNotRateLimit(t *testing.T) {
	srv := serveJSON(t, 200, `{"success":false,"error":{"code":101,"type":"invalid_access_key"}}`, nil)
	m := NewMetals(srv.URL, "k", srv.Client(), nil, symbols.Default())

	_, err := m.Price(context.Background(), "XAUUSD")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestAlpha_ForexRate(t *testing.T) {
	srv := serveJSON(t, 200, `{"Realtime Currency Exchange Rate":{"1. From_Currency Code":"EUR","5. Exchange Rate":"1.08550000"}}`, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "CURRENCY_EXCHANGE_RATE", q.Get("function"))
		assert.Equal(t, "EUR", q.Get("from_currency"))
		assert.Equal(t, "USD", q.Get("to_currency"))
	})
	a := NewAlphaVantage(srv.URL, "k", srv.Client(), nil, symbols.Default())

	price, err := a.Price(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.InDelta(t, 1.0855, price, 1e-9)
}

func TestAlpha_IndexLatestClose(t *testing.T) {
	body := `{"Meta Data":{},"Time Series (5min)":{
		"2026-10-16 15:50:00":{"4. close":"18010.0"},
		"2026-10-16 16:00:00":{"4. close":"18020.5"},
		"2026-10-16 15:55:00":{"4. close":"18015.0"}}}`
	srv := serveJSON(t, 200, body, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "TIME_SERIES_INTRADAY", q.Get("function"))
		assert.Equal(t, "NDX", q.Get("symbol"))
		assert.Equal(t, "5min", q.Get("interval"))
	})
	a := NewAlphaVantage(srv.URL, "k", srv.Client(), nil, symbols.Default())

	price, err := a.Price(context.Background(), "NAS100")
	require.NoError(t, err)
	assert.InDelta(t, 18020.5, price, 1e-9)
}

func TestAlpha_NoteIsRateLimit(t *testing.T) {
	for _, body := range []string{
		`{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}`,
		`{"Information":"daily rate limit is 25 requests per day"}`,
	} {
		srv := serveJSON(t, 200, body, nil)
		a := NewAlphaVantage(srv.URL, "k", srv.Client(), nil, symbols.Default())

		_, err := a.Price(context.Background(), "US30")
		assert.ErrorIs(t, err, ErrRateLimited)
	}

	for _, body := range []string{
		`{"Information":"Thank you for using Alpha Vantage! This is a premium endpoint. You may subscribe to any of the premium plans"}`,
		`{"Information":"the parameter apikey is invalid or missing"}`,
	} {
		srv := serveJSON(t, 200, body, nil)
		a := NewAlphaVantage(srv.URL, "k", srv.Client(), nil, symbols.Default())

		_, err := a.Price(context.Background(), "US30")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRateLimited)
	}
}

func TestAlpha_PremiumNoticeDoesNotPauseFallback(t *testing.T) {
	srv := serveJSON(t, 200, `{"Information":"This is a premium endpoint."}`, nil)
	a := NewAlphaVantage(srv.URL, "k", srv.Client(), nil, symbols.Default())
	o := NewOracle(Config{Timeout: time.Second}, symbols.Default(), NewCooldowns(), Providers{Fallback: a}, zap.NewNop())

	_, ok := o.GetPrice(context.Background(), "US30")
	assert.False(t, ok)
	_, active := o.Cooldowns().Active(ProviderAlpha)
	assert.False(t, active)
}

func TestCoinGecko_Price(t *testing.T) {
	srv := serveJSON(t, 200, `{"bitcoin":{"usd":65000.25}}`, func(r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
	})
	c := NewCoinGecko(srv.URL, srv.Client(), nil, symbols.Default())

	price, err := c.Price(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.InDelta(t, 65000.25, price, 1e-9)

	_, err = c.Price(context.Background(), "EURUSD")
	assert.Error(t, err)
}

func TestCoinGecko_MissingField(t *testing.T) {
	srv := serveJSON(t, 200, `{}`, nil)
	c := NewCoinGecko(srv.URL, srv.Client(), nil, symbols.Default())

	_, err := c.Price(context.Background(), "ETHUSD")
	assert.Error(t, err)
}

func TestBinance_Price(t *testing.T) {
	srv := serveJSON(t, 200, `{"symbol":"BTCUSDT","price":"64999.90000000"}`, func(r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
	})
	b := NewBinance(srv.URL, nil, symbols.Default())

	price, err := b.Price(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.InDelta(t, 64999.9, price, 1e-9)
}
