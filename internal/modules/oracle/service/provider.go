package service

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	ProviderCoinGecko = "coingecko"
	ProviderBinance   = "binance"
	ProviderMetals    = "metals"
	ProviderAlpha     = "alpha"
)

var (
	// ErrRateLimited - поставщик отказал по квоте.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrMonthlyQuota - исчерпан месячный лимит; тоже ErrRateLimited.
	ErrMonthlyQuota = errors.Wrap(ErrRateLimited, "monthly quota exhausted")
)

// Provider отдаёт цену символа в валюте котировки.
type Provider interface {
	Name() string
	Price(ctx context.Context, symbol string) (float64, error)
}

// NewLimiter - токен-бакет на N запросов в минуту. 0 - без ограничения.
func NewLimiter(perMinute float64) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), 1)
}

// httpSource - общий HTTP-клиент поставщиков с лимитером.
type httpSource struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPSource(name, baseURL string, client *http.Client, limiter *rate.Limiter) httpSource {
	if client == nil {
		client = http.DefaultClient
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return httpSource{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		limiter: limiter,
	}
}

func (s httpSource) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "%s: limiter", s.name)
	}

	u := s.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrapf(err, "%s: build request", s.name)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s: request", s.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.Wrapf(ErrRateLimited, "%s: http 429", s.name)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrapf(err, "%s: read body", s.name)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: http %d: %s", s.name, resp.StatusCode, truncate(string(body), 200))
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "%s: decode", s.name)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
