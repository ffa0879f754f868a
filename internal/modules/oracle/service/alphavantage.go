package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"trade_watch/internal/symbols"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const alphaInterval = "5min"

// AlphaVantage - фолбэк для всего, что не крипта: FX-пары и индексы.
type AlphaVantage struct {
	src     httpSource
	key     string
	symbols *symbols.Table
}

func NewAlphaVantage(baseURL, key string, client *http.Client, limiter *rate.Limiter, tbl *symbols.Table) *AlphaVantage {
	return &AlphaVantage{src: newHTTPSource(ProviderAlpha, baseURL, client, limiter), key: key, symbols: tbl}
}

func (a *AlphaVantage) Name() string { return ProviderAlpha }

type alphaResponse struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`

	Rate *struct {
		Value string `json:"5. Exchange Rate"`
	} `json:"Realtime Currency Exchange Rate"`

	Series map[string]alphaBar `json:"Time Series (5min)"`
}

type alphaBar struct {
	Close string `json:"4. close"`
}

func (a *AlphaVantage) Price(ctx context.Context, symbol string) (float64, error) {
	ticker := a.symbols.Alias(symbol)

	q := url.Values{"apikey": {a.key}}
	fx := len(ticker) == 6
	if fx {
		q.Set("function", "CURRENCY_EXCHANGE_RATE")
		q.Set("from_currency", ticker[:3])
		q.Set("to_currency", ticker[3:])
	} else {
		q.Set("function", "TIME_SERIES_INTRADAY")
		q.Set("symbol", ticker)
		q.Set("interval", alphaInterval)
	}

	var resp alphaResponse
	if err := a.src.getJSON(ctx, "/query", q, &resp); err != nil {
		return 0, err
	}
	if notice := strings.TrimSpace(resp.Note + " " + resp.Information); notice != "" {
		return 0, classifyAlphaNotice(notice)
	}
	if resp.ErrorMessage != "" {
		return 0, errors.Errorf("alpha: %s", resp.ErrorMessage)
	}

	if fx {
		if resp.Rate == nil || resp.Rate.Value == "" {
			return 0, errors.Errorf("alpha: no exchange rate for %s", ticker)
		}
		return parseAlphaNumber(resp.Rate.Value)
	}
	return latestClose(ticker, resp.Series)
}

// Alpha Vantage отвечает 200 с Note/Information и на квоту, и на premium-эндпоинты или плохой ключ.
// Паузу ставим только на квоту.
var alphaRateMarkers = []string{"rate limit", "call frequency", "requests per day", "requests per minute"}

func classifyAlphaNotice(notice string) error {
	lower := strings.ToLower(notice)
	for _, m := range alphaRateMarkers {
		if strings.Contains(lower, m) {
			return errors.Wrapf(ErrRateLimited, "alpha: %s", notice)
		}
	}
	return errors.Errorf("alpha: %s", notice)
}

// latestClose - close последней свечи. Ключи серии - "2006-01-02 15:04:05", сортируются как строки.
func latestClose(ticker string, series map[string]alphaBar) (float64, error) {
	latest := ""
	for ts := range series {
		if ts > latest {
			latest = ts
		}
	}
	if latest == "" {
		return 0, errors.Errorf("alpha: empty intraday series for %s", ticker)
	}
	return parseAlphaNumber(series[latest].Close)
}

func parseAlphaNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "alpha: parse %q", s)
	}
	return v, nil
}
