package service

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"trade_watch/internal/symbols"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const quoteCurrency = "USD"

// metals-api коды квоты: 104 - месячный лимит, 106 - превышена частота.
const (
	metalsCodeMonthly   = 104
	metalsCodeRateLimit = 106
)

type Metals struct {
	src     httpSource
	key     string
	symbols *symbols.Table
}

func NewMetals(baseURL, key string, client *http.Client, limiter *rate.Limiter, tbl *symbols.Table) *Metals {
	return &Metals{src: newHTTPSource(ProviderMetals, baseURL, client, limiter), key: key, symbols: tbl}
}

func (m *Metals) Name() string { return ProviderMetals }

type metalsResponse struct {
	Success bool               `json:"success"`
	Base    string             `json:"base"`
	Rates   map[string]float64 `json:"rates"`
	Error   *metalsError       `json:"error"`
}

type metalsError struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Info string `json:"info"`
}

func (m *Metals) Price(ctx context.Context, symbol string) (float64, error) {
	metal := m.symbols.Metals[symbol]
	if metal == "" {
		return 0, errors.Errorf("metals: %s is not a metal", symbol)
	}

	var resp metalsResponse
	q := url.Values{"access_key": {m.key}, "base": {metal}, "symbols": {quoteCurrency}}
	if err := m.src.getJSON(ctx, "/latest", q, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, classifyMetalsError(resp.Error)
	}
	return normalizeMetalsRate(metal, resp)
}

func classifyMetalsError(e *metalsError) error {
	if e == nil {
		return errors.New("metals: unsuccessful response without error")
	}
	text := strings.ToLower(e.Type + " " + e.Info)
	switch {
	case e.Code == metalsCodeMonthly || strings.Contains(text, "monthly"):
		return errors.Wrapf(ErrMonthlyQuota, "metals: %d %s", e.Code, e.Type)
	case e.Code == metalsCodeRateLimit || strings.Contains(text, "usage_limit") || strings.Contains(text, "rate_limit"):
		return errors.Wrapf(ErrRateLimited, "metals: %d %s", e.Code, e.Type)
	default:
		return errors.Errorf("metals: %d %s %s", e.Code, e.Type, e.Info)
	}
}

// normalizeMetalsRate приводит ответ к цене металла в USD.
// base=<металл> => rates.USD; base=USD => 1/rates[<металл>].
func normalizeMetalsRate(metal string, resp metalsResponse) (float64, error) {
	base := strings.ToUpper(resp.Base)
	switch {
	case (base == metal || base == "") && resp.Rates[quoteCurrency] > 0:
		return resp.Rates[quoteCurrency], nil
	case base == quoteCurrency && resp.Rates[metal] > 0:
		return 1 / resp.Rates[metal], nil
	default:
		return 0, errors.Errorf("metals: no usable rate for %s (base %q)", metal, resp.Base)
	}
}
