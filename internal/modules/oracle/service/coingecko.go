package service

import (
	"context"
	"net/http"
	"net/url"

	"trade_watch/internal/symbols"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

type CoinGecko struct {
	src     httpSource
	symbols *symbols.Table
}

func NewCoinGecko(baseURL string, client *http.Client, limiter *rate.Limiter, tbl *symbols.Table) *CoinGecko {
	return &CoinGecko{src: newHTTPSource(ProviderCoinGecko, baseURL, client, limiter), symbols: tbl}
}

func (c *CoinGecko) Name() string { return ProviderCoinGecko }

func (c *CoinGecko) Price(ctx context.Context, symbol string) (float64, error) {
	id := c.symbols.Crypto[symbol].CoinGecko
	if id == "" {
		return 0, errors.Errorf("coingecko: no id for %s", symbol)
	}

	var resp map[string]map[string]float64
	q := url.Values{"ids": {id}, "vs_currencies": {"usd"}}
	if err := c.src.getJSON(ctx, "/simple/price", q, &resp); err != nil {
		return 0, err
	}
	price, ok := resp[id]["usd"]
	if !ok {
		return 0, errors.Errorf("coingecko: no usd price for %s", id)
	}
	return price, nil
}
