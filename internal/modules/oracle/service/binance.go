package service

import (
	"context"
	"strconv"

	"trade_watch/internal/symbols"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Binance - публичный тикер спота, ключи не нужны.
type Binance struct {
	client  *binance.Client
	limiter *rate.Limiter
	symbols *symbols.Table
}

func NewBinance(baseURL string, limiter *rate.Limiter, tbl *symbols.Table) *Binance {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &Binance{client: client, limiter: limiter, symbols: tbl}
}

func (b *Binance) Name() string { return ProviderBinance }

func (b *Binance) Price(ctx context.Context, symbol string) (float64, error) {
	pair := b.symbols.Crypto[symbol].Binance
	if pair == "" {
		return 0, errors.Errorf("binance: no pair for %s", symbol)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, errors.Wrap(err, "binance: limiter")
	}

	prices, err := b.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "binance: ticker")
	}
	for _, p := range prices {
		if p.Symbol != pair {
			continue
		}
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "binance: parse %q", p.Price)
		}
		return v, nil
	}
	return 0, errors.Errorf("binance: no price for %s", pair)
}
