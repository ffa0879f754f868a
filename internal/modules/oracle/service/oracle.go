package service

import (
	"context"
	"time"

	"trade_watch/internal/helper"
	"trade_watch/internal/metrics"
	"trade_watch/internal/symbols"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Timeout        time.Duration // на один вызов поставщика
	MetalsCooldown time.Duration // пауза после rate limit от metals
}

// Oracle резолвит символ в цену по цепочке поставщиков:
// крипта -> crypto; металлы -> metals, затем fallback; остальное -> fallback.
type Oracle struct {
	cfg       Config
	symbols   *symbols.Table
	cooldowns *Cooldowns
	log       *zap.Logger

	crypto   Provider
	metals   Provider
	fallback Provider
}

type Providers struct {
	Crypto   Provider
	Metals   Provider
	Fallback Provider
}

func NewOracle(cfg Config, tbl *symbols.Table, cooldowns *Cooldowns, p Providers, log *zap.Logger) *Oracle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MetalsCooldown <= 0 {
		cfg.MetalsCooldown = time.Hour
	}
	return &Oracle{
		cfg:       cfg,
		symbols:   tbl,
		cooldowns: cooldowns,
		log:       log.Named("oracle"),
		crypto:    p.Crypto,
		metals:    p.Metals,
		fallback:  p.Fallback,
	}
}

func (o *Oracle) Cooldowns() *Cooldowns { return o.cooldowns }

// GetPrice возвращает цену и ok. Нулевая цена считается отсутствием цены.
func (o *Oracle) GetPrice(ctx context.Context, symbol string) (float64, bool) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "oracle.get_price")
	defer span.Finish()
	span.SetTag("symbol", symbol)

	price, ok := o.resolve(ctx, symbol)
	span.SetTag("ok", ok)
	return price, ok
}

func (o *Oracle) resolve(ctx context.Context, symbol string) (float64, bool) {
	switch o.symbols.Class(symbol) {
	case symbols.ClassCrypto:
		// для крипты фолбэка нет
		price, err := o.call(ctx, o.crypto, symbol)
		if err != nil {
			o.log.Warn("crypto price failed", zap.String("symbol", symbol), zap.Error(err))
			return 0, false
		}
		return price, price != 0
	case symbols.ClassMetal:
		if price, ok := o.tryMetals(ctx, symbol); ok {
			return price, true
		}
	}
	return o.tryFallback(ctx, symbol)
}

func (o *Oracle) tryMetals(ctx context.Context, symbol string) (float64, bool) {
	if o.metals == nil {
		return 0, false
	}
	name := o.metals.Name()
	if resume, active := o.cooldowns.Active(name); active {
		o.log.Debug("provider in cooldown", zap.String("provider", name), zap.Time("resume", resume))
		metrics.ProviderRequests.WithLabelValues(name, "cooldown").Inc()
		return 0, false
	}

	price, err := o.call(ctx, o.metals, symbol)
	switch {
	case err == nil && price != 0:
		return price, true
	case errors.Is(err, ErrMonthlyQuota):
		o.startCooldown(name, helper.NextUTCMonth(o.cooldowns.Now()), err)
	case errors.Is(err, ErrRateLimited):
		o.startCooldown(name, o.cooldowns.Now().Add(o.cfg.MetalsCooldown), err)
	case err != nil:
		o.log.Warn("metals price failed, falling back", zap.String("symbol", symbol), zap.Error(err))
	}
	return 0, false
}

func (o *Oracle) tryFallback(ctx context.Context, symbol string) (float64, bool) {
	if o.fallback == nil {
		return 0, false
	}
	name := o.fallback.Name()
	if resume, active := o.cooldowns.Active(name); active {
		o.log.Debug("provider in cooldown", zap.String("provider", name), zap.Time("resume", resume))
		metrics.ProviderRequests.WithLabelValues(name, "cooldown").Inc()
		return 0, false
	}

	price, err := o.call(ctx, o.fallback, symbol)
	switch {
	case err == nil:
		return price, price != 0
	case errors.Is(err, ErrRateLimited):
		o.startCooldown(name, helper.NextUTCDay(o.cooldowns.Now()), err)
	default:
		o.log.Warn("fallback price failed", zap.String("symbol", symbol), zap.Error(err))
	}
	return 0, false
}

func (o *Oracle) call(ctx context.Context, p Provider, symbol string) (float64, error) {
	if p == nil {
		return 0, errors.New("provider not configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	price, err := p.Price(callCtx, symbol)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrRateLimited):
		outcome = "rate_limited"
	case err != nil:
		outcome = "error"
	}
	metrics.ProviderRequests.WithLabelValues(p.Name(), outcome).Inc()
	return price, err
}

func (o *Oracle) startCooldown(provider string, resume time.Time, cause error) {
	if o.cooldowns.Extend(provider, resume) {
		metrics.ProviderCooldowns.WithLabelValues(provider).Inc()
	}
	o.log.Warn("provider rate limited, cooling down",
		zap.String("provider", provider),
		zap.Time("resume", resume),
		zap.Error(cause),
	)
}
