package oracle

import (
	"net/http"

	"trade_watch/internal/modules/config"
	"trade_watch/internal/modules/oracle/service"
	"trade_watch/internal/symbols"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewConfig(cfg *config.Config) service.Config {
	return service.Config{
		Timeout:        cfg.Oracle.Timeout,
		MetalsCooldown: cfg.Oracle.Metals.Cooldown,
	}
}

// NewProviders собирает цепочку по конфигу. Поставщик без ключа не подключается.
func NewProviders(cfg *config.Config, tbl *symbols.Table, log *zap.Logger) service.Providers {
	client := &http.Client{}
	oc := cfg.Oracle

	var p service.Providers
	switch oc.CryptoProvider {
	case service.ProviderBinance:
		p.Crypto = service.NewBinance(oc.Binance.BaseURL, service.NewLimiter(oc.Binance.RatePerMinute), tbl)
	default:
		p.Crypto = service.NewCoinGecko(oc.CoinGecko.BaseURL, client, service.NewLimiter(oc.CoinGecko.RatePerMinute), tbl)
	}

	if oc.Metals.Key != "" {
		p.Metals = service.NewMetals(oc.Metals.BaseURL, oc.Metals.Key, client, service.NewLimiter(oc.Metals.RatePerMinute), tbl)
	} else {
		log.Warn("metals provider disabled: no api key")
	}
	if oc.Alpha.Key != "" {
		p.Fallback = service.NewAlphaVantage(oc.Alpha.BaseURL, oc.Alpha.Key, client, service.NewLimiter(oc.Alpha.RatePerMinute), tbl)
	} else {
		log.Warn("alpha vantage provider disabled: no api key")
	}

	log.Info("price providers ready", zap.String("crypto", p.Crypto.Name()))
	return p
}

func Module() fx.Option {
	return fx.Module("oracle",
		fx.Provide(
			symbols.Default,
			service.NewCooldowns,
			NewConfig,
			NewProviders,
			service.NewOracle,
		),
	)
}
