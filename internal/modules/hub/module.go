package hub

import (
	"trade_watch/internal/modules/config"
	"trade_watch/internal/modules/hub/service"

	"go.uber.org/fx"
)

func NewConfig(cfg *config.Config) service.Config {
	return service.Config{
		MaxLog:      cfg.Hub.MaxLog,
		DedupWindow: cfg.Hub.DedupWindow,
		GraceWindow: cfg.Hub.GraceWindow,
	}
}

func Module() fx.Option {
	return fx.Module("hub",
		fx.Provide(
			NewConfig,
			service.NewHub,
		),
	)
}
