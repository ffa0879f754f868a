package api

import (
	"context"
	"net/http"

	"trade_watch/internal/levels"
	"trade_watch/internal/modules/api/handler"
	"trade_watch/internal/modules/config"
	healthsvc "trade_watch/internal/modules/health/service"
	hubsvc "trade_watch/internal/modules/hub/service"
	monitorsvc "trade_watch/internal/modules/monitor/service"
	"trade_watch/internal/notify"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewHandler(
	cfg *config.Config,
	monitor *monitorsvc.Monitor,
	hub *hubsvc.Hub,
	calc *levels.Calculator,
	notifier notify.Notifier,
	state *healthsvc.State,
	log *zap.Logger,
) *handler.Handler {
	if cfg.Webhook.Token == "" {
		log.Warn("webhook.token is empty, api auth disabled")
	}
	return handler.New(cfg.Webhook.Token, monitor, hub, calc, notifier, state, log)
}

func register(lc fx.Lifecycle, mux *http.ServeMux, h *handler.Handler) {
	h.Register(mux)
	// стримы закрываются раньше, чем сторы сбрасываются и бэкенд закрывается
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error {
		return h.Close(ctx)
	}})
}

func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(NewHandler),
		fx.Invoke(register),
	)
}
