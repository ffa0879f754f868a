package monitor

import (
	"context"

	"trade_watch/internal/levels"
	"trade_watch/internal/modules/config"
	healthsvc "trade_watch/internal/modules/health/service"
	"trade_watch/internal/modules/monitor/service"
	oraclesvc "trade_watch/internal/modules/oracle/service"
	"trade_watch/internal/symbols"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewConfig(cfg *config.Config) service.Config {
	return service.Config{
		Interval:         cfg.Monitor.Interval,
		Epsilon:          cfg.Monitor.Epsilon,
		FetchConcurrency: cfg.Monitor.FetchConcurrency,
	}
}

func NewCalculator(cfg *config.Config, tbl *symbols.Table) *levels.Calculator {
	return levels.NewCalculator(levels.Config{
		RiskPct:      cfg.Levels.RiskPct,
		MetalsTPPct:  cfg.Levels.MetalsTPPct,
		RewardRatios: cfg.Levels.RewardRatios,
	}, tbl)
}

func asPriceSource(o *oraclesvc.Oracle) service.PriceSource { return o }

func runLoop(lc fx.Lifecycle, m *service.Monitor, state *healthsvc.State, log *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   = make(chan struct{})
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, c := context.WithCancel(context.Background())
			cancel = c
			go func() {
				defer close(done)
				m.Run(ctx)
			}()
			state.SetReady(true)
			log.Info("monitor loop started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			log.Info("monitor loop stopped")
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("monitor",
		fx.Provide(
			NewConfig,
			NewCalculator,
			asPriceSource,
			service.NewMonitor,
		),
		fx.Invoke(runLoop),
	)
}
