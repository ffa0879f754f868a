package main

import (
	"context"

	"trade_watch/internal/modules/api"
	"trade_watch/internal/modules/config"
	"trade_watch/internal/modules/health"
	"trade_watch/internal/modules/hub"
	"trade_watch/internal/modules/monitor"
	"trade_watch/internal/modules/oracle"
	"trade_watch/internal/modules/store"
	"trade_watch/internal/notify"
	"trade_watch/pkg/logger"
	"trade_watch/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func newLogger(lc fx.Lifecycle, cfg *config.Config) *zap.Logger {
	logger.SetServiceName(cfg.Service.Name)
	log := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Output:     cfg.Log.Output,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		_ = log.Sync()
		return nil
	}})
	return log
}

// Notifier: если TELEGRAM_* нет - используем stdout
func newNotifier(cfg *config.Config, log *zap.Logger) notify.Notifier {
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.ParseMode)
		if err == nil {
			return tg
		}
		log.Error("telegram notifier unavailable, falling back to stdout", zap.Error(err))
	}
	return notify.NewStdout(log)
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) error {
	tracing.SetServiceName(cfg.Service.Name)
	_, closeFn, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		closeFn()
		return nil
	}})
	return nil
}

func main() {
	app := fx.New(
		config.Module(),
		fx.Provide(
			newLogger,
			newNotifier,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(initTracing),
		store.Module(),
		oracle.Module(),
		monitor.Module(),
		hub.Module(),
		health.Module(),
		api.Module(),
	)
	app.Run()
}
