package notify

import (
	"context"
	"fmt"

	"trade_watch/internal/metrics"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Telegram - отправка в один чат.
type Telegram struct {
	bot       *tgbot.BotAPI
	chatID    int64
	parseMode string
}

func NewTelegram(token string, chatID int64, parseMode string) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID, parseMode: parseMode}, nil
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbot.NewMessage(t.chatID, text)
	msg.ParseMode = t.parseMode
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Stdout - заглушка, всё логирует.
type Stdout struct {
	log *zap.Logger
}

func NewStdout(log *zap.Logger) *Stdout {
	return &Stdout{log: log.Named("notify")}
}

func (s *Stdout) Send(_ context.Context, text string) error {
	s.log.Info("notification", zap.String("text", text))
	return nil
}

// Deliver отправляет сообщение и при ошибке пробует ещё раз. Результат второй попытки только логируется.
func Deliver(ctx context.Context, n Notifier, text string, log *zap.Logger) bool {
	err := n.Send(ctx, text)
	if err == nil {
		return true
	}
	log.Warn("notify failed, retrying", zap.Error(err))

	if err = n.Send(ctx, text); err != nil {
		metrics.NotifyFailures.Inc()
		log.Error("notify failed after retry", zap.Error(err))
		return false
	}
	return true
}
