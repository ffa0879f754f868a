package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trade_watch/internal/helper"
	"trade_watch/internal/metrics"
	"trade_watch/internal/models"
	storesvc "trade_watch/internal/modules/store/service"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

type Config struct {
	MaxLog      int           // длина лога, лишнее срезается с головы
	DedupWindow int           // сколько последних записей смотреть на дубль
	GraceWindow time.Duration // новый клиент получает свежий сигнал, если он моложе этого окна
}

type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusDuplicate Status = "duplicate"
)

var errDuplicate = errors.New("duplicate signal")

type PublishInput struct {
	Symbol    string
	Side      string
	Timeframe string
	Entry     float64
	SL        *float64
	AlertTime string
	Raw       map[string]any
}

// Hub - лог сигналов и курсоры клиентов.
type Hub struct {
	cfg     Config
	signals *storesvc.Family[models.Signal]
	cursors *storesvc.Family[models.Cursor]
	log     *zap.Logger
}

func NewHub(cfg Config, signals *storesvc.Family[models.Signal], cursors *storesvc.Family[models.Cursor], log *zap.Logger) *Hub {
	if cfg.MaxLog <= 0 {
		cfg.MaxLog = 500
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 200
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 90 * time.Second
	}
	return &Hub{cfg: cfg, signals: signals, cursors: cursors, log: log.Named("hub")}
}

// Publish добавляет сигнал в лог, если такого id нет среди последних DedupWindow записей.
func (h *Hub) Publish(ctx context.Context, in PublishInput, now time.Time) (models.Signal, Status, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "hub.publish")
	defer span.Finish()

	side, ok := helper.NormSide(in.Side)
	if !ok {
		return models.Signal{}, "", fmt.Errorf("Hub.Publish: unknown side %q", in.Side)
	}
	symbol := helper.NormSymbol(in.Symbol)
	if symbol == "" {
		return models.Signal{}, "", fmt.Errorf("Hub.Publish: empty symbol")
	}
	if in.Entry <= 0 {
		return models.Signal{}, "", fmt.Errorf("Hub.Publish: entry must be positive, got %v", in.Entry)
	}
	tf := helper.NormTF(in.Timeframe)
	alertTime := in.AlertTime
	if alertTime == "" {
		alertTime = now.UTC().Truncate(time.Second).Format(time.RFC3339)
	}

	sig := models.Signal{
		ID:         SignalID(symbol, side, tf, alertTime),
		Symbol:     symbol,
		Side:       side,
		Timeframe:  tf,
		Entry:      in.Entry,
		SL:         in.SL,
		AlertTime:  in.AlertTime,
		ReceivedAt: now.UTC(),
		Raw:        in.Raw,
	}
	span.SetTag("signal_id", sig.ID)

	var existing models.Signal
	err := h.signals.Update(ctx, func(items []models.Signal) ([]models.Signal, error) {
		from := len(items) - h.cfg.DedupWindow
		if from < 0 {
			from = 0
		}
		for i := len(items) - 1; i >= from; i-- {
			if items[i].ID == sig.ID {
				existing = items[i]
				return nil, errDuplicate
			}
		}
		items = append(items, sig)
		if over := len(items) - h.cfg.MaxLog; over > 0 {
			items = items[over:]
		}
		return items, nil
	})

	var persistErr *storesvc.PersistError
	switch {
	case errors.Is(err, errDuplicate):
		metrics.SignalsPublished.WithLabelValues(string(StatusDuplicate)).Inc()
		h.log.Info("duplicate signal", zap.String("id", sig.ID), zap.String("symbol", symbol))
		return existing, StatusDuplicate, nil
	case errors.As(err, &persistErr):
		h.log.Error("persist signal log", zap.String("id", sig.ID), zap.Error(err))
	case err != nil:
		return models.Signal{}, "", fmt.Errorf("Hub.Publish: %w", err)
	}

	metrics.SignalsPublished.WithLabelValues(string(StatusAccepted)).Inc()
	h.log.Info("signal published",
		zap.String("id", sig.ID),
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.String("tf", tf),
	)
	return sig, StatusAccepted, nil
}

// NextFor - следующий сигнал для клиента или nil.
//
// Нового клиента историей не кормим: если последний сигнал моложе GraceWindow, отдаём его,
// иначе ставим курсор на хвост и возвращаем nil.
// Если курсор указывает на вытесненный из лога id, отдаём самый свежий сигнал; часть сигналов при этом пропускается.
func (h *Hub) NextFor(ctx context.Context, client string, now time.Time) (*models.Signal, error) {
	if client == "" {
		return nil, fmt.Errorf("Hub.NextFor: empty client id")
	}
	log, err := h.signals.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("Hub.NextFor: %w", err)
	}
	cursor, err := h.cursor(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("Hub.NextFor: %w", err)
	}

	newest := h.newestValid(log)
	if newest < 0 {
		return nil, nil
	}

	if cursor == nil || cursor.LastAckID == "" {
		sig := log[newest]
		if now.Sub(sig.ReceivedAt) <= h.cfg.GraceWindow {
			return h.delivered(&sig), nil
		}
		// baseline: дальше клиент получает только новые сигналы
		if err := h.Ack(ctx, client, sig.ID, now); err != nil {
			return nil, err
		}
		h.log.Info("client baselined", zap.String("client", client), zap.String("id", sig.ID))
		return nil, nil
	}

	pos := -1
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].ID == cursor.LastAckID {
			pos = i
			break
		}
	}
	if pos < 0 {
		sig := log[newest]
		h.log.Warn("cursor evicted, jumping to newest",
			zap.String("client", client),
			zap.String("cursor", cursor.LastAckID),
			zap.String("id", sig.ID),
		)
		return h.delivered(&sig), nil
	}

	for i := pos + 1; i < len(log); i++ {
		if !validID(log[i].ID) {
			h.log.Warn("skip malformed signal", zap.String("id", log[i].ID), zap.Int("index", i))
			continue
		}
		sig := log[i]
		return h.delivered(&sig), nil
	}
	return nil, nil
}

func (h *Hub) delivered(sig *models.Signal) *models.Signal {
	metrics.SignalsDelivered.Inc()
	return sig
}

func (h *Hub) newestValid(log []models.Signal) int {
	for i := len(log) - 1; i >= 0; i-- {
		if validID(log[i].ID) {
			return i
		}
		h.log.Warn("skip malformed signal", zap.String("id", log[i].ID), zap.Int("index", i))
	}
	return -1
}

func (h *Hub) cursor(ctx context.Context, client string) (*models.Cursor, error) {
	cursors, err := h.cursors.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range cursors {
		if cursors[i].ClientID == client {
			return &cursors[i], nil
		}
	}
	return nil, nil
}

// Ack перезаписывает курсор клиента. Id не проверяется.
func (h *Hub) Ack(ctx context.Context, client, id string, now time.Time) error {
	if client == "" || id == "" {
		return fmt.Errorf("Hub.Ack: client and id are required")
	}
	err := h.cursors.Update(ctx, func(items []models.Cursor) ([]models.Cursor, error) {
		for i := range items {
			if items[i].ClientID == client {
				items[i].LastAckID = id
				items[i].AckedAt = now.UTC()
				return items, nil
			}
		}
		return append(items, models.Cursor{ClientID: client, LastAckID: id, AckedAt: now.UTC()}), nil
	})
	var persistErr *storesvc.PersistError
	switch {
	case errors.As(err, &persistErr):
		h.log.Error("persist cursors", zap.String("client", client), zap.Error(err))
	case err != nil:
		return fmt.Errorf("Hub.Ack: %w", err)
	}
	return nil
}

// Fetch - NextFor с автоматическим Ack. Для клиентов, которые не умеют подтверждать.
func (h *Hub) Fetch(ctx context.Context, client string, now time.Time) (*models.Signal, error) {
	sig, err := h.NextFor(ctx, client, now)
	if err != nil || sig == nil {
		return sig, err
	}
	if err := h.Ack(ctx, client, sig.ID, now); err != nil {
		return nil, err
	}
	return sig, nil
}

// Recent - последние n записей лога, старые первыми.
func (h *Hub) Recent(ctx context.Context, n int) ([]models.Signal, error) {
	log, err := h.signals.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("Hub.Recent: %w", err)
	}
	if n > 0 && n < len(log) {
		log = log[len(log)-n:]
	}
	return log, nil
}
