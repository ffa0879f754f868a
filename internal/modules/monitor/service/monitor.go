package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trade_watch/internal/levels"
	"trade_watch/internal/metrics"
	"trade_watch/internal/models"
	healthsvc "trade_watch/internal/modules/health/service"
	storesvc "trade_watch/internal/modules/store/service"
	"trade_watch/internal/notify"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PriceSource - то, что монитору нужно от оракула.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, bool)
}

type Config struct {
	Interval         time.Duration
	Epsilon          float64
	FetchConcurrency int
}

type Monitor struct {
	cfg       Config
	positions *storesvc.Family[models.Position]
	prices    PriceSource
	notifier  notify.Notifier
	calc      *levels.Calculator
	state     *healthsvc.State
	log       *zap.Logger
	now       func() time.Time

	cycleMu sync.Mutex
}

func NewMonitor(
	cfg Config,
	positions *storesvc.Family[models.Position],
	prices PriceSource,
	notifier notify.Notifier,
	calc *levels.Calculator,
	state *healthsvc.State,
	log *zap.Logger,
) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 1
	}
	return &Monitor{
		cfg:       cfg,
		positions: positions,
		prices:    prices,
		notifier:  notifier,
		calc:      calc,
		state:     state,
		log:       log.Named("monitor"),
		now:       time.Now,
	}
}

// WithClock - для тестов.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

type OpenRequest struct {
	Symbol string
	Side   string
	Levels levels.Levels
}

// Open заводит новую позицию под наблюдение.
func (m *Monitor) Open(ctx context.Context, req OpenRequest) (models.Position, error) {
	if err := validateLevels(req.Side, req.Levels); err != nil {
		return models.Position{}, fmt.Errorf("Monitor.Open: %w", err)
	}
	p := models.Position{
		ID:        uuid.NewString(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Entry:     req.Levels.Entry,
		SL:        req.Levels.SL,
		TP1:       req.Levels.TP1,
		TP2:       req.Levels.TP2,
		TP3:       req.Levels.TP3,
		CreatedAt: m.now().UTC(),
	}

	err := m.positions.Update(ctx, func(items []models.Position) ([]models.Position, error) {
		return append(items, p), nil
	})
	var persistErr *storesvc.PersistError
	switch {
	case errors.As(err, &persistErr):
		// позиция уже в памяти, сохранится при следующей записи
		m.log.Error("persist new position", zap.String("id", p.ID), zap.Error(err))
	case err != nil:
		return models.Position{}, fmt.Errorf("Monitor.Open: %w", err)
	}
	m.log.Info("position opened",
		zap.String("id", p.ID),
		zap.String("symbol", p.Symbol),
		zap.String("side", p.Side),
		zap.Float64("entry", p.Entry),
	)
	return p, nil
}

func validateLevels(side string, l levels.Levels) error {
	if l.Entry <= 0 || l.SL <= 0 || l.TP1 <= 0 || l.TP2 <= 0 || l.TP3 <= 0 {
		return fmt.Errorf("levels must be positive")
	}
	switch side {
	case models.SideLong:
		if !(l.SL < l.Entry && l.Entry < l.TP1 && l.TP1 < l.TP2 && l.TP2 < l.TP3) {
			return fmt.Errorf("long levels must satisfy sl < entry < tp1 < tp2 < tp3")
		}
	case models.SideShort:
		if !(l.SL > l.Entry && l.Entry > l.TP1 && l.TP1 > l.TP2 && l.TP2 > l.TP3) {
			return fmt.Errorf("short levels must satisfy sl > entry > tp1 > tp2 > tp3")
		}
	default:
		return fmt.Errorf("unknown side %q", side)
	}
	return nil
}

type CycleReport struct {
	Open    int
	Checked int
	Skipped int
	Events  int
}

type firedEvent struct {
	pos   models.Position
	event Event
	price float64
}

// RunCycle - один проход по открытым позициям.
// Цена берётся один раз на символ; ошибки по отдельным позициям и поставщикам цикл не прерывают.
func (m *Monitor) RunCycle(ctx context.Context) (CycleReport, error) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	span, ctx := opentracing.StartSpanFromContext(ctx, "monitor.cycle")
	defer span.Finish()

	var report CycleReport
	all, err := m.positions.LoadAll(ctx)
	if err != nil {
		return report, fmt.Errorf("Monitor.RunCycle: %w", err)
	}

	var symbolsToPrice []string
	seen := map[string]struct{}{}
	for _, p := range all {
		if p.Closed {
			continue
		}
		report.Open++
		if _, ok := seen[p.Symbol]; ok {
			continue
		}
		seen[p.Symbol] = struct{}{}
		symbolsToPrice = append(symbolsToPrice, p.Symbol)
	}

	prices := m.resolvePrices(ctx, symbolsToPrice)
	now := m.now().UTC()

	var fired []firedEvent
	err = m.positions.Update(ctx, func(items []models.Position) ([]models.Position, error) {
		for i := range items {
			p := &items[i]
			if p.Closed {
				continue
			}
			price, ok := prices[p.Symbol]
			if !ok {
				report.Skipped++
				m.log.Debug("no price, skipping", zap.String("id", p.ID), zap.String("symbol", p.Symbol))
				continue
			}
			events, err := Advance(p, price, m.cfg.Epsilon, now)
			if err != nil {
				report.Skipped++
				m.log.Warn("skip position", zap.String("id", p.ID), zap.Error(err))
				continue
			}
			report.Checked++
			for _, ev := range events {
				fired = append(fired, firedEvent{pos: *p, event: ev, price: price})
			}
		}
		return items, nil
	})
	var persistErr *storesvc.PersistError
	switch {
	case errors.As(err, &persistErr):
		// флаги монотонны, состояние в памяти остаётся и уйдёт при следующей записи
		m.log.Error("persist positions", zap.Error(err))
	case err != nil:
		return report, fmt.Errorf("Monitor.RunCycle: %w", err)
	}

	for _, f := range fired {
		metrics.MonitorEvents.WithLabelValues(string(f.event.Kind)).Inc()
		m.log.Info("position event",
			zap.String("id", f.pos.ID),
			zap.String("symbol", f.pos.Symbol),
			zap.String("event", string(f.event.Kind)),
			zap.Float64("price", f.price),
		)
		text := Message(f.pos, f.event, m.calc.FormatPrice(f.pos.Symbol, f.price))
		notify.Deliver(ctx, m.notifier, text, m.log)
	}

	report.Events = len(fired)
	metrics.MonitorCycles.Inc()
	metrics.OpenPositions.Set(float64(report.Open - countClosed(fired)))
	if m.state != nil {
		m.state.TouchCycle(now, report.Events)
	}
	span.SetTag("events", report.Events)
	return report, nil
}

func countClosed(fired []firedEvent) int {
	n := 0
	for _, f := range fired {
		switch f.event.Kind {
		case EventTP3, EventSL, EventBreakeven:
			n++
		}
	}
	return n
}

func (m *Monitor) resolvePrices(ctx context.Context, syms []string) map[string]float64 {
	var mu sync.Mutex
	out := make(map[string]float64, len(syms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.FetchConcurrency)
	for _, sym := range syms {
		g.Go(func() error {
			price, ok := m.prices.GetPrice(gctx, sym)
			if !ok || price == 0 {
				m.log.Info("price unavailable", zap.String("symbol", sym))
				return nil
			}
			mu.Lock()
			out[sym] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Run крутит цикл до отмены контекста. Первый проход сразу при старте.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) {
	report, err := m.RunCycle(ctx)
	if err != nil {
		m.log.Error("cycle failed", zap.Error(err))
		return
	}
	m.log.Debug("cycle done",
		zap.Int("open", report.Open),
		zap.Int("checked", report.Checked),
		zap.Int("skipped", report.Skipped),
		zap.Int("events", report.Events),
	)
}

// Snapshot - все позиции, открытые и закрытые.
func (m *Monitor) Snapshot(ctx context.Context) ([]models.Position, error) {
	out, err := m.positions.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("Monitor.Snapshot: %w", err)
	}
	return out, nil
}
