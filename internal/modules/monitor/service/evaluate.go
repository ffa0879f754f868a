package service

import (
	"fmt"
	"time"

	"trade_watch/internal/models"
)

type EventKind string

const (
	EventTP1       EventKind = "tp1"
	EventTP2       EventKind = "tp2"
	EventTP3       EventKind = "tp3"
	EventSL        EventKind = "sl"
	EventBreakeven EventKind = "be_after_tp"
)

type Event struct {
	Kind EventKind
	// для EventBreakeven: был ли взят TP2
	AfterTP2 bool
}

// ErrUnknownSide - в записи сторона не long/short, позиция пропускается.
type ErrUnknownSide struct{ Side string }

func (e ErrUnknownSide) Error() string { return fmt.Sprintf("unknown side %q", e.Side) }

// Advance продвигает позицию по цене и возвращает события в порядке срабатывания.
// Тейки проверяются независимо друг от друга, так что гэп через несколько уровней даёт все события по очереди.
// После TP1 исходный стоп больше не действует, вместо него выход в безубыток.
func Advance(p *models.Position, price, eps float64, now time.Time) ([]Event, error) {
	if p.Closed {
		return nil, nil
	}
	if p.Side != models.SideLong && p.Side != models.SideShort {
		return nil, ErrUnknownSide{Side: p.Side}
	}

	var events []Event
	if !p.TP1Hit && reached(p.Side, price, p.TP1, eps) {
		p.TP1Hit = true
		events = append(events, Event{Kind: EventTP1})
	}
	if !p.TP2Hit && reached(p.Side, price, p.TP2, eps) {
		p.TP1Hit, p.TP2Hit = true, true
		events = append(events, Event{Kind: EventTP2})
	}
	if !p.TP3Hit && reached(p.Side, price, p.TP3, eps) {
		p.TP1Hit, p.TP2Hit, p.TP3Hit = true, true, true
		closePosition(p, models.CloseTP3, now)
		events = append(events, Event{Kind: EventTP3})
	}

	if !p.Closed {
		switch {
		case !p.TP1Hit && !p.SLHit && stopped(p.Side, price, p.SL, eps):
			p.SLHit = true
			closePosition(p, models.CloseSL, now)
			events = append(events, Event{Kind: EventSL})
		case p.TP1Hit && backToEntry(p.Side, price, p.Entry, eps):
			closePosition(p, models.CloseBEAfterTP, now)
			events = append(events, Event{Kind: EventBreakeven, AfterTP2: p.TP2Hit})
		}
	}

	p.LastPrice = price
	p.LastChecked = now
	return events, nil
}

func closePosition(p *models.Position, reason string, now time.Time) {
	p.Closed = true
	p.CloseReason = reason
	p.ClosedAt = now
}

// reached - цена дошла до тейка; уровень сдвинут внутрь на target*eps.
func reached(side string, price, target, eps float64) bool {
	if target <= 0 {
		return false
	}
	if side == models.SideLong {
		return price >= target*(1-eps)
	}
	return price <= target*(1+eps)
}

func stopped(side string, price, sl, eps float64) bool {
	if sl <= 0 {
		return false
	}
	if side == models.SideLong {
		return price <= sl*(1+eps)
	}
	return price >= sl*(1-eps)
}

func backToEntry(side string, price, entry, eps float64) bool {
	if side == models.SideLong {
		return price <= entry*(1+eps)
	}
	return price >= entry*(1-eps)
}
