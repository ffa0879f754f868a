package handler

import (
	"fmt"
	"net/http"

	"trade_watch/internal/helper"
	"trade_watch/internal/levels"
	"trade_watch/internal/models"
	monitorsvc "trade_watch/internal/modules/monitor/service"
	"trade_watch/internal/notify"

	"go.uber.org/zap"
)

type entryAlert struct {
	symbol string
	side   string
	levels levels.Levels
}

// parseEntry разбирает {symbol, side|direction, entry, sl?, tp1?, tp2?, tp3?}.
// Без явных тейков уровни считает калькулятор.
func (h *Handler) parseEntry(body map[string]any) (entryAlert, error) {
	symbol := helper.NormSymbol(asString(body["symbol"]))
	if symbol == "" {
		return entryAlert{}, fmt.Errorf("symbol is required")
	}
	rawSide := helper.FirstNonEmpty(asString(body["side"]), asString(body["direction"]))
	side, ok := helper.NormSide(rawSide)
	if !ok {
		return entryAlert{}, fmt.Errorf("invalid side %q", rawSide)
	}
	entry, ok := levels.ParseNumber(body["entry"])
	if !ok || entry <= 0 {
		return entryAlert{}, fmt.Errorf("invalid entry")
	}

	sl, hasSL := levels.ParseNumber(body["sl"])
	tp1, ok1 := levels.ParseNumber(body["tp1"])
	tp2, ok2 := levels.ParseNumber(body["tp2"])
	tp3, ok3 := levels.ParseNumber(body["tp3"])

	var (
		l   levels.Levels
		err error
	)
	switch {
	case hasSL && ok1 && ok2 && ok3:
		l = levels.Levels{Entry: entry, SL: sl, TP1: tp1, TP2: tp2, TP3: tp3}
	case hasSL:
		l, err = h.calc.FromStop(symbol, side, entry, sl)
	default:
		l, err = h.calc.Compute(symbol, side, entry)
	}
	if err != nil {
		return entryAlert{}, err
	}
	return entryAlert{symbol: symbol, side: side, levels: l}, nil
}

// webhook - входной алерт: считаем уровни, ставим позицию на наблюдение и шлём сообщение о входе.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !h.checkBodyToken(body) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	alert, err := h.parseEntry(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// сообщение о входе уходит только для позиции, которую приняли на наблюдение
	p, err := h.monitor.Open(r.Context(), monitorsvc.OpenRequest{Symbol: alert.symbol, Side: alert.side, Levels: alert.levels})
	if err != nil {
		h.log.Error("open position from webhook", zap.String("symbol", alert.symbol), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	notify.Deliver(r.Context(), h.notifier, h.calc.EntryMessage(alert.symbol, alert.side, alert.levels), h.log)

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "position": p})
}

func (h *Handler) createPosition(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	alert, err := h.parseEntry(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.monitor.Open(r.Context(), monitorsvc.OpenRequest{Symbol: alert.symbol, Side: alert.side, Levels: alert.levels})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) listPositions(w http.ResponseWriter, r *http.Request) {
	items, err := h.monitor.Snapshot(r.Context())
	if err != nil {
		h.log.Error("positions snapshot", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if items == nil {
		items = []models.Position{}
	}
	writeJSON(w, http.StatusOK, items)
}
