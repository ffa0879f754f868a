package handler

import (
	"net/http"
	"strconv"

	"trade_watch/internal/levels"
	"trade_watch/internal/models"
	hubsvc "trade_watch/internal/modules/hub/service"

	"go.uber.org/zap"
)

const (
	defaultRecent = 50
	maxRecent     = 500
)

type publishResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	ID       string `json:"id,omitempty"`
}

// botAlert - публикация сигнала в хаб: {token, symbol, side, entry, timeframe, sl?, time?}.
func (h *Handler) botAlert(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, publishResponse{Reason: "invalid json"})
		return
	}
	if !h.checkBodyToken(body) {
		writeJSON(w, http.StatusForbidden, publishResponse{Reason: "forbidden"})
		return
	}

	entry, ok := levels.ParseNumber(body["entry"])
	if !ok || entry <= 0 {
		writeJSON(w, http.StatusBadRequest, publishResponse{Reason: "invalid entry"})
		return
	}
	in := hubsvc.PublishInput{
		Symbol:    asString(body["symbol"]),
		Side:      asString(body["side"]),
		Timeframe: asString(body["timeframe"]),
		Entry:     entry,
		AlertTime: asString(body["time"]),
	}
	if in.Side == "" {
		in.Side = asString(body["direction"])
	}
	if sl, ok := levels.ParseNumber(body["sl"]); ok {
		in.SL = &sl
	}
	delete(body, "token")
	in.Raw = body

	sig, status, err := h.hub.Publish(r.Context(), in, h.now())
	if err != nil {
		h.log.Warn("bot alert rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, publishResponse{Reason: err.Error()})
		return
	}
	if status == hubsvc.StatusDuplicate {
		writeJSON(w, http.StatusOK, publishResponse{Reason: string(status), ID: sig.ID})
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{Accepted: true, ID: sig.ID})
}

// nextSignal - следующий сигнал клиента; ack=auto сразу сдвигает курсор.
func (h *Handler) nextSignal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	client := q.Get("client")
	if client == "" {
		writeError(w, http.StatusBadRequest, "client is required")
		return
	}

	var (
		sig *models.Signal
		err error
	)
	if q.Get("ack") == "auto" {
		sig, err = h.hub.Fetch(r.Context(), client, h.now())
	} else {
		sig, err = h.hub.NextFor(r.Context(), client, h.now())
	}
	if err != nil {
		h.log.Error("next signal", zap.String("client", client), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signal": sig})
}

func (h *Handler) ackSignal(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	client, id := asString(body["client"]), asString(body["id"])
	if client == "" || id == "" {
		writeError(w, http.StatusBadRequest, "client and id are required")
		return
	}
	if err := h.hub.Ack(r.Context(), client, id, h.now()); err != nil {
		h.log.Error("ack signal", zap.String("client", client), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) recentSignals(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecent
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxRecent {
		limit = maxRecent
	}

	items, err := h.hub.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error("recent signals", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if items == nil {
		items = []models.Signal{}
	}
	writeJSON(w, http.StatusOK, items)
}
