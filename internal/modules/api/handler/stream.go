package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// stream пушит сигналы клиенту по websocket. Доставка с авто-подтверждением.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	client := r.URL.Query().Get("client")
	if client == "" {
		writeError(w, http.StatusBadRequest, "client is required")
		return
	}
	if !h.beginStream() {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	defer h.streams.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.state.StreamOpened()
	defer h.state.StreamClosed()
	log := h.log.With(zap.String("client", client))
	log.Info("stream opened")

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	go h.readPump(conn, cancel, log)

	poll := time.NewTicker(h.streamPoll)
	defer poll.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), time.Now().Add(writeWait))
			log.Info("stream closed")
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			// отдаём всё накопившееся, по одному сообщению на сигнал
			for {
				sig, err := h.hub.Fetch(ctx, client, h.now())
				if err != nil {
					log.Error("stream fetch", zap.Error(err))
					break
				}
				if sig == nil {
					break
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(sig); err != nil {
					log.Warn("stream write", zap.Error(err))
					return
				}
			}
		}
	}
}

// readPump держит дедлайн по pong и ловит закрытие со стороны клиента.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc, log *zap.Logger) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("ws unexpected close", zap.Error(err))
			}
			return
		}
	}
}
