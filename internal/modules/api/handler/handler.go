package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"trade_watch/internal/levels"
	"trade_watch/internal/metrics"
	"trade_watch/internal/modules/api/middleware"
	healthsvc "trade_watch/internal/modules/health/service"
	hubsvc "trade_watch/internal/modules/hub/service"
	monitorsvc "trade_watch/internal/modules/monitor/service"
	"trade_watch/internal/notify"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const maxBody = 64 << 10

type Handler struct {
	token    string
	monitor  *monitorsvc.Monitor
	hub      *hubsvc.Hub
	calc     *levels.Calculator
	notifier notify.Notifier
	state    *healthsvc.State
	log      *zap.Logger
	now      func() time.Time

	streamPoll time.Duration

	// стримы живут до Close, а не до конца запроса: после hijack Shutdown их не ждёт
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closed  bool
	streams sync.WaitGroup
}

func New(
	token string,
	monitor *monitorsvc.Monitor,
	hub *hubsvc.Hub,
	calc *levels.Calculator,
	notifier notify.Notifier,
	state *healthsvc.State,
	log *zap.Logger,
) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:        ctx,
		cancel:     cancel,
		token:      token,
		monitor:    monitor,
		hub:        hub,
		calc:       calc,
		notifier:   notifier,
		state:      state,
		log:        log.Named("api"),
		now:        time.Now,
		streamPoll: time.Second,
	}
}

// Register вешает маршруты на общий mux.
func (h *Handler) Register(mux *http.ServeMux) {
	logged := middleware.Logging(h.log)
	auth := middleware.Auth(h.token)
	open := func(f http.HandlerFunc) http.Handler { return logged(f) }
	private := func(f http.HandlerFunc) http.Handler { return logged(auth(f)) }

	// токен вебхуков приходит в теле
	mux.Handle("POST /webhook", open(h.webhook))
	mux.Handle("POST /bot-alert", open(h.botAlert))

	mux.Handle("POST /api/positions", private(h.createPosition))
	mux.Handle("GET /api/positions", private(h.listPositions))
	mux.Handle("GET /trades", private(h.listPositions))

	mux.Handle("GET /api/signals/next", private(h.nextSignal))
	mux.Handle("POST /api/signals/ack", private(h.ackSignal))
	mux.Handle("GET /api/signals", private(h.recentSignals))
	mux.Handle("GET /api/signals/stream", private(h.stream))

	mux.Handle("GET /metrics", metrics.Handler())
}

// Close закрывает открытые стримы и ждёт их завершения.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) beginStream() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.streams.Add(1)
	return true
}

// checkBodyToken - проверка токена из тела вебхука.
func (h *Handler) checkBodyToken(body map[string]any) bool {
	if h.token == "" {
		return true
	}
	return middleware.Equal(asString(body["token"]), h.token)
}

func readBody(r *http.Request) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := sonic.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// asString - строковое поле алерта; числа (например timeframe "15" как 15) тоже принимаются.
func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
