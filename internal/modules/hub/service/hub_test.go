package service

import (
	"context"
	"testing"
	"time"

	"trade_watch/internal/models"
	storesvc "trade_watch/internal/modules/store/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func newHub(t *testing.T, cfg Config) *Hub {
	t.Helper()
	backend, err := storesvc.NewBadgerBackend("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	signals := storesvc.NewFamily[models.Signal](storesvc.FamilySignals, backend, zap.NewNop())
	cursors := storesvc.NewFamily[models.Cursor](storesvc.FamilyCursors, backend, zap.NewNop())
	return NewHub(cfg, signals, cursors, zap.NewNop())
}

func alert(symbol, ts string) PublishInput {
	return PublishInput{Symbol: symbol, Side: "buy", Timeframe: "15", Entry: 100, AlertTime: ts}
}

func publish(t *testing.T, h *Hub, in PublishInput, now time.Time) models.Signal {
	t.Helper()
	sig, status, err := h.Publish(context.Background(), in, now)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, status)
	return sig
}

func TestSignalID_Deterministic(t *testing.T) {
	a := SignalID("BTCUSD", "long", "15m", "2026-10-19T12:00:00Z")
	b := SignalID("BTCUSD", "long", "15m", "2026-10-19T12:00:00Z")
	c := SignalID("BTCUSD", "short", "15m", "2026-10-19T12:00:00Z")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, validID(a))
	assert.False(t, validID(""))
	assert.False(t, validID("not-base62!"))
}

func TestPublish_Dedup(t *testing.T) {
	h := newHub(t, Config{})
	ctx := context.Background()

	first := publish(t, h, alert(" btcusd ", "1700000000"), t0)
	assert.Equal(t, "BTCUSD", first.Symbol)
	assert.Equal(t, models.SideLong, first.Side)

	again, status, err := h.Publish(ctx, alert("BTCUSD", "1700000000"), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, status)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.ReceivedAt, again.ReceivedAt)

	log, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestPublish_MissingAlertTimeUsesReceivedSecond(t *testing.T) {
	h := newHub(t, Config{})
	ctx := context.Background()

	first := publish(t, h, alert("ETHUSD", ""), t0.Add(100*time.Millisecond))
	_, status, err := h.Publish(ctx, alert("ETHUSD", ""), t0.Add(900*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, status)

	second := publish(t, h, alert("ETHUSD", ""), t0.Add(time.Second))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestPublish_RejectsBadInput(t *testing.T) {
	h := newHub(t, Config{})
	_, _, err := h.Publish(context.Background(), PublishInput{Symbol: "X", Side: "flat"}, t0)
	assert.Error(t, err)
	_, _, err = h.Publish(context.Background(), PublishInput{Symbol: "  ", Side: "buy", Entry: 1}, t0)
	assert.Error(t, err)
	_, _, err = h.Publish(context.Background(), PublishInput{Symbol: "X", Side: "buy", Entry: 0}, t0)
	assert.Error(t, err)
	_, _, err = h.Publish(context.Background(), PublishInput{Symbol: "X", Side: "sell", Entry: -3}, t0)
	assert.Error(t, err)

	log, err := h.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestPublish_EvictsFromHead(t *testing.T) {
	h := newHub(t, Config{MaxLog: 3, DedupWindow: 3})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		sig := publish(t, h, alert("EURUSD", time.Unix(int64(1700000000+i), 0).UTC().Format(time.RFC3339)), t0)
		ids = append(ids, sig.ID)
	}

	log, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, ids[2], log[0].ID)
	assert.Equal(t, ids[4], log[2].ID)

	// вытесненный id снова принимается
	_, status, err := h.Publish(ctx, alert("EURUSD", time.Unix(1700000000, 0).UTC().Format(time.RFC3339)), t0)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, status)
}

func TestNextFor_EmptyLog(t *testing.T) {
	h := newHub(t, Config{})
	sig, err := h.NextFor(context.Background(), "c1", t0)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestNextFor_NewClientBaseline(t *testing.T) {
	h := newHub(t, Config{GraceWindow: 90 * time.Second})
	ctx := context.Background()

	publish(t, h, alert("A", "1"), t0)
	newest := publish(t, h, alert("B", "2"), t0)

	// сигналы старше окна: клиент получает базовую линию, история не отдаётся
	now := t0.Add(10 * time.Minute)
	sig, err := h.NextFor(ctx, "fresh", now)
	require.NoError(t, err)
	assert.Nil(t, sig)

	c, err := h.cursor(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, newest.ID, c.LastAckID)

	next := publish(t, h, alert("C", "3"), now)
	sig, err = h.NextFor(ctx, "fresh", now)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, next.ID, sig.ID)
}

func TestNextFor_NewClientGrace(t *testing.T) {
	h := newHub(t, Config{GraceWindow: 90 * time.Second})
	ctx := context.Background()

	publish(t, h, alert("A", "1"), t0)
	recent := publish(t, h, alert("B", "2"), t0.Add(time.Minute))

	sig, err := h.NextFor(ctx, "fresh", t0.Add(2*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, recent.ID, sig.ID)
}

func TestNextFor_ContinuationAndAck(t *testing.T) {
	h := newHub(t, Config{})
	ctx := context.Background()

	s1 := publish(t, h, alert("A", "1"), t0)
	s2 := publish(t, h, alert("B", "2"), t0)
	s3 := publish(t, h, alert("C", "3"), t0)

	require.NoError(t, h.Ack(ctx, "c1", s1.ID, t0))

	sig, err := h.NextFor(ctx, "c1", t0)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, s2.ID, sig.ID)

	// без ack курсор не двигается
	sig, err = h.NextFor(ctx, "c1", t0)
	require.NoError(t, err)
	assert.Equal(t, s2.ID, sig.ID)

	require.NoError(t, h.Ack(ctx, "c1", s2.ID, t0))
	sig, err = h.NextFor(ctx, "c1", t0)
	require.NoError(t, err)
	assert.Equal(t, s3.ID, sig.ID)

	require.NoError(t, h.Ack(ctx, "c1", s3.ID, t0))
	sig, err = h.NextFor(ctx, "c1", t0)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestNextFor_EvictedCursorJumpsToNewest(t *testing.T) {
	h := newHub(t, Config{MaxLog: 2, DedupWindow: 2})
	ctx := context.Background()

	s1 := publish(t, h, alert("A", "1"), t0)
	require.NoError(t, h.Ack(ctx, "c1", s1.ID, t0))
	publish(t, h, alert("B", "2"), t0)
	publish(t, h, alert("C", "3"), t0)
	s4 := publish(t, h, alert("D", "4"), t0)

	sig, err := h.NextFor(ctx, "c1", t0)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, s4.ID, sig.ID)
}

func TestNextFor_SkipsMalformedIDs(t *testing.T) {
	h := newHub(t, Config{})
	ctx := context.Background()

	good := SignalID("A", "long", "1h", "1")
	last := SignalID("C", "long", "1h", "3")
	require.NoError(t, h.signals.ReplaceAll(ctx, []models.Signal{
		{ID: good, Symbol: "A", ReceivedAt: t0},
		{ID: "###", Symbol: "B", ReceivedAt: t0},
		{ID: last, Symbol: "C", ReceivedAt: t0},
	}))
	require.NoError(t, h.Ack(ctx, "c1", good, t0))

	sig, err := h.NextFor(ctx, "c1", t0)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, last, sig.ID)
}

func TestFetch_AutoAck(t *testing.T) {
	h := newHub(t, Config{})
	ctx := context.Background()

	s1 := publish(t, h, alert("A", "1"), t0)
	s2 := publish(t, h, alert("B", "2"), t0)
	require.NoError(t, h.Ack(ctx, "c1", s1.ID, t0))

	sig, err := h.Fetch(ctx, "c1", t0)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, s2.ID, sig.ID)

	sig, err = h.Fetch(ctx, "c1", t0)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestRecent_Tail(t *testing.T) {
	h := newHub(t, Config{})
	ctx := context.Background()
	publish(t, h, alert("A", "1"), t0)
	publish(t, h, alert("B", "2"), t0)
	last := publish(t, h, alert("C", "3"), t0)

	tail, err := h.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, last.ID, tail[0].ID)
}

func TestAck_RequiresClientAndID(t *testing.T) {
	h := newHub(t, Config{})
	assert.Error(t, h.Ack(context.Background(), "", "x", t0))
	assert.Error(t, h.Ack(context.Background(), "c", "", t0))
}
