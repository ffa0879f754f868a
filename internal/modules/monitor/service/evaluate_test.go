package service

import (
	"math/rand"
	"testing"
	"time"

	"trade_watch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 0.0001

var t0 = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func longPos() models.Position {
	return models.Position{Symbol: "TEST", Side: models.SideLong, Entry: 100, SL: 99, TP1: 101, TP2: 103, TP3: 105}
}

func shortPos() models.Position {
	return models.Position{Symbol: "TEST", Side: models.SideShort, Entry: 100, SL: 101, TP1: 99, TP2: 97, TP3: 95}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestAdvance_GapThroughAllTargets(t *testing.T) {
	p := longPos()
	events, err := Advance(&p, 106, eps, t0)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventTP1, EventTP2, EventTP3}, kinds(events))
	assert.True(t, p.TP1Hit && p.TP2Hit && p.TP3Hit)
	assert.True(t, p.Closed)
	assert.Equal(t, models.CloseTP3, p.CloseReason)
	assert.False(t, p.SLHit)
	assert.Equal(t, 106.0, p.LastPrice)
	assert.Equal(t, t0, p.ClosedAt)
}

func TestAdvance_BreakevenAfterTP1(t *testing.T) {
	p := longPos()

	events, err := Advance(&p, 101, eps, t0)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventTP1}, kinds(events))
	assert.True(t, p.TP1Hit)
	assert.False(t, p.Closed)

	events, err = Advance(&p, 100, eps, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventBreakeven, events[0].Kind)
	assert.False(t, events[0].AfterTP2)
	assert.True(t, p.Closed)
	assert.Equal(t, models.CloseBEAfterTP, p.CloseReason)
	assert.False(t, p.SLHit)
}

func TestAdvance_BreakevenAfterTP2(t *testing.T) {
	p := longPos()
	_, err := Advance(&p, 103.5, eps, t0)
	require.NoError(t, err)

	// цена проваливается сквозь вход и ниже стопа: стоп уже не действует
	events, err := Advance(&p, 98, eps, t0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventBreakeven, events[0].Kind)
	assert.True(t, events[0].AfterTP2)
	assert.False(t, p.SLHit)
}

func TestAdvance_StopLoss(t *testing.T) {
	p := longPos()
	events, err := Advance(&p, 98.5, eps, t0)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventSL}, kinds(events))
	assert.True(t, p.SLHit)
	assert.True(t, p.Closed)
	assert.Equal(t, models.CloseSL, p.CloseReason)
}

func TestAdvance_EpsilonTolerance(t *testing.T) {
	p := longPos()
	// 101*(1-eps) = 100.9899
	events, err := Advance(&p, 100.995, eps, t0)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventTP1}, kinds(events))

	q := longPos()
	events, err = Advance(&q, 100.98, eps, t0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAdvance_Idempotent(t *testing.T) {
	p := longPos()
	first, err := Advance(&p, 103, eps, t0)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventTP1, EventTP2}, kinds(first))

	second, err := Advance(&p, 103, eps, t0)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestAdvance_ShortMirrors(t *testing.T) {
	p := shortPos()
	events, err := Advance(&p, 94, eps, t0)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventTP1, EventTP2, EventTP3}, kinds(events))
	assert.Equal(t, models.CloseTP3, p.CloseReason)

	s := shortPos()
	events, err = Advance(&s, 101.5, eps, t0)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventSL}, kinds(events))

	b := shortPos()
	_, err = Advance(&b, 99, eps, t0)
	require.NoError(t, err)
	events, err = Advance(&b, 100, eps, t0)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventBreakeven}, kinds(events))
}

func TestAdvance_UnknownSideUntouched(t *testing.T) {
	p := longPos()
	p.Side = "sideways"
	before := p

	events, err := Advance(&p, 200, eps, t0)
	assert.Error(t, err)
	assert.Empty(t, events)
	assert.Equal(t, before, p)
}

func TestAdvance_ClosedIsFrozen(t *testing.T) {
	p := longPos()
	_, err := Advance(&p, 98, eps, t0)
	require.NoError(t, err)
	frozen := p

	events, err := Advance(&p, 110, eps, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, frozen, p)
}

// Случайные блуждания цены: флаги не откатываются, closed <=> close_reason.
func TestAdvance_RandomWalkInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		p := longPos()
		if i%2 == 1 {
			p = shortPos()
		}
		price := 100.0
		var prev models.Position
		notified := map[EventKind]int{}
		for step := 0; step < 100; step++ {
			price += rng.NormFloat64() * 0.7
			prev = p
			events, err := Advance(&p, price, eps, t0)
			require.NoError(t, err)
			for _, e := range events {
				notified[e.Kind]++
			}

			assert.True(t, !prev.TP1Hit || p.TP1Hit)
			assert.True(t, !prev.TP2Hit || p.TP2Hit)
			assert.True(t, !prev.TP3Hit || p.TP3Hit)
			assert.True(t, !prev.SLHit || p.SLHit)
			assert.True(t, !prev.Closed || p.Closed)
			assert.Equal(t, p.Closed, p.CloseReason != "")
		}
		for kind, n := range notified {
			assert.LessOrEqual(t, n, 1, "event %s", kind)
		}
	}
}
