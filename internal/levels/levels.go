package levels

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"trade_watch/internal/models"
	"trade_watch/internal/symbols"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Config struct {
	RiskPct      float64   // расстояние до стопа от входа, 0.5 => 0.5%
	MetalsTPPct  []float64 // тейки в процентах для percent_targets символов
	RewardRatios []float64 // тейки в R для остальных
}

func DefaultConfig() Config {
	return Config{
		RiskPct:      0.5,
		MetalsTPPct:  []float64{0.4, 0.8, 1.2},
		RewardRatios: []float64{2, 3.6, 5.6},
	}
}

type Levels struct {
	Entry float64 `json:"entry"`
	SL    float64 `json:"sl"`
	TP1   float64 `json:"tp1"`
	TP2   float64 `json:"tp2"`
	TP3   float64 `json:"tp3"`
}

type Calculator struct {
	cfg     Config
	symbols *symbols.Table
}

func NewCalculator(cfg Config, tbl *symbols.Table) *Calculator {
	def := DefaultConfig()
	if cfg.RiskPct <= 0 {
		cfg.RiskPct = def.RiskPct
	}
	if len(cfg.MetalsTPPct) != 3 {
		cfg.MetalsTPPct = def.MetalsTPPct
	}
	if len(cfg.RewardRatios) != 3 {
		cfg.RewardRatios = def.RewardRatios
	}
	return &Calculator{cfg: cfg, symbols: tbl}
}

// Compute считает стоп и три тейка от цены входа.
func (c *Calculator) Compute(symbol, side string, entry float64) (Levels, error) {
	if entry <= 0 {
		return Levels{}, fmt.Errorf("entry must be positive, got %v", entry)
	}
	e := decimal.NewFromFloat(entry)
	risk := decimal.NewFromFloat(c.cfg.RiskPct).Div(hundred)

	var sl decimal.Decimal
	switch side {
	case models.SideLong:
		sl = e.Mul(decimal.NewFromInt(1).Sub(risk))
	case models.SideShort:
		sl = e.Mul(decimal.NewFromInt(1).Add(risk))
	default:
		return Levels{}, fmt.Errorf("unknown side %q", side)
	}
	return c.targets(symbol, side, e, sl), nil
}

// FromStop - то же, но стоп задан явно.
func (c *Calculator) FromStop(symbol, side string, entry, sl float64) (Levels, error) {
	if entry <= 0 || sl <= 0 {
		return Levels{}, fmt.Errorf("entry and sl must be positive")
	}
	switch {
	case side == models.SideLong && sl >= entry:
		return Levels{}, fmt.Errorf("long stop %v must be below entry %v", sl, entry)
	case side == models.SideShort && sl <= entry:
		return Levels{}, fmt.Errorf("short stop %v must be above entry %v", sl, entry)
	case side != models.SideLong && side != models.SideShort:
		return Levels{}, fmt.Errorf("unknown side %q", side)
	}
	return c.targets(symbol, side, decimal.NewFromFloat(entry), decimal.NewFromFloat(sl)), nil
}

func (c *Calculator) targets(symbol, side string, e, sl decimal.Decimal) Levels {
	dir := decimal.NewFromInt(1)
	if side == models.SideShort {
		dir = dir.Neg()
	}

	var tps [3]decimal.Decimal
	if c.symbols.UsesPercentTargets(symbol) {
		for i, pct := range c.cfg.MetalsTPPct {
			move := e.Mul(decimal.NewFromFloat(pct)).Div(hundred)
			tps[i] = e.Add(move.Mul(dir))
		}
	} else {
		r := e.Sub(sl).Abs()
		for i, ratio := range c.cfg.RewardRatios {
			tps[i] = e.Add(r.Mul(decimal.NewFromFloat(ratio)).Mul(dir))
		}
	}

	return Levels{
		Entry: e.InexactFloat64(),
		SL:    sl.InexactFloat64(),
		TP1:   tps[0].InexactFloat64(),
		TP2:   tps[1].InexactFloat64(),
		TP3:   tps[2].InexactFloat64(),
	}
}

// FormatPrice округляет цену до принятого для символа числа знаков.
func (c *Calculator) FormatPrice(symbol string, price float64) string {
	return decimal.NewFromFloat(price).StringFixed(int32(c.symbols.DigitsFor(symbol)))
}

func (c *Calculator) EntryMessage(symbol, side string, l Levels) string {
	direction := "🟢 *LONG* 📈"
	if side == models.SideShort {
		direction = "🔴 *SHORT* 📉"
	}
	f := func(v float64) string { return c.FormatPrice(symbol, v) }

	var b strings.Builder
	b.WriteString("🔔 *Trade Signal* 🔔\n")
	fmt.Fprintf(&b, "📊 *%s*\n%s\n\n", symbol, direction)
	fmt.Fprintf(&b, "📍 *Entry*: `%s`\n🛑 *SL*: `%s`\n\n", f(l.Entry), f(l.SL))
	fmt.Fprintf(&b, "🎯 *TP 1*: `%s`\n🎯 *TP 2*: `%s`\n🎯 *Full TP*: `%s`\n\n", f(l.TP1), f(l.TP2), f(l.TP3))
	b.WriteString("⚠️ *Not financial advice!*\n📌 Mind your *money management*!\n🔁 TP1 reached → *move stop to breakeven*.\n")
	return b.String()
}

// ParseNumber - единый разбор числовых полей входящих алертов.
// Принимает числа и строки с числом; NaN, Inf и мусор дают ok=false.
func ParseNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case fmt.Stringer:
		return ParseNumber(n.String())
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
