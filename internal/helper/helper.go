package helper

import (
	"strings"
	"time"

	"trade_watch/internal/models"
)

func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "60", "60m", "1h":
		return "1h"
	case "240", "240m", "4h":
		return "4h"
	case "15", "15m":
		return "15m"
	case "5", "5m":
		return "5m"
	case "1d", "d", "day":
		return "1d"
	default:
		return s
	}
}

func NormSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// NormSide приводит направление к long/short. Понимает buy/sell.
func NormSide(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return models.SideLong, true
	case "short", "sell":
		return models.SideShort, true
	default:
		return "", false
	}
}

// FirstNonEmpty - для алиасов полей вроде side/direction.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// NextUTCDay - начало следующих суток по UTC.
func NextUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// NextUTCMonth - первая секунда следующего месяца по UTC.
func NextUTCMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}
