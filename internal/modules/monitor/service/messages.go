package service

import (
	"fmt"
	"strings"

	"trade_watch/internal/models"
)

func eventText(ev Event) string {
	switch ev.Kind {
	case EventTP1:
		return "🎯 *TP1 reached* - move the stop to breakeven or manage the trade."
	case EventTP2:
		return "📈 *TP2 reached* - on the way to the full target!"
	case EventTP3:
		return "🎉 *Full target reached* - congratulations!"
	case EventSL:
		return "❌ *Stop loss reached* - we reassess and come back stronger."
	case EventBreakeven:
		if ev.AfterTP2 {
			return "⚖️ *Closed at breakeven after TP2* - TP1 and TP2 were banked."
		}
		return "⚖️ *Closed at breakeven after TP1* - no loss on the rest."
	default:
		return string(ev.Kind)
	}
}

// Message - текст уведомления: заголовок символ/сторона, событие, цена.
func Message(p models.Position, ev Event, price string) string {
	return fmt.Sprintf("*%s* | *%s*\n%s\n💰 Price: `%s`", p.Symbol, strings.ToUpper(p.Side), eventText(ev), price)
}
