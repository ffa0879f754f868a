package service

import (
	"crypto/sha1"
	"strings"

	"github.com/jxskiss/base62"
)

// SignalID - детерминированный id: одинаковый апстрим-алерт даёт тот же id.
func SignalID(symbol, side, timeframe, alertTime string) string {
	sum := sha1.Sum([]byte(strings.Join([]string{symbol, side, timeframe, alertTime}, "|")))
	return base62.EncodeToString(sum[:])
}

func validID(id string) bool {
	if id == "" {
		return false
	}
	_, err := base62.DecodeString(id)
	return err == nil
}
