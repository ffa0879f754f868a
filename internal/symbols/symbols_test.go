package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	tbl := Default()

	assert.Equal(t, ClassCrypto, tbl.Class("BTCUSD"))
	assert.Equal(t, "bitcoin", tbl.Crypto["BTCUSD"].CoinGecko)
	assert.Equal(t, ClassMetal, tbl.Class("SILVER"))
	assert.Equal(t, "XAG", tbl.Metals["SILVER"])
	assert.Equal(t, ClassOther, tbl.Class("NAS100"))

	assert.Equal(t, "NDX", tbl.Alias("NAS100"))
	assert.Equal(t, "XAUUSD", tbl.Alias("GC1!"))
	assert.Equal(t, "EURJPY", tbl.Alias("EURJPY"))

	assert.Equal(t, 5, tbl.DigitsFor("EURUSD"))
	assert.Equal(t, 3, tbl.DigitsFor("USDJPY"))
	assert.Equal(t, 2, tbl.DigitsFor("GER40"))
	assert.Equal(t, 4, tbl.DigitsFor("AUDCAD"))

	assert.True(t, tbl.UsesPercentTargets("XAUUSD"))
	assert.False(t, tbl.UsesPercentTargets("XAGUSD"))
}

func TestParse_DefaultDigitsFallback(t *testing.T) {
	tbl, err := Parse([]byte("metals:\n  XPTUSD: XPT\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, tbl.DigitsFor("XPTUSD"))
	assert.Equal(t, ClassMetal, tbl.Class("XPTUSD"))
}
