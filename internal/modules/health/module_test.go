package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trade_watch/internal/modules/health/service"
	oraclesvc "trade_watch/internal/modules/oracle/service"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMux_Readiness(t *testing.T) {
	state := service.NewState()
	mux := NewMux(state, oraclesvc.NewCooldowns())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	state.SetReady(true)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMux_HealthzReportsCycleAndCooldowns(t *testing.T) {
	state := service.NewState()
	now := time.Now()
	state.TouchCycle(now, 3)
	cd := oraclesvc.NewCooldowns()
	cd.Extend(oraclesvc.ProviderAlpha, now.Add(time.Hour))

	mux := NewMux(state, cd)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Cycles          int64            `json:"cycles"`
		LastCycleEvents int64            `json:"lastCycleEvents"`
		LastCycleUnix   int64            `json:"lastCycleUnix"`
		CooldownsUntil  map[string]int64 `json:"cooldownsUntil"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Cycles)
	assert.Equal(t, int64(3), resp.LastCycleEvents)
	assert.Equal(t, now.Unix(), resp.LastCycleUnix)
	assert.Equal(t, now.Add(time.Hour).Unix(), resp.CooldownsUntil[oraclesvc.ProviderAlpha])
}

func TestState_StreamClients(t *testing.T) {
	s := service.NewState()
	s.StreamOpened()
	s.StreamOpened()
	s.StreamClosed()
	assert.Equal(t, int64(1), s.StreamClients())
}
