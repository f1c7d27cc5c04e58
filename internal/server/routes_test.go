package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/berfenger/solarcharger/internal/adapter/flash"
	"github.com/berfenger/solarcharger/internal/adapter/measurement"
	"github.com/berfenger/solarcharger/internal/adapter/telemetry"
	coreactor "github.com/berfenger/solarcharger/internal/core/actor"
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/objdic"
	"github.com/berfenger/solarcharger/internal/util/actorutil"
	"github.com/berfenger/solarcharger/pkg/adc_modbus"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (http.Handler, *objdic.Store, *flash.MemPage) {
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	t.Cleanup(as.Shutdown)

	page := flash.NewMemPage()
	store := objdic.NewStore(page, logger)
	require.NoError(t, store.SetPanelSwitchSetting(1))
	cache := measurement.NewCache()
	reading, _ := adc_modbus.NewTestADCReader().Read()
	cache.Update(*reading, time.Now())

	props := coreactor.SupervisorProps(func() *coreactor.SupervisorActor {
		return coreactor.NewSupervisorActor(store, cache, cache, telemetry.NewFakeSink(), &eventstream.EventStream{}, nil, nil, logger)
	}, logger)
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_SUPERVISOR)
	require.NoError(t, err)

	s := &Server{
		rootContext:     as.Root,
		supervisorActor: pid,
		params:          store,
		requestTimeout:  2 * time.Second,
	}
	return s.RegisterRoutes(), store, page
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := serve(h, http.MethodGet, "/healthcheck", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "health_check: OK", rec.Body.String())
}

func TestStatus(t *testing.T) {
	require := require.New(t)
	h, _, _ := newTestServer(t)

	var status statusResponse
	require.Eventually(func() bool {
		rec := serve(h, http.MethodGet, "/status", "")
		if rec.Code != http.StatusOK {
			return false
		}
		return json.Unmarshal(rec.Body.Bytes(), &status) == nil && status.Periods > 0
	}, 2*time.Second, 50*time.Millisecond)

	require.Equal(domain.FIRMWARE_VERSION, status.Firmware)
	require.Equal(0, status.ChargingBattery)
	require.Len(status.Batteries, domain.NUM_BATS)
	require.Equal("bulk", status.Batteries[0].Phase)
}

func TestConfigEndpoints(t *testing.T) {
	require := require.New(t)
	h, store, page := newTestServer(t)

	rec := serve(h, http.MethodGet, "/config", "")
	require.Equal(http.StatusOK, rec.Code)
	var params map[string][]int64
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &params))
	require.Equal([]int64{100, 100, 100}, params[objdic.PARAM_BATTERY_CAPACITY])

	rec = serve(h, http.MethodPut, "/config/float_voltage", `{"index":1,"value":3400}`)
	require.Equal(http.StatusNoContent, rec.Code)
	require.Equal(int16(3400), store.FloatVoltage(1))

	rec = serve(h, http.MethodPut, "/config/alpha_v", `{"value":999}`)
	require.Equal(http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodPut, "/config/nope", `{"value":1}`)
	require.Equal(http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodPost, "/config/write", "")
	require.Equal(http.StatusNoContent, rec.Code)
	require.Equal(1, page.Writes)

	rec = serve(h, http.MethodPost, "/config/defaults", "")
	require.Equal(http.StatusNoContent, rec.Code)
	require.Equal(int16(3354), store.FloatVoltage(1))
}

func TestEqualize(t *testing.T) {
	h, _, _ := newTestServer(t)

	require.Equal(t, http.StatusAccepted, serve(h, http.MethodPost, "/equalize/1", "").Code)
	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/equalize/4", "").Code)
	require.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/equalize/x", "").Code)
}
