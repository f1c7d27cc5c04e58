package actor

import (
	"sync/atomic"
	"time"

	"github.com/berfenger/solarcharger/internal/adapter/flash"
	"github.com/berfenger/solarcharger/internal/adapter/measurement"
	"github.com/berfenger/solarcharger/internal/adapter/telemetry"
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/objdic"
	"github.com/berfenger/solarcharger/internal/util/actorutil"
	"github.com/berfenger/solarcharger/pkg/adc_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

var testLogger = zap.Must(zap.NewDevelopment())

// stallingSource serves the measurement cache and blocks one acquisition when armed.
type stallingSource struct {
	*measurement.Cache
	stall atomic.Int64
}

func (s *stallingSource) Samples() domain.BatterySamples {
	if d := s.stall.Swap(0); d > 0 {
		time.Sleep(time.Duration(d))
	}
	return s.Cache.Samples()
}

// StallOnce makes the next acquisition take d.
func (s *stallingSource) StallOnce(d time.Duration) {
	s.stall.Store(int64(d))
}

func newStallingSource() *stallingSource {
	cache := measurement.NewCache()
	reading, _ := adc_modbus.NewTestADCReader().Read()
	cache.Update(*reading, time.Now())
	return &stallingSource{Cache: cache}
}

type testBench struct {
	as         *actor.ActorSystem
	supervisor *actor.PID
	store      *objdic.Store
	page       *flash.MemPage
	source     *stallingSource
	telemetry  *telemetry.FakeSink
	es         *eventstream.EventStream
}

// newTestStore uses fast timing and puts battery 1 on charge.
func newTestStore() (*objdic.Store, *flash.MemPage) {
	page := flash.NewMemPage()
	store := objdic.NewStore(page, testLogger)
	if err := store.SetParam(objdic.PARAM_CHARGER_DELAY, 0, 20); err != nil {
		panic(err)
	}
	if err := store.SetParam(objdic.PARAM_WATCHDOG_DELAY, 0, 10); err != nil {
		panic(err)
	}
	if err := store.SetPanelSwitchSetting(1); err != nil {
		panic(err)
	}
	return store, page
}

// newTestBench starts a supervisor over a test store.
func newTestBench() *testBench {
	store, page := newTestStore()

	b := &testBench{
		as:        actorutil.NewActorSystemWithZapLogger(testLogger),
		store:     store,
		page:      page,
		source:    newStallingSource(),
		telemetry: telemetry.NewFakeSink(),
		es:        &eventstream.EventStream{},
	}
	props := SupervisorProps(func() *SupervisorActor {
		return NewSupervisorActor(b.store, b.source, b.source.Cache, b.telemetry, b.es, nil, nil, testLogger)
	}, testLogger)
	pid, err := b.as.Root.SpawnNamed(props, domain.ACTOR_ID_SUPERVISOR)
	if err != nil {
		panic(err)
	}
	b.supervisor = pid
	return b
}

func (b *testBench) request(msg any) (any, error) {
	return b.as.Root.RequestFuture(b.supervisor, msg, 2*time.Second).Result()
}

func (b *testBench) chargerState() (domain.GetChargerStateResponse, bool) {
	res, err := b.request(domain.GetChargerStateRequest{})
	if err != nil {
		return domain.GetChargerStateResponse{}, false
	}
	resp, ok := res.(domain.GetChargerStateResponse)
	return resp, ok && !resp.HasResponseError()
}

func (b *testBench) supervisorState() domain.GetSupervisorStateResponse {
	res, err := b.request(domain.GetSupervisorStateRequest{})
	if err != nil {
		return domain.GetSupervisorStateResponse{}
	}
	return res.(domain.GetSupervisorStateResponse)
}

func (b *testBench) stop() {
	b.as.Root.Stop(b.supervisor)
	b.as.Shutdown()
}
