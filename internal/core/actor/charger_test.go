package actor

import (
	"testing"
	"time"

	"github.com/berfenger/solarcharger/internal/adapter/measurement"
	"github.com/berfenger/solarcharger/internal/adapter/telemetry"
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/objdic"
	"github.com/berfenger/solarcharger/internal/core/service"
	"github.com/berfenger/solarcharger/internal/util/actorutil"
	"github.com/berfenger/solarcharger/pkg/adc_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/require"
)

func TestChargerResetsWatchdog(t *testing.T) {
	require := require.New(t)

	as := actorutil.NewActorSystemWithZapLogger(testLogger)
	defer as.Shutdown()

	store, _ := newTestStore()
	source := newStallingSource()
	watchdog := service.NewWatchdog(store.ChargerDelay(), store.WatchdogDelay())
	for i := 0; i < 5; i++ {
		watchdog.Check()
	}
	require.Equal(uint32(5), watchdog.Count())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewChargerActor(store, source, source.Cache, watchdog, telemetry.NewFakeSink(), &eventstream.EventStream{}, testLogger)
	})
	pid := as.Root.Spawn(props)
	defer as.Root.Stop(pid)

	require.Eventually(func() bool {
		return watchdog.Count() == 0
	}, time.Second, 10*time.Millisecond)

	result, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(err)
	health := result.(domain.ActorHealthResponse)
	require.True(health.Healthy)
	require.Equal("running", health.State)
}

func TestChargerSendsPhaseChangeDiagnostics(t *testing.T) {
	require := require.New(t)

	as := actorutil.NewActorSystemWithZapLogger(testLogger)
	defer as.Shutdown()

	store, _ := newTestStore()
	require.NoError(store.SetParam(objdic.PARAM_DEBUG_MESSAGE_SEND, 0, 1))
	// battery 1 is already at its absorption voltage
	source := newStallingSource()
	reading := source.Snapshot().Reading
	reading.Voltage[0] = 3800
	source.Update(reading, time.Now())

	sink := telemetry.NewFakeSink()
	watchdog := service.NewWatchdog(store.ChargerDelay(), store.WatchdogDelay())
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewChargerActor(store, source, source.Cache, watchdog, sink, &eventstream.EventStream{}, testLogger)
	})
	pid := as.Root.Spawn(props)
	defer as.Root.Stop(pid)

	require.Eventually(func() bool {
		return sink.Count(domain.DIAG_TAG_CHARGER) > 0
	}, time.Second, 10*time.Millisecond)
	require.Equal("battery 1: bulk -> absorption", sink.Sent()[0].Message)
}

func TestChargerSeedsFromFirstAcquisition(t *testing.T) {
	require := require.New(t)

	as := actorutil.NewActorSystemWithZapLogger(testLogger)
	defer as.Shutdown()

	store, _ := newTestStore()
	source := &stallingSource{Cache: measurement.NewCache()}
	watchdog := service.NewWatchdog(store.ChargerDelay(), store.WatchdogDelay())
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewChargerActor(store, source, source.Cache, watchdog, telemetry.NewFakeSink(), &eventstream.EventStream{}, testLogger)
	})
	pid := as.Root.Spawn(props)
	defer as.Root.Stop(pid)

	state := func() domain.GetChargerStateResponse {
		res, err := as.Root.RequestFuture(pid, domain.GetChargerStateRequest{}, time.Second).Result()
		if err != nil {
			return domain.GetChargerStateResponse{States: make([]domain.BatteryChargeState, domain.NUM_BATS)}
		}
		return res.(domain.GetChargerStateResponse)
	}

	// the charger ticks several times before any acquisition
	require.Eventually(func() bool {
		return state().Periods >= 3
	}, time.Second, 10*time.Millisecond)
	for _, battery := range state().States {
		require.False(battery.Seeded)
		require.Equal(store.MinDutyCycle(), battery.DutyCycle)
	}

	var reading adc_modbus.ADCReading
	for i := range reading.Voltage {
		reading.Voltage[i] = 3300
	}
	source.Update(reading, time.Now())

	require.Eventually(func() bool {
		return state().States[0].Seeded
	}, time.Second, 10*time.Millisecond)
	for _, battery := range state().States {
		require.Equal(int32(3300), battery.FilteredVoltage)
	}
}
