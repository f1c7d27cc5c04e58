package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/solarcharger/internal/adapter/measurement"
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/objdic"
	"github.com/berfenger/solarcharger/internal/util/actorutil"
	"github.com/berfenger/solarcharger/pkg/adc_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const ADC_READ_TIMEOUT = 2 * time.Second

// MeasurementActor polls the acquisition board and keeps the measurement cache fresh.
type MeasurementActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	reader   adc_modbus.ADCReader
	cache    *measurement.Cache
	store    *objdic.Store
	logger   *zap.Logger

	scheduler         *scheduler.TimerScheduler
	cancelPoll        scheduler.CancelFunc
	cancelCalibration scheduler.CancelFunc
	lastError         error
	readings          uint64
}

type measurementTick struct{}

type calibrationTick struct{}

func NewMeasurementActor(reader adc_modbus.ADCReader, cache *measurement.Cache, store *objdic.Store, logger *zap.Logger) *MeasurementActor {
	act := &MeasurementActor{
		reader:   reader,
		cache:    cache,
		store:    store,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MEASUREMENT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MeasurementActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MeasurementActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("measurement@starting started")
		if err := state.reader.Open(); err != nil {
			panic(err)
		}
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.behavior.Become(state.DefaultReceive)
		// first acquisition right away
		ctx.Send(ctx.Self(), measurementTick{})
		state.scheduleCalibration(ctx)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("measurement@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MeasurementActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("measurement@default: ActorHealthRequest")
		status := "reading"
		if state.lastError != nil {
			status = state.lastError.Error()
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MEASUREMENT,
			Healthy: state.lastError == nil,
			State:   status,
		})
	case measurementTick:
		actorutil.NewBackgroundTask(ctx, state.reader.Read).
			OnError(func(err error) {
				state.logger.Warn("measurement@default: acquisition failed", zap.Error(err))
				state.lastError = err
			}).
			OnSuccess(func(reading adc_modbus.ADCReading) {
				state.lastError = nil
				state.readings++
				state.cache.Update(reading, time.Now())
			}).
			WithTimeout(ADC_READ_TIMEOUT).Run()
		state.cancelPoll = state.scheduler.RequestOnce(objdic.TickDuration(state.store.MeasurementDelay()), ctx.Self(), measurementTick{})
	case calibrationTick:
		if err := state.reader.Calibrate(); err != nil {
			state.logger.Warn("measurement@default: calibration failed", zap.Error(err))
		}
		state.scheduleCalibration(ctx)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("measurement@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MeasurementActor) scheduleCalibration(ctx actor.Context) {
	state.cancelCalibration = state.scheduler.RequestOnce(objdic.TickDuration(state.store.CalibrationDelay()), ctx.Self(), calibrationTick{})
}

func (state *MeasurementActor) stop() {
	if state.cancelPoll != nil {
		state.cancelPoll()
	}
	if state.cancelCalibration != nil {
		state.cancelCalibration()
	}
	state.reader.Close()
}
