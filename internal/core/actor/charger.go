package actor

import (
	"errors"
	"fmt"

	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/objdic"
	"github.com/berfenger/solarcharger/internal/core/port"
	"github.com/berfenger/solarcharger/internal/core/service"
	. "github.com/berfenger/solarcharger/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

var ErrChargerUnavailable = errors.New("charger is not running")

// ChargerActor runs the charging loop. Its ChargingContext lives and dies with the actor instance.
type ChargerActor struct {
	ActorWithStates
	scheduler   *scheduler.TimerScheduler
	cancelTick  scheduler.CancelFunc
	stash       *Stash
	store       *objdic.Store
	source      port.SampleSource
	signals     port.BatterySignals
	watchdog    *service.Watchdog
	telemetry   port.TelemetrySink
	eventStream *eventstream.EventStream

	cc      *service.ChargingContext
	machine *service.ChargingStateMachine

	logger *zap.Logger
}

type chargerTick struct {
}

func NewChargerActor(store *objdic.Store, source port.SampleSource, signals port.BatterySignals, watchdog *service.Watchdog,
	telemetry port.TelemetrySink, eventStream *eventstream.EventStream, logger *zap.Logger) *ChargerActor {
	act := &ChargerActor{
		store:       store,
		source:      source,
		signals:     signals,
		watchdog:    watchdog,
		telemetry:   telemetry,
		eventStream: eventStream,
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_CHARGER, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CHStartingState{
		actor: act,
	})
	return act
}

func (state *ChargerActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type CHStartingState struct {
	ActorState
	actor *ChargerActor
}

func (state CHStartingState) Name() string {
	return "starting"
}

func (state CHStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a := state.actor
		a.logger.Debug("charger@starting started")

		a.scheduler = scheduler.NewTimerScheduler(ctx)
		a.cc = service.NewChargingContext(a.store.MinDutyCycle())
		a.machine = service.NewChargingStateMachine(a.store, a.signals, a.store,
			service.StrategyFor(a.store.ChargerStrategy()), a.logger)

		a.Become(CHRunningState{
			actor: a,
		})
		ctx.Send(ctx.Self(), chargerTick{})
		a.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("charger@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type CHRunningState struct {
	ActorState
	actor *ChargerActor
}

func (state CHRunningState) Name() string {
	return "running"
}

func (state CHRunningState) Receive(ctx actor.Context) {
	a := state.actor
	switch msg := ctx.Message().(type) {
	case chargerTick:
		a.period(ctx)
	case domain.ActorHealthRequest:
		a.logger.Debug("charger@running ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CHARGER,
			Healthy: true,
			State:   a.StateName(),
		})
	case domain.GetChargerStateRequest:
		chargingBattery, ok := a.store.ChargingBattery()
		if !ok {
			chargingBattery = -1
		}
		ForRequest(msg).Respond(ctx, domain.GetChargerStateResponse{
			States:          a.cc.States(),
			ChargingBattery: chargingBattery,
			Periods:         a.cc.Periods,
		})
	case domain.EqualizationRequest:
		accepted := a.machine.RequestEqualization(a.cc, msg.Battery)
		a.logger.Info("charger@running equalization requested", zap.Int("battery", msg.Battery), zap.Bool("accepted", accepted))
		ForRequest(msg).Respond(ctx, domain.EqualizationResponse{
			Accepted: accepted,
		})
	case *actor.Stopping:
		a.stopTicking()
	case *actor.Restarting:
		a.stopTicking()
	default:
		a.logger.Debug("charger@running unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// period runs one pass of the charging loop and schedules the next one.
func (a *ChargerActor) period(ctx actor.Context) {
	a.watchdog.Reset()

	changes := a.machine.ReenterBulk(a.cc)
	service.UpdateAverages(a.cc, a.source.Samples(), a.store)
	a.machine.SetStrategy(service.StrategyFor(a.store.ChargerStrategy()))

	chargerDelay := objdic.TickDuration(a.store.ChargerDelay())
	changes = append(changes, a.machine.Step(a.cc, a.source.Temperature(), chargerDelay)...)

	controls := a.store.Controls()
	for _, change := range changes {
		a.logger.Info("charger@running phase change",
			zap.Int("battery", change.Battery+1),
			zap.Stringer("from", change.From),
			zap.Stringer("to", change.To))
		if controls&objdic.CONTROL_DEBUG_SEND != 0 {
			a.telemetry.Send(domain.DIAG_TAG_CHARGER, fmt.Sprintf("battery %d: %s -> %s", change.Battery+1, change.From, change.To))
		}
	}
	if controls&objdic.CONTROL_ENABLE_SEND != 0 {
		a.publishStates()
	}

	a.cancelTick = a.scheduler.RequestOnce(chargerDelay, ctx.Self(), chargerTick{})
}

func (a *ChargerActor) publishStates() {
	chargingBattery, selected := a.store.ChargingBattery()
	for i, s := range a.cc.Batteries {
		a.eventStream.Publish(domain.BatteryStateUpdateEvent{
			UpdateEventMixIn: domain.UpdateEventMixIn{
				Id: domain.BatteryEventId(i),
			},
			Battery:         i,
			Phase:           s.Phase,
			FilteredVoltage: s.FilteredVoltage,
			FilteredCurrent: s.FilteredCurrent,
			DutyCycle:       s.DutyCycle,
			Charging:        selected && i == chargingBattery,
		})
	}
}

func (a *ChargerActor) stopTicking() {
	if a.cancelTick != nil {
		a.cancelTick()
		a.cancelTick = nil
	}
}
