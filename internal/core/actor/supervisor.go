package actor

import (
	"fmt"
	"time"

	adactor "github.com/berfenger/solarcharger/internal/adapter/actor"
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

const FLASH_WRITE_TIMEOUT = 5 * time.Second

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type MeasurementActorProvider func() *adactor.MeasurementActor

// SupervisorActor owns the charger, measurement and MQTT actors. It restarts a stalled
// charger and applies management requests to the configuration store.
type SupervisorActor struct {
	behavior actor.Behavior
	stash    *Stash

	store       *objdic.Store
	source      port.SampleSource
	signals     port.BatterySignals
	telemetry   port.TelemetrySink
	eventStream *eventstream.EventStream
	watchdog    *service.Watchdog

	scheduler      *scheduler.TimerScheduler
	cancelWatchdog scheduler.CancelFunc
	restarts       uint32
	// generation numbers the charger instances, each spawned with its own watchdog
	generation uint32
	// stopped charger instances that have not terminated yet
	abandoned map[string]uint32

	currentHealthCheck       healthCheckResult
	chargerActor             *actor.PID
	measurementActor         *actor.PID
	mqttActor                *actor.PID
	measurementActorProvider MeasurementActorProvider
	mqttActorProvider        MQTTActorProvider
	logger                   *zap.Logger
}

type healthCheckResult struct {
	expected  int
	healthy   map[string]bool
	received  int
	respondTo *actor.PID
}

type watchdogTick struct {
}

// NewSupervisorActor takes optional providers, a nil provider leaves that child out.
func NewSupervisorActor(store *objdic.Store, source port.SampleSource, signals port.BatterySignals,
	telemetry port.TelemetrySink, eventStream *eventstream.EventStream,
	measurementActorProvider MeasurementActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *SupervisorActor {
	act := &SupervisorActor{
		behavior:                 actor.NewBehavior(),
		stash:                    &Stash{},
		store:                    store,
		source:                   source,
		signals:                  signals,
		telemetry:                telemetry,
		eventStream:              eventStream,
		abandoned:                map[string]uint32{},
		measurementActorProvider: measurementActorProvider,
		mqttActorProvider:        mqttActorProvider,
		logger:                   ActorLogger(domain.ACTOR_ID_SUPERVISOR, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// SupervisorProps restarts any failed child on its own.
func SupervisorProps(producer func() *SupervisorActor, logger *zap.Logger) *actor.Props {
	decider := func(reason interface{}) actor.Directive {
		logger.Error("supervisor: child failure, restarting", zap.Any("reason", reason))
		return actor.RestartDirective
	}
	return actor.PropsFromProducer(func() actor.Actor {
		return producer()
	}, actor.WithSupervisor(actor.NewOneForOneStrategy(10, time.Minute, decider)))
}

func (state *SupervisorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *SupervisorActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("supervisor@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)

		if state.measurementActorProvider != nil {
			pid, err := state.startMeasurementActor(ctx)
			if err != nil {
				panic(err)
			}
			state.measurementActor = pid
		}

		if err := state.startChargerActor(ctx); err != nil {
			panic(err)
		}

		if state.mqttActorProvider != nil {
			pid, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = pid
		}

		state.scheduleWatchdog(ctx)

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("supervisor@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SupervisorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case watchdogTick:
		state.checkWatchdog(ctx)
	case *actor.Terminated:
		state.childTerminated(ctx, msg)
	case domain.ActorHealthRequest:
		state.logger.Debug("supervisor@default ActorHealthRequest")
		state.startHealthCheck(ctx)
	case domain.GetSupervisorStateRequest:
		ForRequest(msg).Respond(ctx, domain.GetSupervisorStateResponse{
			Restarts:   state.restarts,
			Restarting: state.chargerActor == nil,
			Generation: state.generation,
			Abandoned:  len(state.abandoned),
		})
	case domain.GetChargerStateRequest:
		if state.chargerActor == nil {
			ForRequest(msg).Respond(ctx, domain.GetChargerStateResponse{
				ActorResponseMixIn: domain.WithResponseError(ErrChargerUnavailable),
			})
			return
		}
		ctx.Forward(state.chargerActor)
	case domain.EqualizationRequest:
		if state.chargerActor == nil {
			ForRequest(msg).Respond(ctx, domain.EqualizationResponse{
				ActorResponseMixIn: domain.WithResponseError(ErrChargerUnavailable),
			})
			return
		}
		ctx.Forward(state.chargerActor)
	case domain.SetParameterRequest:
		err := state.setParameter(msg)
		if err != nil {
			state.logger.Warn("supervisor@default SetParameterRequest rejected", zap.String("param", msg.Param), zap.Error(err))
		}
		ForRequest(msg).Respond(ctx, domain.SetParameterResponse{
			ActorResponseMixIn: domain.WithResponseError(err),
		})
	case domain.ResetConfigDefaultsRequest:
		state.logger.Info("supervisor@default restoring configuration defaults")
		state.store.SetDefaults()
		state.updateWatchdogDelays()
		state.eventStream.Publish(domain.ConfigChangedEvent{
			UpdateEventMixIn: domain.UpdateEventMixIn{Id: "defaults"},
			Param:            "defaults",
		})
		ForRequest(msg).Respond(ctx, domain.ResetConfigDefaultsResponse{})
	case domain.WriteConfigBlockRequest:
		state.writeConfigBlock(ctx, ForRequest(msg))
	case adactor.ParsedCommand:
		// commands from MQTT carry no reply address
		state.logger.Debug("supervisor@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("supervisor@default invalid command", zap.Error(err))
				return
			}
			ctx.Send(ctx.Self(), cmd)
		}
	case *actor.Stopping:
		if state.cancelWatchdog != nil {
			state.cancelWatchdog()
		}
	default:
		state.logger.Debug("supervisor@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SupervisorActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case watchdogTick:
		state.checkWatchdog(ctx)
	case *actor.Terminated:
		state.childTerminated(ctx, msg)
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.finishHealthCheck(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("supervisor@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.received++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			state.finishHealthCheck(ctx)
		}
	default:
		state.logger.Debug("supervisor@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SupervisorActor) startHealthCheck(ctx actor.Context) {
	state.currentHealthCheck = healthCheckResult{
		healthy:   map[string]bool{},
		respondTo: ctx.Sender(),
	}
	children := map[string]*actor.PID{
		domain.ACTOR_ID_MEASUREMENT: state.measurementActor,
		domain.ACTOR_ID_MQTT:        state.mqttActor,
	}
	if state.chargerActor != nil {
		children[domain.ACTOR_ID_CHARGER] = state.chargerActor
	}
	for id, pid := range children {
		if pid == nil {
			continue
		}
		state.currentHealthCheck.expected++
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      id,
				Healthy: false,
			}
		})
	}
	if state.currentHealthCheck.expected == 0 {
		state.currentHealthCheck.respond(ctx, state.chargerActor == nil)
		return
	}
	ctx.SetReceiveTimeout(1 * time.Second)
	state.behavior.BecomeStacked(state.HealthCheckReceive)
}

func (state *SupervisorActor) finishHealthCheck(ctx actor.Context) {
	state.logger.Debug("supervisor@healthcheck done",
		zap.Int("received", state.currentHealthCheck.received),
		zap.Int("stashed", state.stash.Len()))
	ctx.CancelReceiveTimeout()
	state.currentHealthCheck.respond(ctx, state.chargerActor == nil)
	state.behavior.UnbecomeStacked()
	state.stash.UnstashAll(ctx)
}

func (state *SupervisorActor) scheduleWatchdog(ctx actor.Context) {
	state.cancelWatchdog = state.scheduler.RequestOnce(objdic.TickDuration(state.store.WatchdogDelay()), ctx.Self(), watchdogTick{})
}

// checkWatchdog replaces a charger that missed too many periods. The stalled instance is
// stopped and left behind: it exits whenever its current period returns, and it only
// ever resets its own generation's watchdog.
func (state *SupervisorActor) checkWatchdog(ctx actor.Context) {
	defer state.scheduleWatchdog(ctx)
	if state.chargerActor == nil {
		state.respawnCharger(ctx, "charger missing")
		return
	}
	state.updateWatchdogDelays()
	if !state.watchdog.Check() {
		return
	}
	missed := state.watchdog.Count()
	state.logger.Warn("supervisor@watchdog charger stalled, restarting",
		zap.String("charger", state.chargerActor.Id),
		zap.Uint32("checks", missed),
		zap.Uint32("threshold", state.watchdog.Threshold()))
	state.abandoned[state.chargerActor.Id] = state.generation
	ctx.Stop(state.chargerActor)
	state.respawnCharger(ctx, fmt.Sprintf("charger stalled for %d checks", missed))
}

// respawnCharger starts the next generation and reports it. A failed spawn is retried
// on the next watchdog tick.
func (state *SupervisorActor) respawnCharger(ctx actor.Context, reason string) {
	state.chargerActor = nil
	if err := state.startChargerActor(ctx); err != nil {
		state.logger.Error("supervisor@watchdog could not start charger", zap.Error(err))
		state.telemetry.Send(domain.DIAG_TAG_WATCHDOG, fmt.Sprintf("%s, restart failed: %s", reason, err))
		return
	}
	state.restarts++
	state.telemetry.Send(domain.DIAG_TAG_WATCHDOG, fmt.Sprintf("%s, restarted (restart %d)", reason, state.restarts))
}

func (state *SupervisorActor) childTerminated(ctx actor.Context, msg *actor.Terminated) {
	if generation, ok := state.abandoned[msg.Who.Id]; ok {
		delete(state.abandoned, msg.Who.Id)
		state.logger.Info("supervisor@default stalled charger exited",
			zap.String("charger", msg.Who.Id), zap.Uint32("generation", generation))
		return
	}
	if state.chargerActor == nil || msg.Who.Id != state.chargerActor.Id {
		state.logger.Warn("supervisor@default child terminated", zap.String("child", msg.Who.Id))
		return
	}
	state.logger.Error("supervisor@default charger terminated unexpectedly", zap.String("charger", msg.Who.Id))
	state.respawnCharger(ctx, "charger terminated")
}

func (state *SupervisorActor) updateWatchdogDelays() {
	if state.watchdog != nil {
		state.watchdog.SetDelays(state.store.ChargerDelay(), state.store.WatchdogDelay())
	}
}

func (state *SupervisorActor) setParameter(msg domain.SetParameterRequest) error {
	if err := state.store.SetParam(msg.Param, msg.Battery, msg.Value); err != nil {
		return err
	}
	value, err := state.store.Param(msg.Param, msg.Battery)
	if err != nil {
		return err
	}
	state.updateWatchdogDelays()
	state.eventStream.Publish(domain.ConfigChangedEvent{
		UpdateEventMixIn: domain.UpdateEventMixIn{Id: msg.Param},
		Param:            msg.Param,
		Battery:          msg.Battery,
		Value:            value,
	})
	return nil
}

func (state *SupervisorActor) writeConfigBlock(ctx actor.Context, req ExtendedRequest) {
	NewBackgroundTaskErr(ctx, state.store.WriteBlock).
		WithTimeout(FLASH_WRITE_TIMEOUT).
		OnError(func(err error) {
			state.logger.Error("supervisor@default config block write failed", zap.Error(err))
			state.telemetry.Send(domain.DIAG_TAG_CONFIG, err.Error())
			req.Respond(ctx, domain.WriteConfigBlockResponse{
				ActorResponseMixIn: domain.WithResponseError(err),
			})
		}).
		OnSuccess(func(any) {
			state.logger.Info("supervisor@default config block written")
			req.Respond(ctx, domain.WriteConfigBlockResponse{})
		}).
		Run()
}

// startChargerActor spawns a fresh charger generation under its own name and watchdog.
func (state *SupervisorActor) startChargerActor(ctx actor.Context) error {
	generation := state.generation + 1
	watchdog := service.NewWatchdog(state.store.ChargerDelay(), state.store.WatchdogDelay())
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewChargerActor(state.store, state.source, state.signals, watchdog,
			state.telemetry, state.eventStream, state.logger)
	})
	pid, err := ctx.SpawnNamed(props, fmt.Sprintf("%s-%d", domain.ACTOR_ID_CHARGER, generation))
	if err != nil {
		return err
	}
	state.generation = generation
	state.chargerActor = pid
	state.watchdog = watchdog
	return nil
}

func (state *SupervisorActor) startMeasurementActor(ctx actor.Context) (*actor.PID, error) {
	props := actor.PropsFromProducer(func() actor.Actor {
		return state.measurementActorProvider()
	})
	return ctx.SpawnNamed(props, domain.ACTOR_ID_MEASUREMENT)
}

func (state *SupervisorActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	props := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_MQTT)
}

func (state *healthCheckResult) allReceived() bool {
	return state.received >= state.expected
}

func (state *healthCheckResult) allHealthy() bool {
	for _, healthy := range state.healthy {
		if !healthy {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context, restarting bool) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_SUPERVISOR,
		Healthy: !restarting && state.allReceived() && state.allHealthy(),
	}
	if restarting {
		resp.State = "restarting"
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
