package actor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/berfenger/solarcharger/internal/config"
	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/objdic"
	"github.com/berfenger/solarcharger/internal/mqtt"
	"github.com/berfenger/solarcharger/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	client         *mqtt.MQTTClient
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	logger         *zap.Logger
	// dummy actor only
	published []rawMessage
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

// ParsedCommand is routed to the parent, which owns the configuration.
type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type onEventStreamMessage struct {
	message any
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

type batteryStatePayload struct {
	Phase     string `json:"phase"`
	Voltage   int32  `json:"voltage"`
	Current   int32  `json:"current"`
	DutyCycle uint32 `json:"duty_cycle"`
	Charging  bool   `json:"charging"`
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		state.subscribeEventStream(ctx)

		// subscribe to MQTT command topic
		state.client.SubscribeToCommandTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err == nil && cmd != nil {
				ctx.Send(ctx.Self(), ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case onEventStreamMessage:
		// not connected yet, state is published again next period
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "connected",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.Any("message", msg))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case onEventStreamMessage:
		state.publishEvent(ctx, msg.message)
	case publishResult:
		if msg.Error != nil {
			state.logger.Error("mqtt@default could not publish an event", zap.Error(msg.Error))
		}
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) subscribeEventStream(ctx actor.Context) {
	if state.eventStream == nil || state.eventStreamSub != nil {
		return
	}
	state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
		ctx.Send(ctx.Self(), onEventStreamMessage{
			message: value,
		})
	})
}

func (state *MQTTActor) event2MQTTMessage(event any) (*rawMessage, error) {
	switch msg := event.(type) {
	case domain.BatteryStateUpdateEvent:
		payload, err := json.Marshal(batteryStatePayload{
			Phase:     msg.Phase.String(),
			Voltage:   msg.FilteredVoltage,
			Current:   msg.FilteredCurrent,
			DutyCycle: msg.DutyCycle,
			Charging:  msg.Charging,
		})
		if err != nil {
			return nil, err
		}
		return &rawMessage{
			topic:   state.client.BatteryStateTopic(msg.Battery),
			message: string(payload),
		}, nil
	case domain.DiagnosticEvent:
		return &rawMessage{
			topic:   state.client.DiagnosticTopic(msg.Tag),
			message: msg.Message,
		}, nil
	case domain.ConfigChangedEvent:
		return &rawMessage{
			topic:   state.client.ConfigStateTopic(msg.Param, msg.Battery, objdic.IsIndexed(msg.Param)),
			message: strconv.FormatInt(msg.Value, 10),
			retain:  true,
		}, nil
	case domain.BridgeStateUpdateEvent:
		var stringMessage string
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFFLINE
		}
		return &rawMessage{
			topic:   state.client.BridgeStateTopic(),
			message: stringMessage,
			retain:  true,
		}, nil
	default:
		return nil, nil
	}
}

func (state *MQTTActor) publishEvent(ctx actor.Context, event any) {
	msg, err := state.event2MQTTMessage(event)
	if err != nil {
		state.logger.Error("mqtt@publish: could not encode event", zap.Error(err))
		return
	}
	if msg != nil {
		state.logger.Sugar().Debugf("mqtt@publish: event publish %s => %s", msg.topic, msg.message)
		state.client.Publish(msg.topic, msg.message, 1, msg.retain, func(err error) {
			ctx.Send(ctx.Self(), publishResult{Error: err})
		}, 5*time.Second)
	}
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", topic, payload)
	state.client.Publish(topic, payload, 1, retain, func(err error) {
		ctx.Send(ctx.Self(), publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.MessagePublishResultReceive)
}

func (state *MQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.WithResponseError(msg.Error),
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

// Dummy actor, it records the messages it would publish
func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

// GetPublishedRequest asks the dummy actor for the messages it converted so far.
type GetPublishedRequest struct {
	domain.ActorRequestMixIn
}

type GetPublishedResponse struct {
	domain.ActorResponseMixIn
	Topics   []string
	Messages []string
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
		state.subscribeEventStream(ctx)
	case *actor.Stopping:
		if state.eventStreamSub != nil {
			state.eventStream.Unsubscribe(state.eventStreamSub)
			state.eventStreamSub = nil
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@dummy ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "dummy",
		})
	case onEventStreamMessage:
		if raw, err := state.event2MQTTMessage(msg.message); err == nil && raw != nil {
			state.published = append(state.published, *raw)
		}
	case ParsedCommand:
		ctx.Send(ctx.Parent(), msg)
	case GetPublishedRequest:
		resp := GetPublishedResponse{}
		for _, raw := range state.published {
			resp.Topics = append(resp.Topics, raw.topic)
			resp.Messages = append(resp.Messages, raw.message)
		}
		ctx.Respond(resp)
	case domain.PublishMessageRequest:
		if msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishMessageResponse{})
		}
	}
}
