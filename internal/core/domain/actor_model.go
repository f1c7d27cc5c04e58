package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorRef is an explicit reply address for requests sent without a sender.
type ActorRef actor.PID

type ActorRequest interface {
	ReplyTo() *ActorRef
}

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

type ActorResponseMixIn struct {
	ResponseError error
}

// WithResponseError builds the mixin of a response, err may be nil.
func WithResponseError(err error) ActorResponseMixIn {
	return ActorResponseMixIn{ResponseError: err}
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

const (
	ACTOR_ID_SUPERVISOR  = "supervisor"
	ACTOR_ID_CHARGER     = "charger"
	ACTOR_ID_MEASUREMENT = "measurement"
	ACTOR_ID_MQTT        = "mqtt"
)

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

type GetChargerStateRequest struct {
	ActorRequestMixIn
}

type GetChargerStateResponse struct {
	ActorResponseMixIn
	States []BatteryChargeState
	// ChargingBattery is -1 when no battery is designated for charging
	ChargingBattery int
	Periods         uint64
}

type GetSupervisorStateRequest struct {
	ActorRequestMixIn
}

type GetSupervisorStateResponse struct {
	ActorResponseMixIn
	Restarts uint32
	// Restarting is set while no charger instance is running
	Restarting bool
	Generation uint32
	// Abandoned counts stalled charger instances that were stopped but have not exited
	Abandoned int
}

type SetParameterRequest struct {
	ActorRequestMixIn
	Param   string
	Battery int
	Value   int64
}

type SetParameterResponse struct {
	ActorResponseMixIn
}

type WriteConfigBlockRequest struct {
	ActorRequestMixIn
}

type WriteConfigBlockResponse struct {
	ActorResponseMixIn
}

type ResetConfigDefaultsRequest struct {
	ActorRequestMixIn
}

type ResetConfigDefaultsResponse struct {
	ActorResponseMixIn
}

type EqualizationRequest struct {
	ActorRequestMixIn
	Battery int
}

type EqualizationResponse struct {
	ActorResponseMixIn
	Accepted bool
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}
