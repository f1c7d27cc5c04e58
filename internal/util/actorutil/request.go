package actorutil

import (
	"github.com/berfenger/solarcharger/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

type forRequest struct {
	req domain.ActorRequest
}

type ExtendedRequest interface {
	Respond(ctx actor.Context, resp domain.ActorResponse)
	ReplyTo(ctx actor.Context) *actor.PID
}

func ForRequest(r domain.ActorRequest) ExtendedRequest {
	return forRequest{req: r}
}

// Respond sends to the explicit reply address, else to the sender.
// Fire and forget requests have neither and get no response.
func (r forRequest) Respond(ctx actor.Context, resp domain.ActorResponse) {
	if to := r.ReplyTo(ctx); to != nil {
		ctx.Send(to, resp)
	}
}

func (r forRequest) ReplyTo(ctx actor.Context) *actor.PID {
	if r.req.ReplyTo() != nil {
		return (*actor.PID)(r.req.ReplyTo())
	}
	return ctx.Sender()
}
