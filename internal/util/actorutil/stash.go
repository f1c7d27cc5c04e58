package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// Stash keeps messages received in a state that cannot handle them yet, with their senders.
type Stash struct {
	stash []stashElem
}

type stashElem struct {
	msg    any
	sender *actor.PID
}

func (stash *Stash) Stash(ctx actor.Context, msg any) {
	stash.stash = append(stash.stash, stashElem{
		msg:    msg,
		sender: ctx.Sender(),
	})
}

func (stash *Stash) Len() int {
	return len(stash.stash)
}

func (stash *Stash) UnstashAll(ctx actor.Context) {
	pending := stash.stash
	stash.stash = nil
	for _, elem := range pending {
		ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	}
}

func (stash *Stash) UnstashOldest(ctx actor.Context) {
	if len(stash.stash) > 0 {
		first := stash.stash[0]
		stash.stash = stash.stash[1:]
		ctx.RequestWithCustomSender(ctx.Self(), first.msg, first.sender)
	}
}
