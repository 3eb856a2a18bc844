package core

import "context"

// Handler processes messages of a registered category. Dispatch is
// single-match: the router delivers a message to exactly one handler whose
// IsValid accepts it.
//
// Handle returns a finite, non-restartable sequence of output messages
// expressed as a receive-only channel. The handler must close the channel
// when the sequence ends; the router consumes it incrementally and
// re-dispatches every produced message to its receivers.
type Handler interface {
	// IsValid reports whether this handler accepts the message.
	IsValid(msg Message) bool

	// Handle processes the message and streams zero or more follow-up
	// messages. A returned error converts the message into an error payload
	// routed back to the sender; errors wrapped via Unrecoverable abort the
	// owning task instead.
	Handle(ctx context.Context, msg Message) (<-chan Message, error)
}

// FuncHandler adapts plain functions to the Handler interface.
type FuncHandler struct {
	ValidFn  func(msg Message) bool
	HandleFn func(ctx context.Context, msg Message) (<-chan Message, error)
}

// IsValid implements Handler. A nil ValidFn accepts every message.
func (h *FuncHandler) IsValid(msg Message) bool {
	if h.ValidFn == nil {
		return true
	}
	return h.ValidFn(msg)
}

// Handle implements Handler.
func (h *FuncHandler) Handle(ctx context.Context, msg Message) (<-chan Message, error) {
	return h.HandleFn(ctx, msg)
}

// EmitAll is a helper for handlers producing a fixed set of outputs: it
// returns a closed channel pre-loaded with msgs.
func EmitAll(msgs ...Message) <-chan Message {
	ch := make(chan Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return ch
}
