// Package cancelctx provides a context.Context whose cancellation is
// driven by an explicit channel close rather than by a parent context's
// own cancellation. Used to scope a single connection attempt: closing
// the channel cancels everything derived from the returned context, but
// cancelling the parent context does not.
package cancelctx

import "context"

type ctx struct {
	context.Context
	done <-chan struct{}
}

// New returns a context.Context that is cancelled exactly when done is
// closed, independent of parent's own cancellation.
func New(parent context.Context, done <-chan struct{}) context.Context {
	return &ctx{Context: parent, done: done}
}

func (c *ctx) Done() <-chan struct{} {
	return c.done
}

func (c *ctx) Err() error {
	select {
	case <-c.done:
		return context.Canceled
	default:
		return nil
	}
}
