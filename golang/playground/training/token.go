package training

import (
	"context"
	"sync/atomic"
)

//Token is the cancellation flag shared by every tick of one run. Cancelling it also
//cancels the context handed to the fit.
type Token struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

func newToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

//Cancel stops the run. It is safe to call more than once.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
	t.cancel()
}

//Cancelled reports whether Cancel was called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

//Context is cancelled together with the token.
func (t *Token) Context() context.Context {
	return t.ctx
}
