package stream

import "sync/atomic"

// CancellationToken is a cooperative abort flag shared by one in-flight
// request. It is edge-triggered: the requester sets it once, the observing
// session acts on it and resets it, so a later session sharing the token is
// never born already-aborted.
//
// Sessions check the token at chunk-read and orchestration-round boundaries
// only; decoding a single line is never interrupted.
type CancellationToken struct {
	aborted atomic.Bool
}

// NewCancellationToken creates an unset token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{}
}

// Abort requests cancellation of the in-flight request.
func (t *CancellationToken) Abort() {
	t.aborted.Store(true)
}

// Aborted reports whether cancellation has been requested.
func (t *CancellationToken) Aborted() bool {
	return t.aborted.Load()
}

// Reset clears the flag. Called by the session that observed the abort.
func (t *CancellationToken) Reset() {
	t.aborted.Store(false)
}
