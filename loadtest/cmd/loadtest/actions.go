package main

import (
	"context"
	"sync"
	"time"

	"github.com/whisper/modengine/loadtest/gateway"
)

// actionRouter fans the gateway's single action stream out to per-user
// waiters, so concurrent scenario goroutines can each block on the action
// the engine owes their user. Waiters register before publishing their
// triggering events, so nothing is missed.
type actionRouter struct {
	op string

	mu      sync.Mutex
	waiters map[int64]chan gateway.Action
}

// newActionRouter starts routing actions with the given op from the gateway
// stream until ctx is done. Other ops are discarded.
func newActionRouter(ctx context.Context, g *gateway.Gateway, op string) *actionRouter {
	r := &actionRouter{
		op:      op,
		waiters: make(map[int64]chan gateway.Action),
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case act := <-g.Actions():
				if act.Op != r.op {
					continue
				}
				r.mu.Lock()
				ch, ok := r.waiters[act.UserID]
				r.mu.Unlock()
				if ok {
					select {
					case ch <- act:
					default:
					}
				}
			}
		}
	}()

	return r
}

// register opens a waiter channel for userID. Callers must unregister when
// done.
func (r *actionRouter) register(userID int64) <-chan gateway.Action {
	ch := make(chan gateway.Action, 1)
	r.mu.Lock()
	r.waiters[userID] = ch
	r.mu.Unlock()
	return ch
}

// unregister drops the waiter for userID.
func (r *actionRouter) unregister(userID int64) {
	r.mu.Lock()
	delete(r.waiters, userID)
	r.mu.Unlock()
}

// await blocks until an action arrives on ch or the timeout expires.
func await(ch <-chan gateway.Action, timeout time.Duration) (gateway.Action, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case act := <-ch:
		return act, true
	case <-timer.C:
		return gateway.Action{}, false
	}
}
