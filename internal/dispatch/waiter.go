package dispatch

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rickgao/eludris-client/internal/event"
)

type waitResult struct {
	ev  event.Event
	err error
}

type waiter struct {
	typ    event.Type
	pred   Predicate
	result chan waitResult
	done   atomic.Bool
}

func (w *waiter) match(ev event.Event) (ok bool, err error) {
	if w.pred == nil {
		return true, nil
	}

	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("predicate panicked: %v", r)
		}
	}()
	return w.pred(ev)
}

// complete delivers the result once. Only the caller that wins may remove
// the waiter from the manager.
func (w *waiter) complete(ev event.Event, err error) bool {
	if !w.done.CompareAndSwap(false, true) {
		return false
	}
	if err != nil {
		ev = nil
	}
	w.result <- waitResult{ev: ev, err: err}
	return true
}

// WaitFor blocks until an event of type t (or a descendant) satisfying pred
// is dispatched. A zero timeout waits until ctx is done. On timeout the
// returned error wraps ErrWaitTimeout.
func (m *Manager) WaitFor(ctx context.Context, t event.Type, timeout time.Duration, pred Predicate) (event.Event, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}

	w := &waiter{typ: t, pred: pred, result: make(chan waitResult, 1)}

	m.mu.Lock()
	if len(m.waiters[t]) == 0 {
		m.adjustGroupsLocked(t, 0, 1)
	}
	m.waiters[t] = append(m.waiters[t], w)
	m.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, fmt.Errorf("%w: %s after %s", ErrWaitTimeout, t, timeout))
		defer cancel()
	}

	select {
	case r := <-w.result:
		return r.ev, r.err
	case <-ctx.Done():
		if w.done.CompareAndSwap(false, true) {
			m.removeWaiter(w)
			return nil, context.Cause(ctx)
		}
		// A dispatch won the race and is delivering.
		r := <-w.result
		return r.ev, r.err
	}
}

func (m *Manager) removeWaiter(w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws := m.waiters[w.typ]
	i := slices.Index(ws, w)
	if i < 0 {
		return
	}

	ws = slices.Delete(ws, i, i+1)
	if len(ws) == 0 {
		delete(m.waiters, w.typ)
		m.adjustGroupsLocked(w.typ, 0, -1)
		return
	}
	m.waiters[w.typ] = ws
}

// Completion tracks the listener invocations started by Dispatch.
type Completion struct {
	done chan struct{}
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func completed() *Completion {
	c := newCompletion()
	close(c.done)
	return c
}

// Done is closed once every listener has returned.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the listeners have returned or ctx is done.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
