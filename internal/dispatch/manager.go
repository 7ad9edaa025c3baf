package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/eludris-client/internal/event"
)

const defaultErrorBuffer = 64

// Manager is the event dispatch engine. It is safe for concurrent use.
type Manager struct {
	events event.Factory
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[event.Type][]*Listener
	waiters   map[event.Type][]*waiter
	consumers map[string]*consumer

	raw    serialQueue // Raw payloads, consumed in arrival order
	errors chan error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithErrorBuffer sets the capacity of the Errors channel.
func WithErrorBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.errors = make(chan error, n)
		}
	}
}

// NewManager creates a Manager with the default consumer table. A nil
// factory uses event.NewFactory(nil).
func NewManager(events event.Factory, opts ...Option) *Manager {
	if events == nil {
		events = event.NewFactory(nil)
	}

	m := &Manager{
		events:    events,
		logger:    slog.Default(),
		listeners: make(map[event.Type][]*Listener),
		waiters:   make(map[event.Type][]*waiter),
		consumers: make(map[string]*consumer),
		errors:    make(chan error, defaultErrorBuffer),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With("component", "dispatch")
	m.registerDefaultConsumers()

	return m
}

// Errors returns consumer failures. Errors are dropped when the channel is
// full.
func (m *Manager) Errors() <-chan error {
	return m.errors
}

// Subscribe registers cb for events of type t and every type descending
// from it.
func (m *Manager) Subscribe(t event.Type, cb event.Callback) (*Listener, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}

	l := &Listener{ID: uuid.New(), Type: t, Callback: cb}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.listeners[t]) == 0 {
		m.adjustGroupsLocked(t, 1, 0)
	}
	m.listeners[t] = append(m.listeners[t], l)

	m.logger.Debug("subscribed listener", "type", t, "listener", l.ID)
	return l, nil
}

// Unsubscribe removes a listener returned by Subscribe.
func (m *Manager) Unsubscribe(l *Listener) error {
	if l == nil {
		return ErrListenerNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ls := m.listeners[l.Type]
	i := slices.Index(ls, l)
	if i < 0 {
		return ErrListenerNotFound
	}

	ls = slices.Delete(ls, i, i+1)
	if len(ls) == 0 {
		delete(m.listeners, l.Type)
		m.adjustGroupsLocked(l.Type, -1, 0)
	} else {
		m.listeners[l.Type] = ls
	}

	m.logger.Debug("unsubscribed listener", "type", l.Type, "listener", l.ID)
	return nil
}

// GetListeners returns the listeners for t. When polymorphic is set the
// listeners of every type in t's dispatch set are included.
func (m *Manager) GetListeners(t event.Type, polymorphic bool) []*Listener {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !polymorphic {
		return slices.Clone(m.listeners[t])
	}

	var out []*Listener
	for _, dt := range t.DispatchSet() {
		out = append(out, m.listeners[dt]...)
	}
	return out
}

// Dispatch delivers ev to every listener and waiter along its dispatch set.
// Waiters are resolved before Dispatch returns. Each listener receives ev
// after every event dispatched to it earlier; the returned Completion is done
// once every listener, and any exception dispatch it caused, has returned.
func (m *Manager) Dispatch(ctx context.Context, ev event.Event) *Completion {
	set := ev.Type().DispatchSet()

	var (
		calls   []*Listener
		pending []*waiter
	)

	m.mu.Lock()
	for _, t := range set {
		calls = append(calls, m.listeners[t]...)
		pending = append(pending, m.waiters[t]...)
	}
	m.mu.Unlock()

	for _, w := range pending {
		if w.done.Load() {
			continue
		}

		ok, err := w.match(ev)
		if !ok && err == nil {
			continue
		}
		if w.complete(ev, err) {
			m.removeWaiter(w)
		}
	}

	if len(calls) == 0 {
		return completed()
	}

	c := newCompletion()
	var wg sync.WaitGroup
	wg.Add(len(calls))
	for _, l := range calls {
		l.deliveries.submit(func() {
			exc := m.invoke(ctx, l, ev)
			if exc == nil {
				wg.Done()
				return
			}
			go func() {
				<-exc.Done()
				wg.Done()
			}()
		})
	}

	go func() {
		wg.Wait()
		close(c.done)
	}()
	return c
}

// invoke runs one listener. A failure is re-dispatched as an
// event.ExceptionEvent whose Completion is returned; the caller must not
// block the listener's delivery queue on it.
func (m *Manager) invoke(ctx context.Context, l *Listener, ev event.Event) *Completion {
	err := call(ctx, l.Callback, ev)
	if err == nil {
		return nil
	}

	if _, ok := ev.(event.ExceptionEvent); ok {
		m.logger.Error("exception handler failed, ignoring",
			"type", ev.Type(),
			"listener", l.ID,
			"error", err,
		)
		return nil
	}

	if len(m.GetListeners(event.TypeException, true)) == 0 {
		m.logger.Error("unhandled listener error", "type", ev.Type(), "listener", l.ID, "error", err)
	} else {
		m.logger.Debug("listener failed", "type", ev.Type(), "listener", l.ID, "error", err)
	}

	exc := event.ExceptionEvent{
		Err:            err,
		FailedEvent:    ev,
		FailedCallback: l.Callback,
	}
	return m.Dispatch(ctx, exc)
}

func call(ctx context.Context, cb event.Callback, ev event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errListenerPanicked, r)
		}
	}()
	return cb(ctx, ev)
}

// adjustGroupsLocked updates the group counts of every consumer able to
// produce t. m.mu must be held.
func (m *Manager) adjustGroupsLocked(t event.Type, listenerDelta, waiterDelta int) {
	for _, c := range m.consumers {
		if c.mask.Has(t) {
			c.listenerGroups += listenerDelta
			c.waiterGroups += waiterDelta
		}
	}
}
