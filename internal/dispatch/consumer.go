package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rickgao/eludris-client/internal/event"
)

type consumer struct {
	name string
	mask event.Mask
	fn   ConsumerFunc

	// Guarded by Manager.mu.
	listenerGroups int
	waiterGroups   int
}

func (c *consumer) enabled() bool {
	return c.listenerGroups > 0 || c.waiterGroups > 0
}

func (m *Manager) registerDefaultConsumers() {
	m.addConsumer("hello", consume(m, m.events.DeserializeHelloEvent), event.TypeHello)
	m.addConsumer("ratelimit", consume(m, m.events.DeserializeRatelimitEvent), event.TypeRatelimit)
	m.addConsumer("authenticated", consume(m, m.events.DeserializeAuthenticatedEvent), event.TypeAuthenticated)
	m.addConsumer("message_create", consume(m, m.events.DeserializeMessageCreateEvent), event.TypeMessageCreate)
	m.addConsumer("user_update", consume(m, m.events.DeserializeUserUpdateEvent), event.TypeUserUpdate)
	m.addConsumer("presence_update", consume(m, m.events.DeserializePresenceUpdateEvent), event.TypePresenceUpdate)
}

// consume builds a ConsumerFunc that decodes the payload and dispatches the
// resulting event without waiting for its listeners.
func consume[E event.Event](m *Manager, decode func(json.RawMessage) (E, error)) ConsumerFunc {
	return func(ctx context.Context, _ Gateway, payload json.RawMessage) error {
		ev, err := decode(payload)
		if err != nil {
			return err
		}
		m.Dispatch(ctx, ev)
		return nil
	}
}

func (m *Manager) addConsumer(name string, fn ConsumerFunc, types ...event.Type) *consumer {
	c := &consumer{
		name: strings.ToLower(name),
		mask: event.MaskOf(types...),
		fn:   fn,
	}

	for t, ls := range m.listeners {
		if len(ls) > 0 && c.mask.Has(t) {
			c.listenerGroups++
		}
	}
	for t, ws := range m.waiters {
		if len(ws) > 0 && c.mask.Has(t) {
			c.waiterGroups++
		}
	}

	m.consumers[c.name] = c
	return c
}

// RegisterConsumer binds a raw event name to fn. types lists the events fn
// can dispatch; fn only runs while something listens for one of them.
func (m *Manager) RegisterConsumer(name string, fn ConsumerFunc, types ...event.Type) error {
	if fn == nil {
		return ErrNilCallback
	}
	for _, t := range types {
		if !t.Valid() {
			return fmt.Errorf("%w: %s", ErrUnknownType, t)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.consumers[strings.ToLower(name)]; ok {
		return fmt.Errorf("%w: %s", ErrConsumerExists, name)
	}
	m.addConsumer(name, fn, types...)
	return nil
}

// Consumer returns a snapshot of the named consumer.
func (m *Manager) Consumer(name string) (ConsumerState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.consumers[strings.ToLower(name)]
	if !ok {
		return ConsumerState{}, false
	}
	return ConsumerState{
		Name:           c.name,
		Mask:           c.mask,
		ListenerGroups: c.listenerGroups,
		WaiterGroups:   c.waiterGroups,
	}, true
}

// ConsumeRawEvent hands a raw payload to the consumer registered for name.
// Unknown names are logged and dropped. Consumers run off the caller's
// goroutine, one payload at a time in the order they were handed in; their
// failures are logged and sent to Errors.
func (m *Manager) ConsumeRawEvent(ctx context.Context, name string, gw Gateway, payload json.RawMessage) {
	key := strings.ToLower(name)

	m.mu.Lock()
	c, ok := m.consumers[key]
	m.mu.Unlock()

	if !ok {
		m.logger.Warn("unhandled event", "event", key)
		return
	}

	ctx = context.WithoutCancel(ctx)
	m.raw.submit(func() {
		m.handleConsumption(ctx, c, gw, payload)
	})
}

func (m *Manager) handleConsumption(ctx context.Context, c *consumer, gw Gateway, payload json.RawMessage) {
	m.mu.Lock()
	enabled := c.enabled()
	m.mu.Unlock()

	if !enabled {
		m.logger.Debug("skipping raw event without listeners", "event", c.name)
		return
	}

	m.logger.Debug("dispatching raw event", "event", c.name)

	if err := runConsumer(ctx, c.fn, gw, payload); err != nil {
		err = fmt.Errorf("consume %s: %w", c.name, err)
		m.logger.Error("raw event dispatch failed", "event", c.name, "error", err)
		m.reportError(err)
	}
}

func runConsumer(ctx context.Context, fn ConsumerFunc, gw Gateway, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errConsumerPanicked, r)
		}
	}()
	return fn(ctx, gw, payload)
}

func (m *Manager) reportError(err error) {
	select {
	case m.errors <- err:
	default:
	}
}
