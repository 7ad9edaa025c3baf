package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/rickgao/eludris-client/internal/event"
)

// Listen subscribes fn to the event type named by E. Abstract kinds are
// named by their interface (event.MessageEvent, event.UserEvent).
//
// When E is event.Event the handler is untyped: it is subscribed to types,
// or to event.TypeEvent when none are given. Otherwise types, if given, must
// name exactly E's type.
func Listen[E event.Event](m *Manager, fn func(context.Context, E) error, types ...event.Type) ([]*Listener, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}

	inferred, ok := event.TypeFor[E]()
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, reflect.TypeFor[E]())
	}

	resolved, err := resolveTypes(inferred, types)
	if err != nil {
		return nil, err
	}

	cb := func(ctx context.Context, ev event.Event) error {
		e, ok := ev.(E)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnexpectedEvent, ev)
		}
		return fn(ctx, e)
	}

	out := make([]*Listener, 0, len(resolved))
	for _, t := range resolved {
		l, err := m.Subscribe(t, cb)
		if err != nil {
			for _, done := range out {
				_ = m.Unsubscribe(done)
			}
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func resolveTypes(inferred event.Type, explicit []event.Type) ([]event.Type, error) {
	seen := make(map[event.Type]bool, len(explicit))
	var uniq []event.Type
	for _, t := range explicit {
		if !seen[t] {
			seen[t] = true
			uniq = append(uniq, t)
		}
	}

	if inferred == event.TypeEvent {
		if len(uniq) == 0 {
			return []event.Type{event.TypeEvent}, nil
		}
		return uniq, nil
	}

	if len(uniq) > 0 && (len(uniq) != 1 || uniq[0] != inferred) {
		return nil, fmt.Errorf("%w: handler takes %s, got %v", ErrListenTypes, inferred, uniq)
	}
	return []event.Type{inferred}, nil
}

// Await waits for the first event of type E accepted by pred. A nil pred
// accepts every event.
func Await[E event.Event](ctx context.Context, m *Manager, timeout time.Duration, pred func(E) bool) (E, error) {
	var zero E

	t, ok := event.TypeFor[E]()
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrUnknownType, reflect.TypeFor[E]())
	}

	var p Predicate
	if pred != nil {
		p = func(ev event.Event) (bool, error) {
			e, ok := ev.(E)
			return ok && pred(e), nil
		}
	}

	ev, err := m.WaitFor(ctx, t, timeout, p)
	if err != nil {
		return zero, err
	}

	e, ok := ev.(E)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrUnexpectedEvent, ev)
	}
	return e, nil
}
