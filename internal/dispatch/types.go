// Package dispatch routes events to listeners and waiters.
//
// A Manager holds persistent listeners, one-shot waiters and the consumer
// table that turns raw gateway payloads into events. Listener failures are
// re-dispatched as event.ExceptionEvent unless the failing event already was
// one.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/eludris-client/internal/event"
)

var (
	ErrNilCallback      = errors.New("callback must not be nil")
	ErrUnknownType      = errors.New("unknown event type")
	ErrListenerNotFound = errors.New("listener not subscribed")
	ErrListenTypes      = errors.New("explicit event types do not match the handler's event type")
	ErrWaitTimeout      = errors.New("timed out waiting for event")
	ErrConsumerExists   = errors.New("consumer already registered")
	ErrUnexpectedEvent  = errors.New("listener received an event of unexpected type")
	errListenerPanicked = errors.New("listener panicked")
	errConsumerPanicked = errors.New("consumer panicked")
)

// Gateway is the view of the connection handed to consumers.
type Gateway interface {
	IsAlive() bool
	HeartbeatLatency() time.Duration
}

// ConsumerFunc turns a raw payload into events.
type ConsumerFunc func(ctx context.Context, gw Gateway, payload json.RawMessage) error

// Predicate filters events for WaitFor. An error completes the wait with
// that error.
type Predicate func(ev event.Event) (bool, error)

// Listener is a subscription handle returned by Subscribe. Events are
// delivered to a listener one at a time, in dispatch order.
type Listener struct {
	ID       uuid.UUID
	Type     event.Type
	Callback event.Callback

	deliveries serialQueue
}

// ConsumerState is a snapshot of a consumer's bookkeeping.
type ConsumerState struct {
	Name           string
	Mask           event.Mask
	ListenerGroups int
	WaiterGroups   int
}

// Enabled reports whether anything is listening for the consumer's events.
func (s ConsumerState) Enabled() bool {
	return s.ListenerGroups > 0 || s.WaiterGroups > 0
}
