package event

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/eludris-client/internal/entity"
)

// ErrNoCallback is returned by ExceptionEvent.Retry when the event carries
// no callback.
var ErrNoCallback = errors.New("exception event has no failed callback")

// Event is implemented by every event value.
type Event interface {
	Type() Type
}

// Callback handles a dispatched event.
type Callback func(ctx context.Context, ev Event) error

// MessageEvent is implemented by all message related events.
type MessageEvent interface {
	Event
	messageEvent()
}

// UserEvent is implemented by all user related events.
type UserEvent interface {
	Event
	userEvent()
}

// ExceptionEvent is dispatched when a listener fails.
type ExceptionEvent struct {
	Err            error
	FailedEvent    Event
	FailedCallback Callback
}

func (ExceptionEvent) Type() Type { return TypeException }

// Retry invokes the failed callback again with the failed event.
func (e ExceptionEvent) Retry(ctx context.Context) error {
	if e.FailedCallback == nil {
		return ErrNoCallback
	}
	return e.FailedCallback(ctx, e.FailedEvent)
}

// ConnectionEvent is dispatched once the gateway has authenticated.
type ConnectionEvent struct{}

func (ConnectionEvent) Type() Type { return TypeConnection }

// DisconnectEvent is dispatched after every connection attempt is torn down.
type DisconnectEvent struct{}

func (DisconnectEvent) Type() Type { return TypeDisconnect }

// HelloEvent carries the HELLO payload.
type HelloEvent struct {
	HeartbeatInterval time.Duration
	InstanceInfo      entity.InstanceInfo
	PandemoniumInfo   entity.PandemoniumConf
}

func (HelloEvent) Type() Type { return TypeHello }

// RatelimitEvent is dispatched when the gateway rate-limits the client.
type RatelimitEvent struct {
	Wait time.Duration
}

func (RatelimitEvent) Type() Type { return TypeRatelimit }

// AuthenticatedEvent is dispatched when the token has been accepted.
type AuthenticatedEvent struct {
	User  entity.User
	Users []entity.User
}

func (AuthenticatedEvent) Type() Type { return TypeAuthenticated }

// MessageCreateEvent is dispatched for every new message.
type MessageCreateEvent struct {
	Author  entity.User
	Content string
}

func (MessageCreateEvent) Type() Type { return TypeMessageCreate }
func (MessageCreateEvent) messageEvent() {}

// UserUpdateEvent is dispatched when a user changes.
type UserUpdateEvent struct {
	User entity.User
}

func (UserUpdateEvent) Type() Type { return TypeUserUpdate }
func (UserUpdateEvent) userEvent()  {}

// PresenceUpdateEvent is dispatched when a user's status changes.
type PresenceUpdateEvent struct {
	UserID uint64
	Status entity.Status
}

func (PresenceUpdateEvent) Type() Type { return TypePresenceUpdate }
func (PresenceUpdateEvent) userEvent()  {}
