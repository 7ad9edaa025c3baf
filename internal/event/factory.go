package event

import (
	"encoding/json"
	"time"

	"github.com/rickgao/eludris-client/internal/entity"
)

// Factory builds events from raw gateway payloads.
type Factory interface {
	DeserializeHelloEvent(payload json.RawMessage) (HelloEvent, error)
	DeserializeRatelimitEvent(payload json.RawMessage) (RatelimitEvent, error)
	DeserializeAuthenticatedEvent(payload json.RawMessage) (AuthenticatedEvent, error)
	DeserializeMessageCreateEvent(payload json.RawMessage) (MessageCreateEvent, error)
	DeserializeUserUpdateEvent(payload json.RawMessage) (UserUpdateEvent, error)
	DeserializePresenceUpdateEvent(payload json.RawMessage) (PresenceUpdateEvent, error)
}

// EntityFactory implements Factory on top of an entity.Factory.
type EntityFactory struct {
	entities entity.Factory
}

// NewFactory creates an EntityFactory. A nil entities uses entity.NewFactory.
func NewFactory(entities entity.Factory) *EntityFactory {
	if entities == nil {
		entities = entity.NewFactory()
	}
	return &EntityFactory{entities: entities}
}

func (f *EntityFactory) DeserializeHelloEvent(payload json.RawMessage) (HelloEvent, error) {
	h, err := f.entities.DeserializeHello(payload)
	if err != nil {
		return HelloEvent{}, err
	}
	return HelloEvent{
		HeartbeatInterval: time.Duration(h.HeartbeatInterval) * time.Millisecond,
		InstanceInfo:      h.InstanceInfo,
		PandemoniumInfo:   h.PandemoniumInfo,
	}, nil
}

func (f *EntityFactory) DeserializeRatelimitEvent(payload json.RawMessage) (RatelimitEvent, error) {
	r, err := f.entities.DeserializeRatelimitData(payload)
	if err != nil {
		return RatelimitEvent{}, err
	}
	return RatelimitEvent{Wait: time.Duration(r.Wait) * time.Millisecond}, nil
}

func (f *EntityFactory) DeserializeAuthenticatedEvent(payload json.RawMessage) (AuthenticatedEvent, error) {
	a, err := f.entities.DeserializeAuthenticated(payload)
	if err != nil {
		return AuthenticatedEvent{}, err
	}
	return AuthenticatedEvent{User: a.User, Users: a.Users}, nil
}

func (f *EntityFactory) DeserializeMessageCreateEvent(payload json.RawMessage) (MessageCreateEvent, error) {
	m, err := f.entities.DeserializeMessage(payload)
	if err != nil {
		return MessageCreateEvent{}, err
	}
	return MessageCreateEvent{Author: m.Author, Content: m.Content}, nil
}

func (f *EntityFactory) DeserializeUserUpdateEvent(payload json.RawMessage) (UserUpdateEvent, error) {
	u, err := f.entities.DeserializeUser(payload)
	if err != nil {
		return UserUpdateEvent{}, err
	}
	return UserUpdateEvent{User: u}, nil
}

func (f *EntityFactory) DeserializePresenceUpdateEvent(payload json.RawMessage) (PresenceUpdateEvent, error) {
	p, err := f.entities.DeserializePresenceUpdate(payload)
	if err != nil {
		return PresenceUpdateEvent{}, err
	}
	return PresenceUpdateEvent{UserID: p.UserID, Status: p.Status}, nil
}
