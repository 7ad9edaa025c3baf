package entity

import (
	"encoding/json"
	"fmt"
)

// Factory deserializes raw payloads into entities.
type Factory interface {
	DeserializeHello(payload json.RawMessage) (Hello, error)
	DeserializeInstanceInfo(payload json.RawMessage) (InstanceInfo, error)
	DeserializeRatelimitData(payload json.RawMessage) (RatelimitData, error)
	DeserializeAuthenticated(payload json.RawMessage) (Authenticated, error)
	DeserializeUser(payload json.RawMessage) (User, error)
	DeserializeMessage(payload json.RawMessage) (Message, error)
	DeserializePresenceUpdate(payload json.RawMessage) (PresenceUpdate, error)
	DeserializeSession(payload json.RawMessage) (Session, error)
	DeserializeFileData(payload json.RawMessage) (FileData, error)
}

// JSONFactory is the encoding/json backed Factory.
type JSONFactory struct{}

// NewFactory returns the default Factory.
func NewFactory() *JSONFactory {
	return &JSONFactory{}
}

func decode[T any](kind string, payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, fmt.Errorf("decode %s: empty payload", kind)
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", kind, err)
	}
	return v, nil
}

func (JSONFactory) DeserializeHello(payload json.RawMessage) (Hello, error) {
	return decode[Hello]("hello", payload)
}

func (JSONFactory) DeserializeInstanceInfo(payload json.RawMessage) (InstanceInfo, error) {
	return decode[InstanceInfo]("instance info", payload)
}

func (JSONFactory) DeserializeRatelimitData(payload json.RawMessage) (RatelimitData, error) {
	return decode[RatelimitData]("ratelimit", payload)
}

func (JSONFactory) DeserializeAuthenticated(payload json.RawMessage) (Authenticated, error) {
	return decode[Authenticated]("authenticated", payload)
}

func (JSONFactory) DeserializeUser(payload json.RawMessage) (User, error) {
	return decode[User]("user", payload)
}

func (JSONFactory) DeserializeMessage(payload json.RawMessage) (Message, error) {
	return decode[Message]("message", payload)
}

func (JSONFactory) DeserializePresenceUpdate(payload json.RawMessage) (PresenceUpdate, error) {
	return decode[PresenceUpdate]("presence update", payload)
}

func (JSONFactory) DeserializeSession(payload json.RawMessage) (Session, error) {
	return decode[Session]("session", payload)
}

func (JSONFactory) DeserializeFileData(payload json.RawMessage) (FileData, error) {
	return decode[FileData]("file data", payload)
}
