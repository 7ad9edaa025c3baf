package event

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestDispatchSet(t *testing.T) {
	tests := []struct {
		typ  Type
		want []Type
	}{
		{TypeEvent, []Type{TypeEvent}},
		{TypeException, []Type{TypeException, TypeEvent}},
		{TypeConnection, []Type{TypeConnection, TypeEvent}},
		{TypeMessage, []Type{TypeMessage, TypeEvent}},
		{TypeMessageCreate, []Type{TypeMessageCreate, TypeMessage, TypeEvent}},
		{TypeUserUpdate, []Type{TypeUserUpdate, TypeUser, TypeEvent}},
		{TypePresenceUpdate, []Type{TypePresenceUpdate, TypeUser, TypeEvent}},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			if got := tt.typ.DispatchSet(); !slices.Equal(got, tt.want) {
				t.Errorf("DispatchSet() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBit_UniqueAndStable(t *testing.T) {
	seen := make(map[Mask]Type)
	for _, typ := range Types() {
		bit := typ.Bit()
		if bit.Len() != 1 {
			t.Errorf("%s.Bit() = %b, want a single bit", typ, bit)
		}
		if other, ok := seen[bit]; ok {
			t.Errorf("%s and %s share bit %b", typ, other, bit)
		}
		seen[bit] = typ

		if typ.Bit() != bit {
			t.Errorf("%s.Bit() changed between calls", typ)
		}
	}
}

func TestMaskOf(t *testing.T) {
	m := MaskOf(TypeMessageCreate)

	for _, typ := range []Type{TypeMessageCreate, TypeMessage, TypeEvent} {
		if !m.Has(typ) {
			t.Errorf("MaskOf(MessageCreate).Has(%s) = false, want true", typ)
		}
	}
	for _, typ := range []Type{TypeUser, TypeConnection, TypeException} {
		if m.Has(typ) {
			t.Errorf("MaskOf(MessageCreate).Has(%s) = true, want false", typ)
		}
	}

	if got := MaskOf(TypeUserUpdate, TypePresenceUpdate).Len(); got != 4 {
		t.Errorf("MaskOf(UserUpdate, PresenceUpdate).Len() = %d, want 4", got)
	}
}

func TestType_Is(t *testing.T) {
	if !TypePresenceUpdate.Is(TypeUser) {
		t.Error("PresenceUpdate should be a UserEvent")
	}
	if TypePresenceUpdate.Is(TypeMessage) {
		t.Error("PresenceUpdate should not be a MessageEvent")
	}
	if !TypeHello.Is(TypeEvent) {
		t.Error("every type should be an Event")
	}
}

func TestType_String(t *testing.T) {
	if got := TypeMessageCreate.String(); got != "MessageCreateEvent" {
		t.Errorf("String() = %q, want %q", got, "MessageCreateEvent")
	}
	if got := Type(200).String(); got != "Type(200)" {
		t.Errorf("String() = %q, want %q", got, "Type(200)")
	}
	if Type(200).DispatchSet() != nil {
		t.Error("invalid type should have no dispatch set")
	}
}

func TestTypeFor(t *testing.T) {
	tests := []struct {
		name string
		got  func() (Type, bool)
		want Type
	}{
		{"Event", TypeFor[Event], TypeEvent},
		{"MessageEvent", TypeFor[MessageEvent], TypeMessage},
		{"UserEvent", TypeFor[UserEvent], TypeUser},
		{"MessageCreateEvent", TypeFor[MessageCreateEvent], TypeMessageCreate},
		{"ExceptionEvent", TypeFor[ExceptionEvent], TypeException},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.got()
			if !ok {
				t.Fatal("type not registered")
			}
			if got != tt.want {
				t.Errorf("TypeFor() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvents_ReportTheirType(t *testing.T) {
	events := []Event{
		ExceptionEvent{},
		ConnectionEvent{},
		DisconnectEvent{},
		HelloEvent{},
		RatelimitEvent{},
		AuthenticatedEvent{},
		MessageCreateEvent{},
		UserUpdateEvent{},
		PresenceUpdateEvent{},
	}

	for _, ev := range events {
		got, ok := LookupGoTypeOf(ev)
		if !ok {
			t.Errorf("%T not registered", ev)
			continue
		}
		if got != ev.Type() {
			t.Errorf("%T.Type() = %s, registry says %s", ev, ev.Type(), got)
		}
		if ev.Type().Abstract() {
			t.Errorf("%T is concrete but its type is abstract", ev)
		}
	}
}

func TestExceptionEvent_Retry(t *testing.T) {
	var calls int
	var seen Event
	cb := func(_ context.Context, ev Event) error {
		calls++
		seen = ev
		return errors.New("still failing")
	}

	failed := MessageCreateEvent{Content: "hi"}
	exc := ExceptionEvent{Err: errors.New("boom"), FailedEvent: failed, FailedCallback: cb}

	if err := exc.Retry(context.Background()); err == nil || err.Error() != "still failing" {
		t.Errorf("Retry() error = %v, want %q", err, "still failing")
	}
	if calls != 1 {
		t.Errorf("callback called %d times, want 1", calls)
	}
	if m, ok := seen.(MessageCreateEvent); !ok || m.Content != "hi" {
		t.Errorf("callback received %#v, want the failed event", seen)
	}

	if err := (ExceptionEvent{}).Retry(context.Background()); !errors.Is(err, ErrNoCallback) {
		t.Errorf("Retry() without callback = %v, want ErrNoCallback", err)
	}
}

func TestFactory(t *testing.T) {
	f := NewFactory(nil)

	hello, err := f.DeserializeHelloEvent(json.RawMessage(`{"heartbeat_interval": 20000, "instance_info": {"instance_name": "x"}, "pandemonium_info": {"url": "ws://x"}}`))
	if err != nil {
		t.Fatalf("DeserializeHelloEvent() error = %v", err)
	}
	if hello.HeartbeatInterval != 20*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 20s", hello.HeartbeatInterval)
	}

	rl, err := f.DeserializeRatelimitEvent(json.RawMessage(`{"wait": 1500}`))
	if err != nil {
		t.Fatalf("DeserializeRatelimitEvent() error = %v", err)
	}
	if rl.Wait != 1500*time.Millisecond {
		t.Errorf("Wait = %v, want 1.5s", rl.Wait)
	}

	msg, err := f.DeserializeMessageCreateEvent(json.RawMessage(`{"author": {"id": 1, "username": "a", "status": {"type": "ONLINE"}}, "content": "hey"}`))
	if err != nil {
		t.Fatalf("DeserializeMessageCreateEvent() error = %v", err)
	}
	if msg.Content != "hey" || msg.Author.Username != "a" {
		t.Errorf("got %+v", msg)
	}

	pu, err := f.DeserializePresenceUpdateEvent(json.RawMessage(`{"user_id": 7, "status": {"type": "IDLE"}}`))
	if err != nil {
		t.Fatalf("DeserializePresenceUpdateEvent() error = %v", err)
	}
	if pu.UserID != 7 {
		t.Errorf("UserID = %d, want 7", pu.UserID)
	}

	if _, err := f.DeserializeAuthenticatedEvent(json.RawMessage(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}
