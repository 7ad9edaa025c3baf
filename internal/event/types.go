// Package event defines the gateway event hierarchy.
//
// Every event kind is a Type with a fixed ordinal. Its bit is 1<<ordinal and
// its dispatch set lists the kind followed by each of its ancestors, most
// specific first. Both are computed once at init and never change.
package event

import (
	"fmt"
	"math/bits"
	"reflect"
)

// Type identifies an event kind.
type Type uint8

const (
	TypeEvent Type = iota
	TypeException
	TypeConnection
	TypeDisconnect
	TypeHello
	TypeRatelimit
	TypeAuthenticated
	TypeMessage
	TypeMessageCreate
	TypeUser
	TypeUserUpdate
	TypePresenceUpdate

	numTypes
)

// Mask is a set of types, one bit per Type.
type Mask uint64

type typeInfo struct {
	name     string
	parent   Type
	abstract bool
}

var registry = [numTypes]typeInfo{
	TypeEvent:          {name: "Event", parent: TypeEvent, abstract: true},
	TypeException:      {name: "ExceptionEvent", parent: TypeEvent},
	TypeConnection:     {name: "ConnectionEvent", parent: TypeEvent},
	TypeDisconnect:     {name: "DisconnectEvent", parent: TypeEvent},
	TypeHello:          {name: "HelloEvent", parent: TypeEvent},
	TypeRatelimit:      {name: "RatelimitEvent", parent: TypeEvent},
	TypeAuthenticated:  {name: "AuthenticatedEvent", parent: TypeEvent},
	TypeMessage:        {name: "MessageEvent", parent: TypeEvent, abstract: true},
	TypeMessageCreate:  {name: "MessageCreateEvent", parent: TypeMessage},
	TypeUser:           {name: "UserEvent", parent: TypeEvent, abstract: true},
	TypeUserUpdate:     {name: "UserUpdateEvent", parent: TypeUser},
	TypePresenceUpdate: {name: "PresenceUpdateEvent", parent: TypeUser},
}

var (
	dispatchSets [numTypes][]Type
	byGoType     map[reflect.Type]Type
)

func init() {
	if numTypes > 64 {
		panic("event: more types than bits in Mask")
	}

	for t := Type(0); t < numTypes; t++ {
		set := []Type{t}
		for cur := t; cur != TypeEvent; {
			cur = registry[cur].parent
			set = append(set, cur)
		}
		dispatchSets[t] = set
	}

	byGoType = map[reflect.Type]Type{
		reflect.TypeFor[Event]():               TypeEvent,
		reflect.TypeFor[ExceptionEvent]():      TypeException,
		reflect.TypeFor[ConnectionEvent]():     TypeConnection,
		reflect.TypeFor[DisconnectEvent]():     TypeDisconnect,
		reflect.TypeFor[HelloEvent]():          TypeHello,
		reflect.TypeFor[RatelimitEvent]():      TypeRatelimit,
		reflect.TypeFor[AuthenticatedEvent]():  TypeAuthenticated,
		reflect.TypeFor[MessageEvent]():        TypeMessage,
		reflect.TypeFor[MessageCreateEvent]():  TypeMessageCreate,
		reflect.TypeFor[UserEvent]():           TypeUser,
		reflect.TypeFor[UserUpdateEvent]():     TypeUserUpdate,
		reflect.TypeFor[PresenceUpdateEvent](): TypePresenceUpdate,
	}
}

// Types returns every registered type in ordinal order.
func Types() []Type {
	out := make([]Type, numTypes)
	for i := range out {
		out[i] = Type(i)
	}
	return out
}

// Valid reports whether t is a registered type.
func (t Type) Valid() bool {
	return t < numTypes
}

// Bit returns the unique bit identifying t.
func (t Type) Bit() Mask {
	return Mask(1) << t
}

// Abstract reports whether t only exists to group other types.
func (t Type) Abstract() bool {
	return t.Valid() && registry[t].abstract
}

// DispatchSet returns t followed by its ancestors. The slice is shared and
// must not be modified.
func (t Type) DispatchSet() []Type {
	if !t.Valid() {
		return nil
	}
	return dispatchSets[t]
}

// Is reports whether t is other or descends from it.
func (t Type) Is(other Type) bool {
	for _, a := range t.DispatchSet() {
		if a == other {
			return true
		}
	}
	return false
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
	return registry[t].name
}

// MaskOf returns the union of the dispatch sets of types.
func MaskOf(types ...Type) Mask {
	var m Mask
	for _, t := range types {
		for _, a := range t.DispatchSet() {
			m |= a.Bit()
		}
	}
	return m
}

// Has reports whether every bit of t is set in m.
func (m Mask) Has(t Type) bool {
	return t.Valid() && m&t.Bit() == t.Bit()
}

// Len returns the number of types in m.
func (m Mask) Len() int {
	return bits.OnesCount64(uint64(m))
}

// TypeFor returns the Type registered for the Go type E. Abstract kinds are
// registered by their interface type.
func TypeFor[E Event]() (Type, bool) {
	return LookupGoType(reflect.TypeFor[E]())
}

// LookupGoType returns the Type registered for rt.
func LookupGoType(rt reflect.Type) (Type, bool) {
	t, ok := byGoType[rt]
	return t, ok
}

// LookupGoTypeOf returns the Type registered for the dynamic type of ev.
func LookupGoTypeOf(ev Event) (Type, bool) {
	return LookupGoType(reflect.TypeOf(ev))
}
