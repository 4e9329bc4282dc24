// Package types defines the shared data structures for the rulecore engine.
// It holds type definitions only.
package types

// EntityID names a node in the world graph (room, object or character).
type EntityID string

// Value is a resolved argument: an EntityID, a string literal, a number or a bool.
type Value = any

// Action is one executed game verb. Arguments are positional and opaque to
// the engine; the actor is kept separately and becomes known argument 0
// during trigger extraction.
type Action struct {
	Name      string
	Actor     EntityID
	Arguments []Value
}

// Variables holds script-scoped counters shared by every callback of one
// world instance. Only effects mutate it.
type Variables map[string]int

// Message is a line of text delivered to one entity.
type Message struct {
	To   EntityID
	Text string
}

// Event is emitted while resolving a dispatch, for tracing.
type Event struct {
	Type string
	Data map[string]any
}

// DispatchResult is the outcome of a single dispatched action.
type DispatchResult struct {
	Executed bool
	Callback string // name of the executed (or vetoing) callback
	Blocked  bool   // an override callback matched but its constraints failed
	Reason   string // constraint failure text sent to the actor, if any
	Events   []Event
}
