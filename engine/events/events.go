// Package events builds the trace events emitted while a dispatch resolves.
// Events describe what happened; they never drive further evaluation.
package events

import "github.com/nathoo/rulecore/types"

// Event types.
const (
	PropChanged     = "prop_changed"
	VariableChanged = "variable_changed"
	EntityMoved     = "entity_moved"
	EntityCreated   = "entity_created"
	EntityDeleted   = "entity_deleted"
	MessageSent     = "message_sent"
	Broadcast       = "broadcast"
	FollowChanged   = "follow_changed"

	CallbackExecuted = "callback_executed"
	CallbackBlocked  = "callback_blocked"
	CallbackSkipped  = "callback_skipped"
	CallbackDisabled = "callback_disabled"
	DialogueMatched  = "dialogue_matched"
	ModelReplied     = "model_replied"
	DispatchAborted  = "dispatch_aborted"
)

func newEvent(kind string, data map[string]any) types.Event {
	return types.Event{Type: kind, Data: data}
}

func Prop(id types.EntityID, key string, value any) types.Event {
	return newEvent(PropChanged, map[string]any{"entity": id, "prop": key, "value": value})
}

func Variable(name string, value int) types.Event {
	return newEvent(VariableChanged, map[string]any{"variable": name, "value": value})
}

func Moved(id, dest types.EntityID) types.Event {
	return newEvent(EntityMoved, map[string]any{"entity": id, "dest": dest})
}

func Created(id types.EntityID, class string, dest types.EntityID) types.Event {
	return newEvent(EntityCreated, map[string]any{"entity": id, "class": class, "dest": dest})
}

func Deleted(id types.EntityID) types.Event {
	return newEvent(EntityDeleted, map[string]any{"entity": id})
}

func Message(to types.EntityID, text string) types.Event {
	return newEvent(MessageSent, map[string]any{"to": to, "text": text})
}

func Broadcasted(room types.EntityID, text string) types.Event {
	return newEvent(Broadcast, map[string]any{"room": room, "text": text})
}

func Follow(follower, leader types.EntityID) types.Event {
	return newEvent(FollowChanged, map[string]any{"follower": follower, "leader": leader})
}

// Executed records a callback whose effects were applied. Branch is the
// dialogue branch that fired, if any.
func Executed(callback, branch string) types.Event {
	data := map[string]any{"callback": callback}
	if branch != "" {
		data["branch"] = branch
	}
	return newEvent(CallbackExecuted, data)
}

// Blocked records an override that matched but failed its constraints.
func Blocked(callback, reason string) types.Event {
	return newEvent(CallbackBlocked, map[string]any{"callback": callback, "reason": reason})
}

// Skipped records a default callback that matched but failed its constraints.
func Skipped(callback, reason string) types.Event {
	return newEvent(CallbackSkipped, map[string]any{"callback": callback, "reason": reason})
}

func Disabled(callback string, err error) types.Event {
	return newEvent(CallbackDisabled, map[string]any{"callback": callback, "error": err.Error()})
}

func Matched(callback string, phrase string, score float64) types.Event {
	return newEvent(DialogueMatched, map[string]any{"callback": callback, "phrase": phrase, "score": score})
}

func Replied(speaker types.EntityID, text string) types.Event {
	return newEvent(ModelReplied, map[string]any{"speaker": speaker, "text": text})
}

func Aborted(callback string, err error) types.Event {
	return newEvent(DispatchAborted, map[string]any{"callback": callback, "error": err.Error()})
}

// Filter returns the events of the given type, in order.
func Filter(evs []types.Event, kind string) []types.Event {
	var out []types.Event
	for _, e := range evs {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}
