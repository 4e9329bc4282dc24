// Package triggers resolves a dispatched action against the registered
// callbacks: shape matching, override precedence, constraint checks and
// dialogue branch selection.
package triggers

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/nathoo/rulecore/engine/constraints"
	"github.com/nathoo/rulecore/engine/dialogue"
	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// MatchKind enumerates trigger argument matchers.
type MatchKind int

const (
	MatchAny       MatchKind = iota
	MatchInstance            // the argument is entity ID
	MatchClass               // the argument carries Class
	MatchLocation            // the argument is in room ID (or is room ID)
	MatchActorRoom           // the argument is in the actor's room
)

// ArgMatcher tests one known argument of a triggered action.
type ArgMatcher struct {
	Kind  MatchKind
	ID    types.EntityID
	Class string
}

func Any() ArgMatcher                         { return ArgMatcher{Kind: MatchAny} }
func Instance(id types.EntityID) ArgMatcher   { return ArgMatcher{Kind: MatchInstance, ID: id} }
func Class(class string) ArgMatcher           { return ArgMatcher{Kind: MatchClass, Class: class} }
func Location(room types.EntityID) ArgMatcher { return ArgMatcher{Kind: MatchLocation, ID: room} }
func ActorRoom() ArgMatcher                   { return ArgMatcher{Kind: MatchActorRoom} }

// Matches reports whether v satisfies the matcher.
func (m ArgMatcher) Matches(w world.Store, actor types.EntityID, v types.Value) bool {
	if m.Kind == MatchAny {
		return true
	}
	id, ok := v.(types.EntityID)
	if !ok || !w.Exists(id) {
		return false
	}
	switch m.Kind {
	case MatchInstance:
		return id == m.ID
	case MatchClass:
		return w.HasClass(id, m.Class)
	case MatchLocation:
		return w.RoomOf(id) == m.ID
	case MatchActorRoom:
		room := w.RoomOf(actor)
		return room != "" && w.RoomOf(id) == room
	default:
		return false
	}
}

// Spec is a callback's trigger shape. Args[i] tests known argument i;
// known arguments past len(Args) are unconstrained.
type Spec struct {
	Func     string
	Args     []ArgMatcher
	Override bool
}

// Callback is an authored rule.
type Callback struct {
	Name        string
	Trigger     Spec
	Constraints []constraints.Binding
	Actions     []effects.Effect

	// Dialogue, when set on a speech trigger, selects a branch whose
	// effects run after Actions.
	Dialogue *dialogue.Triggers
	// Listener is the character a say/shout callback speaks for; tells use
	// their target instead.
	Listener types.EntityID
}

// ConfigError reports a malformed callback. It is surfaced to whoever
// registered the callback, never to players.
type ConfigError struct {
	Callback string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("callback %q: %v", e.Callback, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Validate checks a callback against a vocabulary.
func Validate(cb Callback, vocab Vocabulary) error {
	var errs []error
	if cb.Name == "" {
		errs = append(errs, errors.New("missing name"))
	}
	slot, ok := vocab.Func(cb.Trigger.Func)
	if !ok {
		errs = append(errs, fmt.Errorf("unknown trigger func %q", cb.Trigger.Func))
	} else {
		if len(cb.Trigger.Args) > len(slot.Positions) {
			errs = append(errs, fmt.Errorf("trigger %s has %d arguments, %d matchers given",
				cb.Trigger.Func, len(slot.Positions), len(cb.Trigger.Args)))
		}
		if cb.Dialogue != nil && slot.Speech == "" {
			errs = append(errs, fmt.Errorf("dialogue on non-speech trigger %s", cb.Trigger.Func))
		}
		for _, verb := range slices.Sorted(maps.Keys(vocab)) {
			for _, s := range vocab[verb] {
				if s.Func != cb.Trigger.Func {
					continue
				}
				if err := s.Validate(); err != nil {
					errs = append(errs, fmt.Errorf("verb %s: %w", verb, err))
				}
			}
		}
	}
	for i, m := range cb.Trigger.Args {
		switch m.Kind {
		case MatchAny, MatchActorRoom:
		case MatchInstance, MatchLocation:
			if m.ID == "" {
				errs = append(errs, fmt.Errorf("trigger arg %d: missing entity", i))
			}
		case MatchClass:
			if m.Class == "" {
				errs = append(errs, fmt.Errorf("trigger arg %d: missing class", i))
			}
		default:
			errs = append(errs, fmt.Errorf("trigger arg %d: unknown matcher %d", i, m.Kind))
		}
	}
	for i, b := range cb.Constraints {
		if err := constraints.Validate(b); err != nil {
			errs = append(errs, fmt.Errorf("constraint %d: %w", i, err))
		}
	}
	for i, e := range cb.Actions {
		if err := effects.Validate(e); err != nil {
			errs = append(errs, fmt.Errorf("action %d: %w", i, err))
		}
	}
	if cb.Dialogue != nil {
		branches := cb.Dialogue.Match
		if cb.Dialogue.Default != nil {
			branches = append(branches[:len(branches):len(branches)], *cb.Dialogue.Default)
		}
		for _, b := range branches {
			for i, e := range b.Effects {
				if err := effects.Validate(e); err != nil {
					errs = append(errs, fmt.Errorf("branch %q action %d: %w", b.Name, i, err))
				}
			}
		}
	}
	if len(errs) > 0 {
		return &ConfigError{Callback: cb.Name, Err: errors.Join(errs...)}
	}
	return nil
}
