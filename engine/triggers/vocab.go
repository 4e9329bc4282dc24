package triggers

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/nathoo/rulecore/engine/dialogue"
	"github.com/nathoo/rulecore/types"
)

// Slot maps one verb onto one trigger func. Positions index into the full
// argument list [actor, arguments...] and become the callback's known
// arguments in order.
type Slot struct {
	Func      string
	Positions []int
	Speech    dialogue.Speech // set for dialogue funcs; text is the last position
}

// Vocabulary maps action verbs to the trigger funcs they can fire.
type Vocabulary map[string][]Slot

// DefaultVocabulary returns the stock verb vocabulary.
//
// Argument layouts: go [dest, origin]; get [object, source];
// put [object, container]; give/steal [object, other]; lock/unlock
// [target, key]; tell [target, text]; say/shout/act_failed [text]; all
// others [object].
func DefaultVocabulary() Vocabulary {
	unary := func(fn string) []Slot { return []Slot{{Func: fn, Positions: []int{0, 1}}} }
	return Vocabulary{
		"go": {
			{Func: "moves_to", Positions: []int{0, 1}},
			{Func: "moves_from", Positions: []int{0, 2}},
		},
		"get":     {{Func: "gets", Positions: []int{0, 1, 2}}},
		"put":     {{Func: "puts", Positions: []int{0, 1, 2}}},
		"give":    {{Func: "gives", Positions: []int{0, 1, 2}}},
		"steal":   {{Func: "steals", Positions: []int{0, 1, 2}}},
		"lock":    {{Func: "locks", Positions: []int{0, 1, 2}}},
		"unlock":  {{Func: "unlocks", Positions: []int{0, 1, 2}}},
		"use":     {{Func: "uses", Positions: []int{0, 1, 2}}},
		"drop":    unary("drops"),
		"hit":     unary("hits"),
		"miss":    unary("misses"),
		"eat":     unary("eats"),
		"drink":   unary("drinks"),
		"examine": unary("examines"),
		"wear":    unary("wears"),
		"wield":   unary("wields"),
		"remove":  unary("removes"),
		"follow":  unary("follows"),

		"tell":       {{Func: "tells", Positions: []int{0, 1, 2}, Speech: dialogue.Tell}},
		"say":        {{Func: "says", Positions: []int{0, 1}, Speech: dialogue.Say}},
		"shout":      {{Func: "shouts", Positions: []int{0, 1}, Speech: dialogue.Shout}},
		"act_failed": {{Func: "act_failed", Positions: []int{0, 1}, Speech: dialogue.ActFailed}},
	}
}

// Merge adds extra verbs, replacing existing entries for the same verb.
func (v Vocabulary) Merge(extra Vocabulary) {
	maps.Copy(v, extra)
}

// minPositions is how many known arguments a slot's func needs: the actor
// and text for speech, plus the listener for tells.
func (s Slot) minPositions() int {
	switch s.Speech {
	case dialogue.Tell:
		return 3
	case "":
		return 1
	default:
		return 2
	}
}

// Validate reports a slot that could not carry its func's arguments.
func (s Slot) Validate() error {
	if s.Func == "" {
		return errors.New("missing func")
	}
	for _, p := range s.Positions {
		if p < 0 {
			return fmt.Errorf("%s: negative position %d", s.Func, p)
		}
	}
	if n := s.minPositions(); len(s.Positions) < n {
		return fmt.Errorf("%s: %s speech needs at least %d positions, got %d", s.Func, s.Speech, n, len(s.Positions))
	}
	return nil
}

// Validate checks every slot in the vocabulary.
func (v Vocabulary) Validate() error {
	var errs []error
	for _, verb := range slices.Sorted(maps.Keys(v)) {
		for i, s := range v[verb] {
			if err := s.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("verb %s[%d]: %w", verb, i, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Slots returns the slots a verb maps to.
func (v Vocabulary) Slots(verb string) []Slot {
	return v[verb]
}

// Func returns the widest slot declared for a trigger func.
func (v Vocabulary) Func(fn string) (Slot, bool) {
	var best Slot
	found := false
	for _, verb := range slices.Sorted(maps.Keys(v)) {
		for _, s := range v[verb] {
			if s.Func == fn && (!found || len(s.Positions) > len(best.Positions)) {
				best, found = s, true
			}
		}
	}
	return best, found
}

// pick returns the known arguments for a slot, or false when the action
// does not carry enough arguments.
func (s Slot) pick(full []types.Value) ([]types.Value, bool) {
	out := make([]types.Value, 0, len(s.Positions))
	for _, p := range s.Positions {
		if p < 0 || p >= len(full) {
			return nil, false
		}
		out = append(out, full[p])
	}
	return out, true
}
