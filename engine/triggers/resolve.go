package triggers

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/nathoo/rulecore/engine/args"
	"github.com/nathoo/rulecore/engine/constraints"
	"github.com/nathoo/rulecore/engine/dialogue"
	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/events"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// State is how far an action got through resolution.
type State int

const (
	NotTriggered       State = iota // no callback's shape matched
	ShapeMatched                    // a shape matched; constraints not yet checked
	ConstraintsChecked              // constraints passed but nothing fired
	Executed                        // a callback's effects were applied
	Suppressed                      // an override matched and vetoed the action
	Failed                          // every matching default failed its constraints
)

var stateNames = [...]string{
	NotTriggered:       "not_triggered",
	ShapeMatched:       "shape_matched",
	ConstraintsChecked: "constraints_checked",
	Executed:           "executed",
	Suppressed:         "suppressed",
	Failed:             "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is the result of resolving one action.
type Outcome struct {
	State    State
	Callback string // executed or vetoing callback
	Branch   string // dialogue branch that fired, if any
	Reason   string // first constraint failure text, if any
	Events   []types.Event
}

// ModelLookup returns the dialogue model attached to an entity, or nil.
type ModelLookup func(types.EntityID) dialogue.Model

// Resolver evaluates actions against a registry. It holds no locks; callers
// serialize Resolve calls and own any rollback of world state.
type Resolver struct {
	Registry   *Registry
	Vocabulary Vocabulary
	Thresholds dialogue.Thresholds
	Models     ModelLookup
	Logger     *zap.Logger
}

// Resolve runs one resolution pass for action. Effects are applied to w and
// vars as the winning callback executes. A returned error means the pass
// aborted part way; w and vars may hold partial effects.
func (r *Resolver) Resolve(ctx context.Context, w world.Store, vars types.Variables, action types.Action) (Outcome, error) {
	slots := r.Vocabulary.Slots(action.Name)
	if len(slots) == 0 {
		return Outcome{State: NotTriggered}, nil
	}
	full := append([]types.Value{action.Actor}, action.Arguments...)
	out := Outcome{State: NotTriggered}

	// Overrides first: the first whose shape matches decides the action.
	for _, c := range r.candidates(w, action.Actor, slots, full, true) {
		res, err := r.run(ctx, w, vars, action.Actor, c, &out)
		if err != nil {
			return out, err
		}
		switch res {
		case runDisabled:
			continue
		case runExecuted:
			return out, nil
		default:
			out.State = Suppressed
			out.Callback = c.entry.cb.Name
			out.Events = append(out.Events, events.Blocked(c.entry.cb.Name, out.Reason))
			return out, nil
		}
	}

	for _, c := range r.candidates(w, action.Actor, slots, full, false) {
		res, err := r.run(ctx, w, vars, action.Actor, c, &out)
		if err != nil {
			return out, err
		}
		switch res {
		case runExecuted:
			return out, nil
		case runFailed:
			out.State = Failed
		case runSilent:
			if out.State != Failed {
				out.State = ConstraintsChecked
			}
		}
	}
	return out, nil
}

type candidate struct {
	entry *entry
	slot  Slot
	known []types.Value
}

// candidates returns the enabled callbacks of one priority whose shape
// matches, in registration order.
func (r *Resolver) candidates(w world.Store, actor types.EntityID, slots []Slot, full []types.Value, override bool) []candidate {
	var out []candidate
	for _, e := range r.Registry.entries {
		if e.disabled != nil || e.cb.Trigger.Override != override {
			continue
		}
		for _, s := range slots {
			if s.Func != e.cb.Trigger.Func {
				continue
			}
			known, ok := s.pick(full)
			if !ok || !shapeMatches(w, actor, e.cb.Trigger, known) {
				continue
			}
			out = append(out, candidate{entry: e, slot: s, known: known})
			break
		}
	}
	return out
}

func shapeMatches(w world.Store, actor types.EntityID, spec Spec, known []types.Value) bool {
	if len(spec.Args) > len(known) {
		return false
	}
	for i, m := range spec.Args {
		if !m.Matches(w, actor, known[i]) {
			return false
		}
	}
	return true
}

type runResult int

const (
	runExecuted runResult = iota
	runFailed             // constraints failed
	runSilent             // constraints passed, no dialogue response
	runDisabled           // configuration error; callback disabled
)

// run checks one candidate's constraints and, if they pass, applies its
// effects.
func (r *Resolver) run(ctx context.Context, w world.Store, vars types.Variables, actor types.EntityID, c candidate, out *Outcome) (runResult, error) {
	cb := c.entry.cb
	log := r.logger().With(zap.String("callback", cb.Name))
	out.State = max(out.State, ShapeMatched)
	env := &args.Env{Known: slices.Clone(c.known), World: w, Cursors: c.entry.cursors}

	// The vocabulary is mutable after registration.
	if err := c.slot.Validate(); err != nil {
		r.disable(c.entry, &ConfigError{Callback: cb.Name, Err: err}, out)
		return runDisabled, nil
	}

	ok, reason, err := constraints.CheckAll(cb.Constraints, env, actor)
	if err != nil {
		var kindErr *args.KindError
		if errors.As(err, &kindErr) {
			r.disable(c.entry, err, out)
			return runDisabled, nil
		}
		out.Events = append(out.Events, events.Aborted(cb.Name, err))
		return runFailed, err
	}
	if !ok {
		log.Debug("constraints failed", zap.String("reason", reason))
		if out.Reason == "" {
			out.Reason = reason
		}
		if !cb.Trigger.Override {
			out.Events = append(out.Events, events.Skipped(cb.Name, reason))
		}
		env.Discard()
		return runFailed, nil
	}

	effs := cb.Actions
	branch := ""
	var reply string
	if c.slot.Speech != "" && cb.Dialogue != nil {
		text, _ := c.known[len(c.known)-1].(string)
		listener := cb.Listener
		if c.slot.Speech == dialogue.Tell {
			listener, _ = c.known[1].(types.EntityID)
		}
		model := r.model(listener)
		threshold := r.Thresholds.For(c.slot.Speech, model != nil)

		b, m, matched := dialogue.Select(text, cb.Dialogue, threshold)
		switch {
		case matched:
			effs = append(slices.Clip(effs), b.Effects...)
			branch = b.Name
			if m.Index >= 0 {
				out.Events = append(out.Events, events.Matched(cb.Name, m.Phrase, m.Score))
			}
		case model != nil:
			reply = r.ask(ctx, w, model, actor, listener, c.slot.Speech, text, log)
			if reply == "" {
				env.Discard()
				return runSilent, nil
			}
			out.Events = append(out.Events, events.Replied(listener, reply))
			reply = fmt.Sprintf("%s says, \"%s\"", capitalize(w.Name(listener)), reply)
		default:
			env.Discard()
			return runSilent, nil
		}
	}

	ectx := &effects.Context{World: w, Vars: vars, Env: env, Actor: actor}
	if err := effects.ApplyAll(effs, ectx); err != nil {
		out.Events = append(out.Events, ectx.Events...)
		out.Events = append(out.Events, events.Aborted(cb.Name, err))
		var kindErr *args.KindError
		if errors.As(err, &kindErr) {
			r.disable(c.entry, err, out)
		}
		return runFailed, fmt.Errorf("callback %q: %w", cb.Name, err)
	}
	if reply != "" {
		w.Send(actor, reply)
		ectx.Events = append(ectx.Events, events.Message(actor, reply))
	}
	env.Commit()

	out.Events = append(out.Events, ectx.Events...)
	out.Events = append(out.Events, events.Executed(cb.Name, branch))
	out.State = Executed
	out.Callback = cb.Name
	out.Branch = branch
	log.Debug("callback executed", zap.String("branch", branch), zap.Int("effects", len(effs)))
	return runExecuted, nil
}

// ask forwards an unmatched utterance to the listener's model. Model
// failures are logged and treated as silence.
func (r *Resolver) ask(ctx context.Context, w world.Store, m dialogue.Model, speaker, listener types.EntityID,
	speech dialogue.Speech, text string, log *zap.Logger) string {
	persona, _ := world.PropOr(w, listener, "persona", "").(string)
	obs := dialogue.Observation{
		Speaker:      speaker,
		SpeakerName:  w.Name(speaker),
		Listener:     listener,
		ListenerName: w.Name(listener),
		Room:         w.Name(w.RoomOf(listener)),
		Speech:       speech,
		Text:         text,
		Persona:      persona,
	}
	reply, err := dialogue.Ask(ctx, m, obs)
	if err != nil {
		log.Warn("dialogue model failed", zap.String("listener", string(listener)), zap.Error(err))
		return ""
	}
	return reply
}

func (r *Resolver) disable(e *entry, err error, out *Outcome) {
	r.logger().Error("disabling callback", zap.String("callback", e.cb.Name), zap.Error(err))
	r.Registry.Disable(e.cb.Name, err)
	out.Events = append(out.Events, events.Disabled(e.cb.Name, err))
}

func (r *Resolver) model(id types.EntityID) dialogue.Model {
	if r.Models == nil || id == "" {
		return nil
	}
	return r.Models(id)
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
