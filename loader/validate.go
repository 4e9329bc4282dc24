package loader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nathoo/rulecore/engine/args"
	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/triggers"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// ValidationError collects all validation errors.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

type validator struct {
	d        *defs
	nodes    map[types.EntityID]nodeDef
	classes  map[string]bool
	vocab    triggers.Vocabulary
	errors   []string
	warnings []string
}

func (v *validator) errorf(format string, a ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, a...))
}

func (v *validator) warnf(format string, a ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, a...))
}

// validate checks the compiled defs for referential integrity and returns
// non-fatal warnings.
func validate(d *defs) ([]string, error) {
	v := &validator{
		d:       d,
		nodes:   map[types.EntityID]nodeDef{},
		classes: map[string]bool{},
		vocab:   triggers.DefaultVocabulary(),
	}
	v.vocab.Merge(d.Game.Verbs)
	if err := d.Game.Verbs.Validate(); err != nil {
		v.errorf("Game.verbs: %v", err)
	}

	for _, n := range d.Nodes {
		if _, dup := v.nodes[n.Node.ID]; dup {
			v.errorf("duplicate id %q", n.Node.ID)
			continue
		}
		v.nodes[n.Node.ID] = n
	}
	for _, t := range d.Templates {
		if v.classes[t.Class] {
			v.errorf("duplicate template %q", t.Class)
		}
		v.classes[t.Class] = true
	}

	v.game()
	v.placement()
	v.paths()
	for _, t := range d.Templates {
		for _, c := range t.Contains {
			if !v.classes[c] {
				v.errorf("template %q contains undefined template %q", t.Class, c)
			}
		}
	}
	names := map[string]bool{}
	for _, cb := range d.Callbacks {
		if names[cb.Name] {
			v.errorf("duplicate callback %q", cb.Name)
		}
		names[cb.Name] = true
		v.callback(cb)
	}

	if len(v.errors) > 0 {
		return v.warnings, &ValidationError{Errors: v.errors}
	}
	return v.warnings, nil
}

func (v *validator) game() {
	g := v.d.Game
	if g.Title == "" {
		v.errorf("Game.title is required")
	}
	if g.Player == "" {
		v.errorf("Game.player is required")
		return
	}
	n, ok := v.nodes[g.Player]
	switch {
	case !ok:
		v.errorf("player %q is not defined", g.Player)
	case n.Kind != kindCharacter:
		v.errorf("player %q must be a Character", g.Player)
	case n.In == "":
		v.errorf("player %q has no starting location", g.Player)
	}
}

func (v *validator) placement() {
	for _, n := range v.d.Nodes {
		if n.Kind == kindRoom {
			continue
		}
		if slices.Contains(n.Node.Classes, world.ClassRoom) {
			v.errorf("%q uses the class %q, which is reserved for rooms", n.Node.ID, world.ClassRoom)
		}
		if n.In == "" {
			v.warnf("%q is not placed anywhere", n.Node.ID)
			continue
		}
		if _, ok := v.nodes[n.In]; !ok {
			v.errorf("%q is in undefined entity %q", n.Node.ID, n.In)
		}
	}
	// Containment must bottom out in a room.
	for _, n := range v.d.Nodes {
		seen := map[types.EntityID]bool{}
		for id := n.Node.ID; id != ""; id = v.nodes[id].In {
			if seen[id] {
				v.errorf("%q is inside itself", n.Node.ID)
				break
			}
			seen[id] = true
		}
	}
}

func (v *validator) paths() {
	for _, p := range v.d.Paths {
		for _, end := range []types.EntityID{p.From, p.To} {
			if n, ok := v.nodes[end]; !ok || n.Kind != kindRoom {
				v.errorf("path %s -> %s: %q is not a room", p.From, p.To, end)
			}
		}
		if p.Key != "" {
			if _, ok := v.nodes[p.Key]; !ok {
				v.errorf("path %s -> %s: key %q is not defined", p.From, p.To, p.Key)
			}
		}
	}
}

func (v *validator) callback(cb triggers.Callback) {
	if err := triggers.Validate(cb, v.vocab); err != nil {
		v.errorf("%v", err)
	}
	for i, m := range cb.Trigger.Args {
		switch m.Kind {
		case triggers.MatchInstance:
			v.entity(cb.Name, fmt.Sprintf("trigger arg %d", i+1), m.ID)
		case triggers.MatchLocation:
			if n, ok := v.nodes[m.ID]; !ok || n.Kind != kindRoom {
				v.errorf("callback %q trigger arg %d: %q is not a room", cb.Name, i+1, m.ID)
			}
		}
	}
	if cb.Listener != "" {
		v.entity(cb.Name, "listener", cb.Listener)
	}
	for _, b := range cb.Constraints {
		for _, d := range b.Args {
			v.descriptor(cb.Name, d)
		}
	}
	acts := cb.Actions
	if cb.Dialogue != nil {
		for _, b := range cb.Dialogue.Match {
			if len(b.Phrases) == 0 {
				v.errorf("callback %q branch %q has no phrases", cb.Name, b.Name)
			}
			acts = append(acts[:len(acts):len(acts)], b.Effects...)
		}
		if cb.Dialogue.Default != nil {
			acts = append(acts[:len(acts):len(acts)], cb.Dialogue.Default.Effects...)
		}
	}
	for _, e := range acts {
		if c, ok := e.(effects.Create); ok && !v.classes[c.Class] {
			v.errorf("callback %q creates undefined template %q", cb.Name, c.Class)
		}
		for _, d := range effectDescriptors(e) {
			v.descriptor(cb.Name, d)
		}
	}
	if len(cb.Actions) == 0 && cb.Dialogue == nil && !cb.Trigger.Override {
		v.warnf("callback %q does nothing", cb.Name)
	}
}

// descriptor checks that entity literals name defined entities.
func (v *validator) descriptor(callback string, d args.Descriptor) {
	switch d := d.(type) {
	case args.Literal:
		if id, ok := d.Value.(types.EntityID); ok {
			v.entity(callback, "Entity", id)
		}
	case args.LocationOf:
		v.descriptor(callback, d.Of)
	case args.Cycle:
		for _, item := range d.Items {
			if id, ok := item.(types.EntityID); ok {
				v.entity(callback, "Cycle "+d.Key, id)
			}
		}
	}
}

func (v *validator) entity(callback, where string, id types.EntityID) {
	if _, ok := v.nodes[id]; !ok {
		v.errorf("callback %q %s references undefined entity %q", callback, where, id)
	}
}

// effectDescriptors lists every descriptor an effect reads.
func effectDescriptors(e effects.Effect) []args.Descriptor {
	var ds []args.Descriptor
	switch e := e.(type) {
	case effects.SetAttribute:
		ds = []args.Descriptor{e.Target, e.Value}
	case effects.IncrementAttribute:
		ds = []args.Descriptor{e.Target}
	case effects.DecrementAttribute:
		ds = []args.Descriptor{e.Target}
	case effects.Move:
		ds = []args.Descriptor{e.Entity, e.Dest}
	case effects.Create:
		ds = []args.Descriptor{e.Dest}
	case effects.Delete:
		ds = []args.Descriptor{e.Entity}
	case effects.Tell:
		ds = []args.Descriptor{e.Target, e.Text}
	case effects.Broadcast:
		ds = []args.Descriptor{e.Room, e.Text}
	case effects.Follow:
		ds = []args.Descriptor{e.Follower, e.Leader}
	}
	out := ds[:0]
	for _, d := range ds {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}
