// Package effects implements the action interpreter: the closed set of state
// mutations and messages a callback applies when it fires. Every effect is
// one operation; effects in a list run strictly in order.
package effects

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nathoo/rulecore/engine/args"
	"github.com/nathoo/rulecore/engine/events"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// maxCreated bounds template expansion so a self-containing template cannot
// loop forever.
const maxCreated = 256

// Context is the mutable state one callback execution works against.
type Context struct {
	World  world.Store
	Vars   types.Variables
	Env    *args.Env
	Actor  types.EntityID
	Events []types.Event
}

// ApplyAll applies effects in order and stops at the first error. Effects
// before the failing one are not undone here; callers that need atomicity
// checkpoint the world first.
func ApplyAll(effs []Effect, ctx *Context) error {
	for i, e := range effs {
		if err := Apply(e, ctx); err != nil {
			return fmt.Errorf("effect %d (%s): %w", i, e.Op(), err)
		}
	}
	return nil
}

// Apply applies a single effect.
func Apply(e Effect, ctx *Context) error {
	w := ctx.World
	switch e := e.(type) {
	case SetAttribute:
		id, err := ctx.Env.ExtractEntity(e.Target)
		if err != nil {
			return err
		}
		v, err := ctx.Env.Extract(e.Value)
		if err != nil {
			return err
		}
		if err := w.SetProp(id, e.Key, v); err != nil {
			return err
		}
		ctx.emit(events.Prop(id, e.Key, v))

	case IncrementAttribute:
		return addAttribute(ctx, e.Target, e.Key, e.By)

	case DecrementAttribute:
		return addAttribute(ctx, e.Target, e.Key, -e.By)

	case SetVariable:
		if ctx.Vars == nil {
			return errNoVariables
		}
		ctx.Vars[e.Name] = e.Value
		ctx.emit(events.Variable(e.Name, e.Value))

	case IncrementVariable:
		return addVariable(ctx, e.Name, e.By)

	case DecrementVariable:
		return addVariable(ctx, e.Name, -e.By)

	case Move:
		id, err := ctx.Env.ExtractEntity(e.Entity)
		if err != nil {
			return err
		}
		dest, err := ctx.Env.ExtractEntity(e.Dest)
		if err != nil {
			return err
		}
		if err := w.Move(id, dest); err != nil {
			return err
		}
		ctx.emit(events.Moved(id, dest))

	case Create:
		return create(ctx, e)

	case Delete:
		id, err := ctx.Env.ExtractEntity(e.Entity)
		if err != nil {
			return err
		}
		if err := w.Delete(id); err != nil {
			return err
		}
		ctx.emit(events.Deleted(id))

	case Tell:
		to, err := ctx.Env.ExtractEntity(e.Target)
		if err != nil {
			return err
		}
		text, err := ctx.text(e.Text)
		if err != nil {
			return err
		}
		w.Send(to, text)
		ctx.emit(events.Message(to, text))

	case Broadcast:
		room := w.RoomOf(ctx.Actor)
		if e.Room != nil {
			r, err := ctx.Env.ExtractEntity(e.Room)
			if err != nil {
				return err
			}
			room = r
		}
		if room == "" {
			return fmt.Errorf("broadcast: %s is not in any room", ctx.Actor)
		}
		text, err := ctx.text(e.Text)
		if err != nil {
			return err
		}
		var exclude []types.EntityID
		if e.ExcludeActor {
			exclude = append(exclude, ctx.Actor)
		}
		w.Broadcast(room, text, exclude...)
		ctx.emit(events.Broadcasted(room, text))

	case Follow:
		follower, err := ctx.Env.ExtractEntity(e.Follower)
		if err != nil {
			return err
		}
		var leader types.EntityID
		if e.Leader != nil {
			if leader, err = ctx.Env.ExtractEntity(e.Leader); err != nil {
				return err
			}
		}
		if err := w.SetFollow(follower, leader); err != nil {
			return err
		}
		ctx.emit(events.Follow(follower, leader))

	default:
		return fmt.Errorf("unknown effect %T", e)
	}
	return nil
}

var errNoVariables = errors.New("no variables in context")

func addAttribute(ctx *Context, target args.Descriptor, key string, delta int) error {
	id, err := ctx.Env.ExtractEntity(target)
	if err != nil {
		return err
	}
	cur := 0
	if v, ok := ctx.World.Prop(id, key); ok {
		n, isNum := world.ToInt(v)
		if !isNum {
			return fmt.Errorf("%s.%s is %T, not a number", id, key, v)
		}
		cur = n
	}
	if err := ctx.World.SetProp(id, key, cur+delta); err != nil {
		return err
	}
	ctx.emit(events.Prop(id, key, cur+delta))
	return nil
}

func addVariable(ctx *Context, name string, delta int) error {
	if ctx.Vars == nil {
		return errNoVariables
	}
	ctx.Vars[name] += delta
	ctx.emit(events.Variable(name, ctx.Vars[name]))
	return nil
}

// create instantiates e.Class and every template-declared content below it,
// then moves the root into the destination. The new entity becomes the next
// known argument so later effects can refer to it.
func create(ctx *Context, e Create) error {
	w := ctx.World
	dest, err := ctx.Env.ExtractEntity(e.Dest)
	if err != nil {
		return err
	}
	root, contents, err := w.Instantiate(e.Class)
	if err != nil {
		return err
	}
	type pending struct {
		parent  types.EntityID
		classes []string
	}
	queue := []pending{{parent: root, classes: contents}}
	created := 1
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, class := range p.classes {
			if created >= maxCreated {
				return fmt.Errorf("creating %s: template expansion exceeds %d entities", e.Class, maxCreated)
			}
			id, sub, err := w.Instantiate(class)
			if err != nil {
				return fmt.Errorf("creating %s: %w", e.Class, err)
			}
			created++
			if err := w.Move(id, p.parent); err != nil {
				return err
			}
			ctx.emit(events.Created(id, class, p.parent))
			if len(sub) > 0 {
				queue = append(queue, pending{parent: id, classes: sub})
			}
		}
	}
	if err := w.Move(root, dest); err != nil {
		return err
	}
	ctx.emit(events.Created(root, e.Class, dest))
	ctx.Env.Known = append(ctx.Env.Known, root)
	return nil
}

func (ctx *Context) emit(e types.Event) {
	ctx.Events = append(ctx.Events, e)
}

// text resolves a message descriptor and interpolates it.
func (ctx *Context) text(d args.Descriptor) (string, error) {
	v, err := ctx.Env.Extract(d)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("message resolved to %T, not text", v)
	}
	return Interpolate(s, ctx.World, ctx.Actor, ctx.Env.Known), nil
}

// Interpolate replaces {actor} and {N} in text with the display names of
// the actor and of known argument N. Non-entity arguments are formatted
// as-is.
func Interpolate(text string, w world.Store, actor types.EntityID, known []types.Value) string {
	if !strings.Contains(text, "{") {
		return text
	}
	pairs := []string{"{actor}", w.Name(actor)}
	for i, v := range known {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", display(w, v))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func display(w world.Store, v types.Value) string {
	if id, ok := v.(types.EntityID); ok && w.Exists(id) {
		return w.Name(id)
	}
	return fmt.Sprint(v)
}
