package play

import (
	"fmt"

	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/engine/constraints"
	"github.com/nathoo/rulecore/engine/parser"
	"github.com/nathoo/rulecore/engine/resolve"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// builtin performs a verb's default behaviour and returns the executed
// action to dispatch. A refusal error means nothing happened.
type builtin func(g *Game, in parser.Intent) (types.Action, error)

var builtins = map[string]builtin{
	"go":      goVerb,
	"get":     getVerb,
	"put":     putVerb,
	"give":    giveVerb,
	"steal":   stealVerb,
	"drop":    dropVerb,
	"lock":    lockVerb(true),
	"unlock":  lockVerb(false),
	"hit":     hitVerb,
	"eat":     consumeVerb("eat", "edible"),
	"drink":   consumeVerb("drink", "drinkable"),
	"examine": examineVerb,
	"wear":    wearVerb,
	"wield":   wieldVerb,
	"remove":  removeVerb,
	"follow":  followVerb,
	"use":     useVerb,
	"say":     sayVerb,
	"shout":   shoutVerb,
	"tell":    tellVerb,
	"wait":    waitVerb,
}

func (g *Game) perform(in parser.Intent) (types.Action, error) {
	if b, ok := builtins[in.Verb]; ok {
		return b(g, in)
	}
	if in.Verb != engine.ActFailed && len(g.Engine.Vocabulary().Slots(in.Verb)) > 0 {
		return g.customVerb(in)
	}
	return types.Action{}, unknownVerbError(in.Verb)
}

// customVerb dispatches a verb with no built-in behaviour, resolving its
// object and target.
func (g *Game) customVerb(in parser.Intent) (types.Action, error) {
	var arguments []types.Value
	for _, name := range []string{in.Object, in.Target} {
		if name == "" {
			continue
		}
		id, err := g.visible(name)
		if err != nil {
			return types.Action{}, err
		}
		arguments = append(arguments, id)
	}
	return g.action(in.Verb, arguments...), nil
}

func goVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Go where?")
	}
	dest, err := resolve.Room(g.World, g.Player, in.Object)
	if err != nil {
		return types.Action{}, refusal("You can't go that way.")
	}
	origin := g.room()
	if err := g.require(constraints.Locked{Want: false}, origin, dest); err != nil {
		return types.Action{}, err
	}
	if err := g.World.Move(g.Player, dest); err != nil {
		return types.Action{}, err
	}
	g.World.Broadcast(origin, sentence(fmt.Sprintf("%s leaves", g.name(g.Player))))
	for _, f := range g.World.Followers(g.Player) {
		if g.World.Location(f) != origin {
			continue
		}
		if err := g.World.Move(f, dest); err != nil {
			return types.Action{}, err
		}
		g.World.Send(g.Player, sentence(fmt.Sprintf("%s follows you", g.name(f))))
	}
	g.World.Broadcast(dest, sentence(fmt.Sprintf("%s arrives", g.name(g.Player))), g.Player)
	for _, line := range g.Look() {
		g.World.Send(g.Player, line)
	}
	return g.action("go", dest, origin), nil
}

func getVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Get what?")
	}
	obj, err := g.visible(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	switch {
	case obj == g.Player:
		return types.Action{}, refusal("You can't take yourself.")
	case g.World.IsRoom(obj) || g.World.HasClass(obj, world.ClassAgent):
		return types.Action{}, refusef("you can't take %s", g.name(obj))
	case g.World.Location(obj) == g.Player:
		return types.Action{}, refusal("You already have that.")
	}
	source := g.World.Location(obj)
	if in.Target != "" {
		from, err := g.visible(in.Target)
		if err != nil {
			return types.Action{}, err
		}
		if from != source {
			return types.Action{}, refusef("%s isn't in %s", g.name(obj), g.name(from))
		}
	}
	if g.World.HasClass(source, world.ClassAgent) {
		return types.Action{}, refusef("%s has %s", g.name(source), g.name(obj))
	}
	if g.World.HasProp(obj, "fixed") {
		return types.Action{}, refusef("%s won't budge", g.name(obj))
	}
	if err := g.require(constraints.Fits{Mode: constraints.Carry}, obj, g.Player); err != nil {
		return types.Action{}, err
	}
	if err := g.World.Move(obj, g.Player); err != nil {
		return types.Action{}, err
	}
	g.World.Send(g.Player, fmt.Sprintf("You take %s.", g.name(obj)))
	g.World.Broadcast(g.room(), sentence(fmt.Sprintf("%s takes %s", g.name(g.Player), g.name(obj))), g.Player)
	return g.action("get", obj, source), nil
}

func putVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Put what?")
	}
	obj, err := g.holding(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	if in.Target == "" {
		return types.Action{}, refusef("put %s where?", g.name(obj))
	}
	cont, err := g.visible(in.Target)
	if err != nil {
		return types.Action{}, err
	}
	if cont == obj {
		return types.Action{}, refusef("you can't put %s inside itself", g.name(obj))
	}
	if err := g.require(constraints.IsType{Classes: []string{world.ClassContainer}}, cont); err != nil {
		return types.Action{}, err
	}
	if err := g.require(constraints.Fits{Mode: constraints.Contain}, obj, cont); err != nil {
		return types.Action{}, err
	}
	if err := g.World.Move(obj, cont); err != nil {
		return types.Action{}, err
	}
	g.World.Send(g.Player, fmt.Sprintf("You put %s in %s.", g.name(obj), g.name(cont)))
	return g.action("put", obj, cont), nil
}

func giveVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Give what?")
	}
	obj, err := g.holding(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	if in.Target == "" {
		return types.Action{}, refusef("give %s to whom?", g.name(obj))
	}
	to, err := g.visible(in.Target)
	if err != nil {
		return types.Action{}, err
	}
	if to == g.Player {
		return types.Action{}, refusal("You already have it.")
	}
	if err := g.require(constraints.IsType{Classes: []string{world.ClassAgent}}, to); err != nil {
		return types.Action{}, err
	}
	if err := g.require(constraints.Fits{Mode: constraints.Carry}, obj, to); err != nil {
		return types.Action{}, err
	}
	if err := g.World.Move(obj, to); err != nil {
		return types.Action{}, err
	}
	g.World.Send(g.Player, fmt.Sprintf("You give %s to %s.", g.name(obj), g.name(to)))
	g.World.Send(to, sentence(fmt.Sprintf("%s gives you %s", g.name(g.Player), g.name(obj))))
	return g.action("give", obj, to), nil
}

func stealVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Steal what?")
	}
	if in.Target == "" {
		return types.Action{}, refusal("Steal from whom?")
	}
	from, err := g.visible(in.Target)
	if err != nil {
		return types.Action{}, err
	}
	if err := g.require(constraints.IsType{Classes: []string{world.ClassAgent}}, from); err != nil {
		return types.Action{}, err
	}
	obj, err := g.visible(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	if g.World.Location(obj) != from {
		return types.Action{}, refusef("%s doesn't have %s", g.name(from), g.name(obj))
	}
	if err := g.require(constraints.Fits{Mode: constraints.Carry}, obj, g.Player); err != nil {
		return types.Action{}, err
	}
	if err := g.World.Move(obj, g.Player); err != nil {
		return types.Action{}, err
	}
	g.World.Send(g.Player, fmt.Sprintf("You steal %s from %s.", g.name(obj), g.name(from)))
	return g.action("steal", obj, from), nil
}

func dropVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Drop what?")
	}
	obj, err := g.holding(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	if err := g.World.Move(obj, g.room()); err != nil {
		return types.Action{}, err
	}
	g.World.Send(g.Player, fmt.Sprintf("You drop %s.", g.name(obj)))
	g.World.Broadcast(g.room(), sentence(fmt.Sprintf("%s drops %s", g.name(g.Player), g.name(obj))), g.Player)
	return g.action("drop", obj), nil
}

// lockVerb locks or unlocks a path leading out of the player's room or a
// lockable object, with a key the player holds.
func lockVerb(lock bool) builtin {
	verb := "unlock"
	if lock {
		verb = "lock"
	}
	return func(g *Game, in parser.Intent) (types.Action, error) {
		if in.Object == "" {
			return types.Action{}, refusef("%s what?", verb)
		}
		target, err := resolve.Room(g.World, g.Player, in.Object)
		if err != nil {
			if target, err = g.visible(in.Object); err != nil {
				return types.Action{}, err
			}
		}
		label := g.lockLabel(target)
		if in.Target == "" {
			return types.Action{}, refusef("%s %s with what?", verb, label)
		}
		key, err := g.holding(in.Target)
		if err != nil {
			return types.Action{}, err
		}
		if err := g.require(constraints.Lockable{Want: true}, target); err != nil {
			return types.Action{}, err
		}
		if err := g.require(constraints.Locked{Want: !lock}, target); err != nil {
			return types.Action{}, err
		}
		if err := g.require(constraints.LockedWith{}, target, key); err != nil {
			return types.Action{}, err
		}
		if g.World.IsRoom(target) {
			origin := g.room()
			if err := g.World.SetPathLock(origin, target, lock); err != nil {
				return types.Action{}, err
			}
			if back, ok := g.World.PathBetween(target, origin); ok && back.Lockable {
				if err := g.World.SetPathLock(target, origin, lock); err != nil {
					return types.Action{}, err
				}
			}
		} else if err := g.World.SetProp(target, "locked", lock); err != nil {
			return types.Action{}, err
		}
		g.World.Send(g.Player, fmt.Sprintf("You %s %s.", verb, label))
		return g.action(verb, target, key), nil
	}
}

// hitVerb rolls d20 plus the player's attack against 10 plus the target's
// defense. A hit deals max(1, 1d6 + attack - defense) to a target that
// tracks health; a miss is dispatched as "miss".
func hitVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Hit what?")
	}
	target, err := g.visible(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	if target == g.Player {
		return types.Action{}, refusal("You'd rather not.")
	}
	attack := g.intProp(g.Player, "attack")
	defense := g.intProp(target, "defense")
	if g.RNG.Roll(20)+attack < 10+defense {
		g.World.Send(g.Player, fmt.Sprintf("You miss %s.", g.name(target)))
		g.World.Send(target, sentence(fmt.Sprintf("%s misses you", g.name(g.Player))))
		return g.action("miss", target), nil
	}
	damage := max(1, g.RNG.Roll(6)+attack-defense)
	g.World.Send(g.Player, fmt.Sprintf("You hit %s.", g.name(target)))
	g.World.Send(target, sentence(fmt.Sprintf("%s hits you", g.name(g.Player))))
	if v, ok := g.World.Prop(target, "health"); ok {
		health, _ := world.ToInt(v)
		health = max(0, health-damage)
		if err := g.World.SetProp(target, "health", health); err != nil {
			return types.Action{}, err
		}
		if health == 0 {
			if err := g.World.SetProp(target, "defeated", true); err != nil {
				return types.Action{}, err
			}
			g.World.Send(g.Player, sentence(fmt.Sprintf("%s is defeated", g.name(target))))
		}
	}
	return g.action("hit", target), nil
}

// consumeVerb eats or drinks something within reach that carries prop.
// The item is removed once the action has been dispatched.
func consumeVerb(verb, prop string) builtin {
	return func(g *Game, in parser.Intent) (types.Action, error) {
		if in.Object == "" {
			return types.Action{}, refusef("%s what?", verb)
		}
		obj, err := g.visible(in.Object)
		if err != nil {
			return types.Action{}, err
		}
		if owner := g.World.Location(obj); owner != g.Player && g.World.HasClass(owner, world.ClassAgent) {
			return types.Action{}, refusef("%s has %s", g.name(owner), g.name(obj))
		}
		if err := g.require(constraints.HasProp{Prop: prop}, obj); err != nil {
			return types.Action{}, err
		}
		g.consumed = append(g.consumed, obj)
		g.World.Send(g.Player, fmt.Sprintf("You %s %s.", verb, g.name(obj)))
		return g.action(verb, obj), nil
	}
}

func examineVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Examine what?")
	}
	obj, err := g.visible(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	if desc, _ := world.PropOr(g.World, obj, "description", "").(string); desc != "" {
		g.World.Send(g.Player, desc)
	} else {
		g.World.Send(g.Player, fmt.Sprintf("You see nothing special about %s.", g.name(obj)))
	}
	if contents := g.World.Contents(obj); len(contents) > 0 && obj != g.Player {
		label := "In %s you see: %s."
		if g.World.HasClass(obj, world.ClassAgent) {
			label = "%s is carrying: %s."
		}
		g.World.Send(g.Player, sentence(fmt.Sprintf(label, g.name(obj), g.list(contents))))
	}
	return g.action("examine", obj), nil
}

func wearVerb(g *Game, in parser.Intent) (types.Action, error) {
	return g.equip(in, "wear", "wearable", "worn", "You put on %s.")
}

func wieldVerb(g *Game, in parser.Intent) (types.Action, error) {
	return g.equip(in, "wield", "weapon", "wielded", "You wield %s.")
}

func (g *Game) equip(in parser.Intent, verb, capability, state, msg string) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusef("%s what?", verb)
	}
	obj, err := g.holding(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	if err := g.require(constraints.HasProp{Prop: capability}, obj); err != nil {
		return types.Action{}, err
	}
	if err := g.require(constraints.NoProp{Prop: state}, obj); err != nil {
		return types.Action{}, err
	}
	if err := g.World.SetProp(obj, state, true); err != nil {
		return types.Action{}, err
	}
	g.World.Send(g.Player, fmt.Sprintf(msg, g.name(obj)))
	return g.action(verb, obj), nil
}

func removeVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Remove what?")
	}
	obj, err := g.holding(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	if !g.World.HasProp(obj, "worn") && !g.World.HasProp(obj, "wielded") {
		return types.Action{}, refusef("you aren't using %s", g.name(obj))
	}
	for _, prop := range []string{"worn", "wielded"} {
		if err := g.World.SetProp(obj, prop, false); err != nil {
			return types.Action{}, err
		}
	}
	g.World.Send(g.Player, fmt.Sprintf("You take off %s.", g.name(obj)))
	return g.action("remove", obj), nil
}

func followVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Follow whom?")
	}
	leader, err := g.visible(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	if leader == g.Player {
		if err := g.World.SetFollow(g.Player, ""); err != nil {
			return types.Action{}, err
		}
		g.World.Send(g.Player, "You stop following anyone.")
		return g.action("follow", leader), nil
	}
	if err := g.require(constraints.IsType{Classes: []string{world.ClassAgent}}, leader); err != nil {
		return types.Action{}, err
	}
	if err := g.World.SetFollow(g.Player, leader); err != nil {
		return types.Action{}, err
	}
	g.World.Send(g.Player, fmt.Sprintf("You start following %s.", g.name(leader)))
	g.World.Send(leader, sentence(fmt.Sprintf("%s starts following you", g.name(g.Player))))
	return g.action("follow", leader), nil
}

// useVerb has no default effect; callbacks give it meaning.
func useVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Use what?")
	}
	return g.customVerb(in)
}

func sayVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Text == "" {
		return types.Action{}, refusal("Say what?")
	}
	g.World.Send(g.Player, fmt.Sprintf("You say, %q", in.Text))
	g.World.Broadcast(g.room(), fmt.Sprintf("%s says, %q", capitalize(g.name(g.Player)), in.Text), g.Player)
	return g.action("say", in.Text), nil
}

// shoutVerb is heard in the player's room and every room one path away.
func shoutVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Text == "" {
		return types.Action{}, refusal("Shout what?")
	}
	room := g.room()
	g.World.Send(g.Player, fmt.Sprintf("You shout, %q", in.Text))
	g.World.Broadcast(room, fmt.Sprintf("%s shouts, %q", capitalize(g.name(g.Player)), in.Text), g.Player)
	for _, p := range g.World.Paths(room) {
		g.World.Broadcast(p.To, fmt.Sprintf("You hear someone shout, %q", in.Text))
	}
	return g.action("shout", in.Text), nil
}

func tellVerb(g *Game, in parser.Intent) (types.Action, error) {
	if in.Object == "" {
		return types.Action{}, refusal("Tell whom?")
	}
	to, err := g.visible(in.Object)
	if err != nil {
		return types.Action{}, err
	}
	if to == g.Player {
		return types.Action{}, refusal("You mutter to yourself.")
	}
	if err := g.require(constraints.IsType{Classes: []string{world.ClassAgent}}, to); err != nil {
		return types.Action{}, err
	}
	if in.Text == "" {
		return types.Action{}, refusef("tell %s what?", g.name(to))
	}
	g.World.Send(g.Player, fmt.Sprintf("You tell %s, %q", g.name(to), in.Text))
	g.World.Send(to, fmt.Sprintf("%s tells you, %q", capitalize(g.name(g.Player)), in.Text))
	return g.action("tell", to, in.Text), nil
}

func waitVerb(g *Game, _ parser.Intent) (types.Action, error) {
	g.World.Send(g.Player, "Time passes.")
	return types.Action{}, nil
}

// require checks a constraint as the player and turns a failure into a
// refusal carrying the constraint's text.
func (g *Game) require(c constraints.Constraint, vals ...types.Value) error {
	if ok, reason := constraints.Check(c, g.World, g.Player, vals); !ok {
		return refusal(reason)
	}
	return nil
}

func (g *Game) visible(name string) (types.EntityID, error) {
	return resolve.Entity(g.World, g.Player, name)
}

func (g *Game) holding(name string) (types.EntityID, error) {
	id, err := g.visible(name)
	if err != nil {
		return "", err
	}
	if g.World.Location(id) != g.Player {
		return "", refusef("you aren't holding %s", g.name(id))
	}
	return id, nil
}

func (g *Game) lockLabel(target types.EntityID) string {
	if !g.World.IsRoom(target) {
		return g.name(target)
	}
	if p, ok := g.World.PathBetween(g.room(), target); ok && p.Name != "" {
		return p.Name
	}
	return "the way to " + g.name(target)
}

func (g *Game) action(verb string, arguments ...types.Value) types.Action {
	return types.Action{Name: verb, Actor: g.Player, Arguments: arguments}
}

func (g *Game) room() types.EntityID { return g.World.RoomOf(g.Player) }

func (g *Game) name(id types.EntityID) string { return g.World.Name(id) }

func (g *Game) intProp(id types.EntityID, key string) int {
	n, _ := world.ToInt(world.PropOr(g.World, id, key, 0))
	return n
}
