package constraints

import (
	"fmt"

	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// FitMode selects which capacity Fits checks.
type FitMode int

const (
	Carry FitMode = iota
	Contain
)

// Fits holds when args[1] has capacity for args[0].
type Fits struct {
	Mode FitMode
}

func (Fits) Kind() Kind            { return KindFits }
func (Fits) Arity() (min, max int) { return 2, 2 }

func (c Fits) Satisfied(w world.Store, _ types.EntityID, args []types.Value) bool {
	return w.Fits(entity(args[0]), entity(args[1]), c.Mode == Carry) == world.FitOK
}

func (c Fits) InvalidReason(w world.Store, _ types.EntityID, args []types.Value) string {
	item, holder := name(w, args[0]), name(w, args[1])
	switch w.Fits(entity(args[0]), entity(args[1]), c.Mode == Carry) {
	case world.FitTooHeavy:
		return fmt.Sprintf("%s is too heavy to carry.", capitalize(item))
	case world.FitFull:
		return fmt.Sprintf("%s is full.", capitalize(holder))
	default:
		return fmt.Sprintf("%s doesn't fit in %s.", capitalize(item), holder)
	}
}

// IsType holds when the entity carries at least one of Classes.
type IsType struct {
	Classes []string
}

func (IsType) Kind() Kind            { return KindIsType }
func (IsType) Arity() (min, max int) { return 1, 1 }

func (c IsType) Satisfied(w world.Store, _ types.EntityID, args []types.Value) bool {
	_, found := firstClass(w, entity(args[0]), c.Classes)
	return found
}

func (c IsType) InvalidReason(w world.Store, _ types.EntityID, args []types.Value) string {
	missing := ""
	if len(c.Classes) > 0 {
		missing = c.Classes[0]
	}
	return fmt.Sprintf("%s is not %s.", capitalize(name(w, args[0])), article(missing))
}

// NotType holds when the entity carries none of Classes. It is the exact
// complement of IsType over the same classes.
type NotType struct {
	Classes []string
}

func (NotType) Kind() Kind            { return KindNotType }
func (NotType) Arity() (min, max int) { return 1, 1 }

func (c NotType) Satisfied(w world.Store, _ types.EntityID, args []types.Value) bool {
	_, found := firstClass(w, entity(args[0]), c.Classes)
	return !found
}

func (c NotType) InvalidReason(w world.Store, _ types.EntityID, args []types.Value) string {
	class, _ := firstClass(w, entity(args[0]), c.Classes)
	return fmt.Sprintf("%s is %s.", capitalize(name(w, args[0])), article(class))
}

// HasProp holds when the entity's property is set to a truthy value.
type HasProp struct {
	Prop string
}

func (HasProp) Kind() Kind            { return KindHasProp }
func (HasProp) Arity() (min, max int) { return 1, 1 }

func (c HasProp) Satisfied(w world.Store, _ types.EntityID, args []types.Value) bool {
	return w.HasProp(entity(args[0]), c.Prop)
}

func (c HasProp) InvalidReason(w world.Store, _ types.EntityID, args []types.Value) string {
	return fmt.Sprintf("%s isn't %s.", capitalize(name(w, args[0])), c.Prop)
}

// NoProp holds when the entity's property is unset or falsy.
type NoProp struct {
	Prop string
}

func (NoProp) Kind() Kind            { return KindNoProp }
func (NoProp) Arity() (min, max int) { return 1, 1 }

func (c NoProp) Satisfied(w world.Store, _ types.EntityID, args []types.Value) bool {
	return !w.HasProp(entity(args[0]), c.Prop)
}

func (c NoProp) InvalidReason(w world.Store, _ types.EntityID, args []types.Value) string {
	return fmt.Sprintf("%s is already %s.", capitalize(name(w, args[0])), c.Prop)
}

// Lockable holds when the path or object's lockability matches Want.
//
// Lock constraints take either one argument (a room reached from the
// actor's room, or an object) or two (from room, to room).
type Lockable struct {
	Want bool
}

func (Lockable) Kind() Kind            { return KindLockable }
func (Lockable) Arity() (min, max int) { return 1, 2 }

func (c Lockable) Satisfied(w world.Store, actor types.EntityID, args []types.Value) bool {
	l := lockOf(w, actor, args)
	return l.exists && l.lockable == c.Want
}

func (c Lockable) InvalidReason(w world.Store, actor types.EntityID, args []types.Value) string {
	l := lockOf(w, actor, args)
	switch {
	case !l.exists:
		return "There's no path there."
	case c.Want:
		return fmt.Sprintf("%s can't be locked.", capitalize(l.label))
	default:
		return fmt.Sprintf("%s has a lock.", capitalize(l.label))
	}
}

// Locked holds when the current locked state matches Want. Something that
// cannot be locked counts as unlocked.
type Locked struct {
	Want bool
}

func (Locked) Kind() Kind            { return KindLocked }
func (Locked) Arity() (min, max int) { return 1, 2 }

func (c Locked) Satisfied(w world.Store, actor types.EntityID, args []types.Value) bool {
	l := lockOf(w, actor, args)
	if !l.exists {
		return false
	}
	if c.Want {
		return l.lockable && l.locked
	}
	return !l.lockable || !l.locked
}

func (c Locked) InvalidReason(w world.Store, actor types.EntityID, args []types.Value) string {
	l := lockOf(w, actor, args)
	switch {
	case !l.exists:
		return "There's no path there."
	case c.Want:
		return fmt.Sprintf("%s isn't locked.", capitalize(l.label))
	default:
		return fmt.Sprintf("%s is locked.", capitalize(l.label))
	}
}

// LockedWith holds when the lock is keyed to the entity given as the last
// argument. The leading arguments locate the lock as for Locked.
type LockedWith struct{}

func (LockedWith) Kind() Kind            { return KindLockedWith }
func (LockedWith) Arity() (min, max int) { return 2, 3 }

func (LockedWith) Satisfied(w world.Store, actor types.EntityID, args []types.Value) bool {
	l := lockOf(w, actor, args[:len(args)-1])
	key := entity(args[len(args)-1])
	return l.exists && l.lockable && key != "" && l.key == key
}

func (LockedWith) InvalidReason(w world.Store, actor types.EntityID, args []types.Value) string {
	l := lockOf(w, actor, args[:len(args)-1])
	switch {
	case !l.exists:
		return "There's no path there."
	case !l.lockable:
		return fmt.Sprintf("%s has no lock.", capitalize(l.label))
	default:
		return fmt.Sprintf("%s doesn't fit the lock on %s.", capitalize(name(w, args[len(args)-1])), l.label)
	}
}

// lock is the lock state of a path or an object.
type lock struct {
	exists   bool
	lockable bool
	locked   bool
	key      types.EntityID
	label    string
}

func lockOf(w world.Store, actor types.EntityID, args []types.Value) lock {
	var from, to types.EntityID
	switch len(args) {
	case 1:
		target := entity(args[0])
		if !w.IsRoom(target) {
			if !w.Exists(target) {
				return lock{}
			}
			return lock{
				exists:   true,
				lockable: w.HasProp(target, "lockable"),
				locked:   w.HasProp(target, "locked"),
				key:      entity(world.PropOr(w, target, "key", nil)),
				label:    w.Name(target),
			}
		}
		from, to = w.RoomOf(actor), target
	case 2:
		from, to = entity(args[0]), entity(args[1])
	default:
		return lock{}
	}
	p, ok := w.PathBetween(from, to)
	if !ok {
		return lock{}
	}
	label := p.Name
	if label == "" {
		label = "the way to " + w.Name(to)
	}
	return lock{
		exists:   true,
		lockable: p.Lockable,
		locked:   p.Locked,
		key:      p.Key,
		label:    label,
	}
}

func firstClass(w world.Store, id types.EntityID, classes []string) (string, bool) {
	for _, c := range classes {
		if w.HasClass(id, c) {
			return c, true
		}
	}
	return "", false
}

func article(noun string) string {
	if noun == "" {
		return "that"
	}
	switch noun[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an " + noun
	default:
		return "a " + noun
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

var (
	_ Constraint = Fits{}
	_ Constraint = IsType{}
	_ Constraint = NotType{}
	_ Constraint = HasProp{}
	_ Constraint = NoProp{}
	_ Constraint = Lockable{}
	_ Constraint = Locked{}
	_ Constraint = LockedWith{}
)
