// Package constraints implements the named predicates callbacks and the
// world's own legality checks evaluate against world state. Constraints are
// stateless beyond their configuration and never mutate the world.
package constraints

import (
	"fmt"

	"github.com/nathoo/rulecore/engine/args"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// Kind enumerates the constraint variants.
type Kind int

const (
	KindFits Kind = iota
	KindIsType
	KindNotType
	KindHasProp
	KindNoProp
	KindLockable
	KindLocked
	KindLockedWith
)

var kindNames = map[Kind]string{
	KindFits:       "fits",
	KindIsType:     "is_type",
	KindNotType:    "not_type",
	KindHasProp:    "has_prop",
	KindNoProp:     "no_prop",
	KindLockable:   "lockable",
	KindLocked:     "locked",
	KindLockedWith: "locked_with",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Constraint is a predicate over world state. InvalidReason is only
// meaningful when Satisfied returned false for the same arguments.
type Constraint interface {
	Kind() Kind
	// Arity returns the accepted number of resolved arguments.
	Arity() (min, max int)
	Satisfied(w world.Store, actor types.EntityID, args []types.Value) bool
	InvalidReason(w world.Store, actor types.EntityID, args []types.Value) string
}

// Binding attaches a constraint to the descriptors that produce its arguments.
type Binding struct {
	Constraint Constraint
	Args       []args.Descriptor
}

// Check evaluates a constraint and returns the failure text when it does
// not hold.
func Check(c Constraint, w world.Store, actor types.EntityID, vals []types.Value) (bool, string) {
	if c.Satisfied(w, actor, vals) {
		return true, ""
	}
	return false, c.InvalidReason(w, actor, vals)
}

// CheckAll evaluates bindings in order and stops at the first failure. An
// error means an argument could not be resolved.
func CheckAll(bindings []Binding, env *args.Env, actor types.EntityID) (bool, string, error) {
	for _, b := range bindings {
		vals, err := env.ExtractAll(b.Args)
		if err != nil {
			return false, "", fmt.Errorf("constraint %s: %w", b.Constraint.Kind(), err)
		}
		if lo, hi := b.Constraint.Arity(); len(vals) < lo || len(vals) > hi {
			return false, "", fmt.Errorf("constraint %s: got %d arguments", b.Constraint.Kind(), len(vals))
		}
		if ok, reason := Check(b.Constraint, env.World, actor, vals); !ok {
			return false, reason, nil
		}
	}
	return true, "", nil
}

// Validate checks a binding's arity and descriptors.
func Validate(b Binding) error {
	if b.Constraint == nil {
		return fmt.Errorf("binding without a constraint")
	}
	lo, hi := b.Constraint.Arity()
	if n := len(b.Args); n < lo || n > hi {
		if lo == hi {
			return fmt.Errorf("constraint %s takes %d argument(s), got %d", b.Constraint.Kind(), lo, n)
		}
		return fmt.Errorf("constraint %s takes %d-%d arguments, got %d", b.Constraint.Kind(), lo, hi, n)
	}
	for _, d := range b.Args {
		if err := args.Validate(d); err != nil {
			return fmt.Errorf("constraint %s: %w", b.Constraint.Kind(), err)
		}
	}
	return nil
}

// entity extracts an entity id from a resolved argument.
func entity(v types.Value) types.EntityID {
	switch id := v.(type) {
	case types.EntityID:
		return id
	case string:
		return types.EntityID(id)
	default:
		return ""
	}
}

// name renders an argument for failure text.
func name(w world.Store, v types.Value) string {
	if id := entity(v); id != "" && w.Exists(id) {
		return w.Name(id)
	}
	return fmt.Sprint(v)
}
