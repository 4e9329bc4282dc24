// Package args resolves abstract argument descriptors against the known
// arguments of a triggered action and the world.
package args

import (
	"fmt"

	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// Descriptor is an abstract argument reference. The set of kinds is closed.
type Descriptor interface {
	descriptor()
}

// Arg refers to known argument Index (0 is the actor).
type Arg struct {
	Index int
}

// LocationOf resolves to the room containing the entity Of resolves to.
type LocationOf struct {
	Of Descriptor
}

// Literal resolves to Value unchanged.
type Literal struct {
	Value types.Value
}

// Cycle resolves to Items[cursor]. The cursor belongs to the callback that
// owns the descriptor and only moves when the callback commits.
type Cycle struct {
	Key   string
	Items []types.Value
}

func (Arg) descriptor()        {}
func (LocationOf) descriptor() {}
func (Literal) descriptor()    {}
func (Cycle) descriptor()      {}

// Actor is shorthand for the acting entity.
func Actor() Descriptor { return Arg{Index: 0} }

// Entity is shorthand for a literal entity reference.
func Entity(id types.EntityID) Descriptor { return Literal{Value: id} }

// RefError reports a descriptor that could not be resolved against the
// current action or world.
type RefError struct {
	Descriptor Descriptor
	Reason     string
}

func (e *RefError) Error() string {
	return fmt.Sprintf("unresolvable argument %s: %s", Describe(e.Descriptor), e.Reason)
}

// KindError reports a descriptor the extractor does not understand. It is a
// configuration error, not a runtime one.
type KindError struct {
	Descriptor Descriptor
}

func (e *KindError) Error() string {
	return fmt.Sprintf("unknown argument descriptor %T", e.Descriptor)
}

// Cursors holds the cycle positions owned by one callback.
type Cursors map[string]int

// Env is the extraction environment for one callback execution.
type Env struct {
	Known   []types.Value
	World   world.Store
	Cursors Cursors

	pending []Cycle
}

// Extract resolves d. It never moves a cycle cursor; cycles read are
// remembered and advanced by Commit.
func (e *Env) Extract(d Descriptor) (types.Value, error) {
	switch d := d.(type) {
	case Arg:
		if d.Index < 0 || d.Index >= len(e.Known) {
			return nil, &RefError{Descriptor: d, Reason: fmt.Sprintf("index out of range (%d known)", len(e.Known))}
		}
		return e.Known[d.Index], nil

	case LocationOf:
		v, err := e.Extract(d.Of)
		if err != nil {
			return nil, err
		}
		id, ok := v.(types.EntityID)
		if !ok {
			return nil, &RefError{Descriptor: d, Reason: fmt.Sprintf("%v is not an entity", v)}
		}
		room := e.World.RoomOf(id)
		if room == "" {
			return nil, &RefError{Descriptor: d, Reason: fmt.Sprintf("%s is not in any room", id)}
		}
		return room, nil

	case Literal:
		return d.Value, nil

	case Cycle:
		if len(d.Items) == 0 {
			return nil, &RefError{Descriptor: d, Reason: "empty cycle"}
		}
		cur := 0
		if e.Cursors != nil {
			cur = e.Cursors[d.Key] % len(d.Items)
		}
		e.pending = append(e.pending, d)
		return d.Items[cur], nil

	default:
		return nil, &KindError{Descriptor: d}
	}
}

// ExtractAll resolves every descriptor in order.
func (e *Env) ExtractAll(ds []Descriptor) ([]types.Value, error) {
	out := make([]types.Value, 0, len(ds))
	for _, d := range ds {
		v, err := e.Extract(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ExtractEntity resolves d and requires an entity reference.
func (e *Env) ExtractEntity(d Descriptor) (types.EntityID, error) {
	v, err := e.Extract(d)
	if err != nil {
		return "", err
	}
	switch id := v.(type) {
	case types.EntityID:
		return id, nil
	case string:
		if e.World != nil && e.World.Exists(types.EntityID(id)) {
			return types.EntityID(id), nil
		}
	}
	return "", &RefError{Descriptor: d, Reason: fmt.Sprintf("%v is not an entity", v)}
}

// Commit advances every cycle read since the last Commit or Discard. A
// cycle read several times in one execution advances once.
func (e *Env) Commit() {
	advanced := make(map[string]bool, len(e.pending))
	for _, c := range e.pending {
		if e.Cursors == nil || len(c.Items) == 0 || advanced[c.Key] {
			continue
		}
		advanced[c.Key] = true
		e.Cursors[c.Key] = (e.Cursors[c.Key] + 1) % len(c.Items)
	}
	e.pending = nil
}

// Discard forgets pending cycle reads.
func (e *Env) Discard() {
	e.pending = nil
}

// Validate checks a descriptor tree for configuration errors.
func Validate(d Descriptor) error {
	switch d := d.(type) {
	case Arg:
		if d.Index < 0 {
			return fmt.Errorf("negative argument index %d", d.Index)
		}
	case LocationOf:
		if d.Of == nil {
			return fmt.Errorf("location descriptor without a subject")
		}
		return Validate(d.Of)
	case Literal:
	case Cycle:
		if d.Key == "" {
			return fmt.Errorf("cycle without a key")
		}
		if len(d.Items) == 0 {
			return fmt.Errorf("cycle %q has no items", d.Key)
		}
	default:
		return &KindError{Descriptor: d}
	}
	return nil
}

// Describe renders a descriptor for logs and error messages.
func Describe(d Descriptor) string {
	switch d := d.(type) {
	case Arg:
		return fmt.Sprintf("arg(%d)", d.Index)
	case LocationOf:
		return fmt.Sprintf("location(%s)", Describe(d.Of))
	case Literal:
		return fmt.Sprintf("literal(%v)", d.Value)
	case Cycle:
		return fmt.Sprintf("cycle(%s)", d.Key)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", d)
	}
}
