package effects

import (
	"fmt"

	"github.com/nathoo/rulecore/engine/args"
)

// Op enumerates the effect variants.
type Op int

const (
	OpSetAttribute Op = iota
	OpIncrementAttribute
	OpDecrementAttribute
	OpSetVariable
	OpIncrementVariable
	OpDecrementVariable
	OpMove
	OpCreate
	OpDelete
	OpTell
	OpBroadcast
	OpFollow
)

var opNames = [...]string{
	OpSetAttribute:       "set_attribute",
	OpIncrementAttribute: "increment_attribute",
	OpDecrementAttribute: "decrement_attribute",
	OpSetVariable:        "set_variable",
	OpIncrementVariable:  "increment_variable",
	OpDecrementVariable:  "decrement_variable",
	OpMove:               "move",
	OpCreate:             "create",
	OpDelete:             "delete",
	OpTell:               "tell",
	OpBroadcast:          "broadcast",
	OpFollow:             "follow",
}

func (o Op) String() string {
	if o >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Effect is one interpreter instruction. The set of variants is closed.
type Effect interface {
	Op() Op
}

type SetAttribute struct {
	Target args.Descriptor
	Key    string
	Value  args.Descriptor
}

// IncrementAttribute adds By to a numeric property, treating an unset
// property as 0.
type IncrementAttribute struct {
	Target args.Descriptor
	Key    string
	By     int
}

type DecrementAttribute struct {
	Target args.Descriptor
	Key    string
	By     int
}

type SetVariable struct {
	Name  string
	Value int
}

type IncrementVariable struct {
	Name string
	By   int
}

type DecrementVariable struct {
	Name string
	By   int
}

// Move relocates Entity into Dest.
type Move struct {
	Entity args.Descriptor
	Dest   args.Descriptor
}

// Create instantiates Class into Dest.
type Create struct {
	Class string
	Dest  args.Descriptor
}

// Delete removes Entity and everything inside it.
type Delete struct {
	Entity args.Descriptor
}

// Tell sends Text to Target only.
type Tell struct {
	Target args.Descriptor
	Text   args.Descriptor
}

// Broadcast sends Text to every agent in Room. A nil Room means the actor's
// room.
type Broadcast struct {
	Room         args.Descriptor
	Text         args.Descriptor
	ExcludeActor bool
}

// Follow makes Follower follow Leader; a nil Leader stops following.
type Follow struct {
	Follower args.Descriptor
	Leader   args.Descriptor
}

func (SetAttribute) Op() Op       { return OpSetAttribute }
func (IncrementAttribute) Op() Op { return OpIncrementAttribute }
func (DecrementAttribute) Op() Op { return OpDecrementAttribute }
func (SetVariable) Op() Op        { return OpSetVariable }
func (IncrementVariable) Op() Op  { return OpIncrementVariable }
func (DecrementVariable) Op() Op  { return OpDecrementVariable }
func (Move) Op() Op               { return OpMove }
func (Create) Op() Op             { return OpCreate }
func (Delete) Op() Op             { return OpDelete }
func (Tell) Op() Op               { return OpTell }
func (Broadcast) Op() Op          { return OpBroadcast }
func (Follow) Op() Op             { return OpFollow }

// Validate reports configuration errors in an effect: missing names and
// malformed descriptors.
func Validate(e Effect) error {
	var required, optional []args.Descriptor
	switch e := e.(type) {
	case SetAttribute:
		if e.Key == "" {
			return fmt.Errorf("%s: missing key", e.Op())
		}
		required = []args.Descriptor{e.Target, e.Value}
	case IncrementAttribute:
		if e.Key == "" {
			return fmt.Errorf("%s: missing key", e.Op())
		}
		required = []args.Descriptor{e.Target}
	case DecrementAttribute:
		if e.Key == "" {
			return fmt.Errorf("%s: missing key", e.Op())
		}
		required = []args.Descriptor{e.Target}
	case SetVariable:
		return validName(e.Op(), e.Name)
	case IncrementVariable:
		return validName(e.Op(), e.Name)
	case DecrementVariable:
		return validName(e.Op(), e.Name)
	case Move:
		required = []args.Descriptor{e.Entity, e.Dest}
	case Create:
		if e.Class == "" {
			return fmt.Errorf("%s: missing class", e.Op())
		}
		required = []args.Descriptor{e.Dest}
	case Delete:
		required = []args.Descriptor{e.Entity}
	case Tell:
		required = []args.Descriptor{e.Target, e.Text}
	case Broadcast:
		required = []args.Descriptor{e.Text}
		optional = []args.Descriptor{e.Room}
	case Follow:
		required = []args.Descriptor{e.Follower}
		optional = []args.Descriptor{e.Leader}
	case nil:
		return fmt.Errorf("nil effect")
	default:
		return fmt.Errorf("unknown effect %T", e)
	}
	for _, d := range required {
		if err := args.Validate(d); err != nil {
			return fmt.Errorf("%s: %w", e.Op(), err)
		}
	}
	for _, d := range optional {
		if d == nil {
			continue
		}
		if err := args.Validate(d); err != nil {
			return fmt.Errorf("%s: %w", e.Op(), err)
		}
	}
	return nil
}

func validName(op Op, name string) error {
	if name == "" {
		return fmt.Errorf("%s: missing variable name", op)
	}
	return nil
}
