// Package world defines the world-state capability the rule core consumes
// and an in-memory graph implementation of it.
package world

import (
	"errors"

	"github.com/nathoo/rulecore/types"
)

// ErrUnknownEntity is returned when an operation names an entity that is
// not in the world.
var ErrUnknownEntity = errors.New("unknown entity")

// Class tags with engine-level meaning.
const (
	ClassAgent     = "agent"
	ClassRoom      = "room"
	ClassContainer = "container"
)

// Fit is the answer a container gives when asked to hold another entity.
type Fit int

const (
	FitOK       Fit = iota
	FitTooHeavy     // carrier has no capacity left
	FitFull         // container could hold it if it were emptier
	FitTooBig       // container could never hold it
)

// Path is a one-way edge between two rooms.
type Path struct {
	From     types.EntityID
	To       types.EntityID
	Name     string // e.g. "a heavy oak door"
	Lockable bool
	Locked   bool
	Key      types.EntityID // entity the lock is keyed to
}

// Store is the world-state capability used by constraints, effects and the
// argument extractor. Implementations are not required to be safe for
// concurrent use; callers serialize dispatches.
type Store interface {
	Exists(id types.EntityID) bool
	Name(id types.EntityID) string
	IsRoom(id types.EntityID) bool
	Classes(id types.EntityID) []string
	HasClass(id types.EntityID, class string) bool

	Prop(id types.EntityID, key string) (any, bool)
	HasProp(id types.EntityID, key string) bool
	SetProp(id types.EntityID, key string, value any) error

	// Location is the immediate container; RoomOf walks up to the room.
	Location(id types.EntityID) types.EntityID
	RoomOf(id types.EntityID) types.EntityID
	PathBetween(from, to types.EntityID) (Path, bool)
	Fits(item, container types.EntityID, carry bool) Fit

	Move(id, dest types.EntityID) error
	Delete(id types.EntityID) error
	// Instantiate creates a detached entity from a class template and
	// returns it along with the classes of its declared contents, which the
	// caller is expected to create in turn.
	Instantiate(class string) (types.EntityID, []string, error)
	SetFollow(follower, leader types.EntityID) error

	Broadcast(room types.EntityID, text string, exclude ...types.EntityID)
	Send(to types.EntityID, text string)
}

// Checkpointer is implemented by stores that can roll back every mutation
// made after a checkpoint.
type Checkpointer interface {
	Checkpoint() (restore func())
}

// PropOr returns the entity's property, or def when it is unset.
func PropOr(s Store, id types.EntityID, key string, def any) any {
	if v, ok := s.Prop(id, key); ok {
		return v
	}
	return def
}

// Truthy reports whether a property value counts as "present".
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}

// ToInt converts a numeric property value to int, handling float64 from Lua.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
