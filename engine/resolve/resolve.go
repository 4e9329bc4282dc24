// Package resolve maps names typed by the player to entity IDs visible to
// an actor.
package resolve

import (
	"fmt"
	"strings"

	"github.com/nathoo/rulecore/engine/parser"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// Scope is the part of the world the resolver searches.
type Scope interface {
	Name(id types.EntityID) string
	RoomOf(id types.EntityID) types.EntityID
	Contents(id types.EntityID) []types.EntityID
	Paths(from types.EntityID) []world.Path
}

// Result holds the resolved entity IDs for an intent.
type Result struct {
	ObjectID types.EntityID
	TargetID types.EntityID
}

// AmbiguityError indicates multiple entities matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	names := strings.Join(e.Candidates, ", ")
	return fmt.Sprintf("which %s? (%s)", e.Name, names)
}

// NotFoundError indicates no entity matched a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("you don't see %q here", e.Name)
}

// Resolve maps object/target name strings from an intent to entity IDs.
func Resolve(s Scope, actor types.EntityID, intent parser.Intent) (Result, error) {
	var res Result
	var err error

	if intent.Object != "" {
		res.ObjectID, err = Entity(s, actor, intent.Object)
		if err != nil {
			return res, err
		}
	}

	if intent.Target != "" {
		res.TargetID, err = Entity(s, actor, intent.Target)
		if err != nil {
			return res, err
		}
	}

	return res, nil
}

// Entity resolves a name among everything in the actor's room, including
// the contents of containers and other characters.
func Entity(s Scope, actor types.EntityID, name string) (types.EntityID, error) {
	nameLower := strings.ToLower(strings.TrimSpace(name))
	switch nameLower {
	case "me", "self", "myself":
		return actor, nil
	}
	room := s.RoomOf(actor)
	if room == "" {
		return "", &NotFoundError{Name: name}
	}

	// Breadth-first so that nearer entities are listed first.
	var exact, partial []types.EntityID
	queue := s.Contents(room)
	for len(queue) > 0 {
		id := queue[0]
		queue = append(queue[1:], s.Contents(id)...)
		switch matchesName(string(id), s.Name(id), nameLower) {
		case matchExact:
			exact = append(exact, id)
		case matchPartial:
			partial = append(partial, id)
		}
	}
	return pick(s, name, exact, partial)
}

// Room resolves a name to a room reachable by one path from the actor's
// room. Path names ("north", "the oak door") and destination names both
// match.
func Room(s Scope, actor types.EntityID, name string) (types.EntityID, error) {
	nameLower := strings.ToLower(strings.TrimSpace(name))
	var exact, partial []types.EntityID
	for _, p := range s.Paths(s.RoomOf(actor)) {
		best := max(matchesName("", p.Name, nameLower), matchesName(string(p.To), s.Name(p.To), nameLower))
		switch best {
		case matchExact:
			exact = append(exact, p.To)
		case matchPartial:
			partial = append(partial, p.To)
		}
	}
	return pick(s, name, exact, partial)
}

func pick(s Scope, name string, exact, partial []types.EntityID) (types.EntityID, error) {
	matches := exact
	if len(matches) == 0 {
		matches = partial
	}
	switch len(matches) {
	case 0:
		return "", &NotFoundError{Name: name}
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, id := range matches {
			names[i] = s.Name(id)
		}
		return "", &AmbiguityError{Name: name, Candidates: names}
	}
}

type match int

const (
	matchNone match = iota
	matchPartial
	matchExact
)

// matchesName checks a display name and id against a lowercased query.
// Supports exact match, word-based partial match, and entity ID match.
func matchesName(id, display, nameLower string) match {
	if display != "" {
		entityNameLower := trimArticle(strings.ToLower(display))
		// Exact match.
		if entityNameLower == nameLower {
			return matchExact
		}
		// Word-based partial match: query matches any word in the name,
		// or the tail of it ("iron door" matches "heavy iron door").
		if strings.HasSuffix(entityNameLower, " "+nameLower) {
			return matchPartial
		}
		for _, word := range strings.Fields(entityNameLower) {
			if word == nameLower {
				return matchPartial
			}
		}
	}
	if id == "" {
		return matchNone
	}
	// Check entity ID (e.g. "rusty_key" matches "rusty_key").
	idLower := strings.ToLower(id)
	if idLower == nameLower {
		return matchExact
	}
	// Underscore normalization: "rusty key" matches entity ID "rusty_key".
	if strings.ReplaceAll(nameLower, " ", "_") == idLower {
		return matchExact
	}
	return matchNone
}

func trimArticle(s string) string {
	for _, a := range []string{"the ", "a ", "an ", "some "} {
		if rest, ok := strings.CutPrefix(s, a); ok {
			return rest
		}
	}
	return s
}
