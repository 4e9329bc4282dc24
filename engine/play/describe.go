package play

import (
	"fmt"
	"strings"

	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// Look describes the player's room: its description, the things and
// characters in it, and the exits.
func (g *Game) Look() []string {
	room := g.room()
	var lines []string
	if desc, _ := world.PropOr(g.World, room, "description", "").(string); desc != "" {
		lines = append(lines, desc)
	} else {
		lines = append(lines, fmt.Sprintf("You are in %s.", g.name(room)))
	}

	var things, people []types.EntityID
	for _, id := range g.World.Contents(room) {
		switch {
		case id == g.Player:
		case g.World.HasClass(id, world.ClassAgent):
			people = append(people, id)
		default:
			things = append(things, id)
		}
	}
	if len(things) > 0 {
		lines = append(lines, fmt.Sprintf("You see: %s.", g.list(things)))
	}
	if len(people) > 0 {
		lines = append(lines, fmt.Sprintf("Also here: %s.", g.list(people)))
	}

	var exits []string
	for _, p := range g.World.Paths(room) {
		label := p.Name
		if label == "" {
			label = g.name(p.To)
		}
		if p.Locked {
			label += " (locked)"
		}
		exits = append(exits, label)
	}
	if len(exits) > 0 {
		lines = append(lines, "Exits: "+strings.Join(exits, ", ")+".")
	}
	return lines
}

// Inventory lists what the player carries.
func (g *Game) Inventory() []string {
	items := g.World.Contents(g.Player)
	if len(items) == 0 {
		return []string{"You are carrying nothing."}
	}
	names := make([]string, len(items))
	for i, id := range items {
		names[i] = g.name(id)
		switch {
		case g.World.HasProp(id, "worn"):
			names[i] += " (worn)"
		case g.World.HasProp(id, "wielded"):
			names[i] += " (wielded)"
		}
	}
	return []string{"You are carrying: " + strings.Join(names, ", ") + "."}
}

func (g *Game) list(ids []types.EntityID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.name(id)
	}
	return strings.Join(names, ", ")
}
