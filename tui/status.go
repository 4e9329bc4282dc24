package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nathoo/rulecore/engine/play"
)

var titleCaser = cases.Title(language.English)

// roomDisplayName title-cases a room name for the status bar.
// "the great hall" -> "The Great Hall", "castle_gates" -> "Castle Gates".
func roomDisplayName(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// status is what the status bar shows. It is copied out of the game between
// turns so View never reads the world while a turn is running.
type status struct {
	room  string
	exits []string
	items []string
	turns int
}

func snapshotStatus(g *play.Game) status {
	w := g.World
	room := w.RoomOf(g.Player)
	s := status{room: roomDisplayName(w.Name(room)), turns: g.Turns}
	for _, p := range w.Paths(room) {
		label := p.Name
		if label == "" {
			label = w.Name(p.To)
		}
		s.exits = append(s.exits, label)
	}
	for _, id := range w.Contents(g.Player) {
		s.items = append(s.items, w.Name(id))
	}
	return s
}

// renderStatusBar produces a full-width inverted status line showing
// current room, exits, inventory, and turn count.
func (m Model) renderStatusBar() string {
	s := m.status
	left := fmt.Sprintf(" %s | Exits: %s", s.room, strings.Join(s.exits, ", "))
	right := fmt.Sprintf("T:%d ", s.turns)

	// Show inventory items if they fit, otherwise just count.
	if len(s.items) > 0 {
		candidate := fmt.Sprintf("Inv: %s | T:%d ", strings.Join(s.items, ", "), s.turns)
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		} else {
			right = fmt.Sprintf("Inv: %d | T:%d ", len(s.items), s.turns)
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
