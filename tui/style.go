package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleRoomDesc = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleYouSee = lipgloss.NewStyle().
			Bold(true)

	styleExits = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindRoomDesc lineKind = iota
	kindYouSee
	kindExits
	kindDialogue
	kindSystem
	kindError
	kindTrace
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "You see:"), strings.HasPrefix(line, "Also here:"):
		return kindYouSee
	case strings.HasPrefix(line, "Exits:"):
		return kindExits
	case strings.HasPrefix(line, "You don't see"),
		strings.HasPrefix(line, "You can't"),
		strings.HasPrefix(line, "You aren't"),
		strings.HasPrefix(line, "You don't have"),
		strings.HasPrefix(line, "I don't understand"):
		return kindError
	case containsQuotedSpeech(line):
		return kindDialogue
	default:
		return kindRoomDesc
	}
}

// containsQuotedSpeech reports whether a line carries speech in double
// quotes, as in `Bram says, "We're full up."`.
func containsQuotedSpeech(line string) bool {
	open := strings.IndexByte(line, '"')
	if open < 0 {
		return false
	}
	end := strings.IndexByte(line[open+1:], '"')
	return end > 1
}

// styledYouSee renders "You see: item1, item2." with item names bold.
func styledYouSee(line string) string {
	for _, prefix := range []string{"You see: ", "Also here: "} {
		if strings.HasPrefix(line, prefix) {
			return styleRoomDesc.Render(prefix) + styleYouSee.Render(line[len(prefix):])
		}
	}
	return styleRoomDesc.Render(line)
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
