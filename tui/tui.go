// Package tui provides a Bubble Tea terminal UI for rulecore games.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nathoo/rulecore/cli"
	"github.com/nathoo/rulecore/engine/play"
)

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed player input
	isSystem bool // true for system messages
}

// Model is the Bubble Tea model for a running game.
type Model struct {
	ctx     context.Context
	game    *play.Game
	newGame func() (*play.Game, error)
	log     *zap.Logger

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated narrative lines (unstyled, for re-wrapping)
	intro    []string
	status   status

	width    int
	height   int
	ready    bool
	trace    bool
	busy     bool // a turn is being played; m.game belongs to it
	quitting bool
	lastCmd  string
	saveDir  string
}

// gameOutputMsg carries output lines into the Update loop.
type gameOutputMsg struct {
	input    string   // echoed player input (empty for intro)
	lines    []string // output lines
	isSystem bool     // true for meta-command output
}

// turnMsg carries a finished turn back into the Update loop.
type turnMsg struct {
	input  string
	result play.Result
}

// New creates a TUI model for g. newGame starts a fresh game of the same
// content for /load.
func New(ctx context.Context, g *play.Game, newGame func() (*play.Game, error)) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	intro := []string{g.Title, ""}
	if g.Intro != "" {
		intro = append(intro, g.Intro, "")
	}
	intro = append(intro, g.Look()...)

	home, _ := os.UserHomeDir()
	return Model{
		ctx:     ctx,
		game:    g,
		newGame: newGame,
		log:     zap.NewNop(),
		input:   ti,
		history: NewHistory(100),
		intro:   intro,
		status:  snapshotStatus(g),
		saveDir: filepath.Join(home, ".rulecore", "saves"),
	}
}

// WithSaveDir sets the directory for /save and /load.
func (m Model) WithSaveDir(dir string) Model {
	if dir != "" {
		m.saveDir = dir
	}
	return m
}

// WithLogger sets the logger used for failed turns.
func (m Model) WithLogger(l *zap.Logger) Model {
	if l != nil {
		m.log = l
	}
	return m
}

// Run starts the Bubble Tea program.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init returns the initial command that produces intro text and first look.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initialOutput())
}

// initialOutput delivers the intro, built in New before any turn can run.
func (m Model) initialOutput() tea.Cmd {
	lines := m.intro
	return func() tea.Msg {
		return gameOutputMsg{lines: lines}
	}
}

// Update handles messages (key presses, window resize, game output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case gameOutputMsg:
		m = m.appendOutput(msg)

	case turnMsg:
		m.busy = false
		m = m.appendOutput(m.turnOutput(msg))
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendOutput(gameOutputMsg{input: input, lines: output, isSystem: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		if m.lastCmd == "" {
			m = m.appendOutput(gameOutputMsg{
				input: input, lines: []string{"Nothing to repeat."}, isSystem: true,
			})
			return m, nil
		}
		input = m.lastCmd
	} else {
		m.lastCmd = input
	}

	// Turns may wait on character models, so they run off the UI loop.
	m.busy = true
	return m, m.playTurn(input)
}

func (m Model) playTurn(input string) tea.Cmd {
	ctx, g := m.ctx, m.game
	return func() tea.Msg {
		return turnMsg{input: input, result: g.Step(ctx, input)}
	}
}

func (m Model) turnOutput(msg turnMsg) gameOutputMsg {
	output := msg.result.Output
	if msg.result.Err != nil {
		m.log.Error("turn failed", zap.String("input", msg.input), zap.Error(msg.result.Err))
		output = append(output, fmt.Sprintf("[Error: %v]", msg.result.Err))
	}
	if m.trace {
		output = append(output, cli.TraceLines(msg.result)...)
	}
	return gameOutputMsg{input: msg.input, lines: output}
}

// appendOutput adds lines to the narrative and refreshes the viewport.
func (m Model) appendOutput(msg gameOutputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{
			text: "> " + msg.input, isInput: true,
		})
	}

	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.isSystem}
		if !msg.isSystem {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}

	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})

	if !m.busy {
		m.status = snapshotStatus(m.game)
	}

	m.refreshViewport()

	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		wrapped := wordWrap(rl.text, width)

		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindYouSee:
		return styledYouSee(line)
	case kindExits:
		return styleExits.Render(line)
	case kindDialogue:
		return styleDialogue.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleRoomDesc.Render(line)
	}
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		wLen := len(word)
		switch {
		case i == 0:
			lineLen = wLen
		case lineLen+1+wLen > width:
			result.WriteString("\n")
			lineLen = wLen
		default:
			result.WriteString(" ")
			lineLen += 1 + wLen
		}
		result.WriteString(word)
	}
	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/save":
		msg, err := cli.SaveGame(m.game, m.saveDir, arg)
		if err != nil {
			return []string{fmt.Sprintf("Save failed: %v", err)}, false
		}
		return []string{msg}, false

	case "/load":
		return m.cmdLoad(arg), false

	case "/help":
		return append(cli.HelpLines(), "", "Navigation: PgUp/PgDn to scroll, Up/Down for command history"), false

	case "/history":
		// The newest entry is this /history itself.
		recent := m.history.Recent(21)
		if len(recent) <= 1 {
			return []string{"No commands yet."}, false
		}
		recent = recent[:len(recent)-1]
		lines := make([]string, len(recent))
		for i, e := range recent {
			lines[i] = fmt.Sprintf("%d. %s", i+1, e)
		}
		return lines, false

	case "/state":
		return cli.StateLines(m.game), false

	case "/callbacks":
		return cli.CallbackLines(m.game), false

	case "/trace":
		m.trace = !m.trace
		if m.trace {
			return []string{"Trace output enabled."}, false
		}
		return []string{"Trace output disabled."}, false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdLoad(name string) []string {
	g, msg, err := cli.LoadGame(m.ctx, m.newGame, m.saveDir, name)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}
	m.game = g
	m.lastCmd = ""
	return append([]string{msg}, g.Look()...)
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
