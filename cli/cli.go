// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for a rulecore game.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nathoo/rulecore/engine/play"
	"github.com/nathoo/rulecore/engine/save"
	"github.com/nathoo/rulecore/types"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	Game *play.Game
	// NewGame starts a fresh game of the same content; /load replays onto it.
	NewGame   func() (*play.Game, error)
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	Trace     bool
	EchoInput bool // echo each input line after the prompt (for script playback)
	Log       *zap.Logger
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI for a game.
func New(g *play.Game, newGame func() (*play.Game, error)) *CLI {
	home, _ := os.UserHomeDir()
	return &CLI{
		Game:    g,
		NewGame: newGame,
		In:      os.Stdin,
		Out:     os.Stdout,
		SaveDir: filepath.Join(home, ".rulecore", "saves"),
		Log:     zap.NewNop(),
	}
}

// Run starts the game loop. It shows the intro, describes the starting room,
// then loops: prompt, input, step, output.
func (c *CLI) Run(ctx context.Context) {
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
	if c.Game.Intro != "" {
		c.printLine(c.Game.Intro)
		c.printLine("")
	}
	c.printLines(c.Game.Look())

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		if strings.HasPrefix(input, "/") {
			if c.handleMeta(ctx, input) {
				return // /quit
			}
			continue
		}

		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		result := c.Game.Step(ctx, input)
		c.printLines(result.Output)
		if result.Err != nil {
			c.Log.Error("turn failed", zap.String("input", input), zap.Error(result.Err))
			c.printSystem(fmt.Sprintf("Error: %v", result.Err))
		}
		if c.Trace {
			c.printLines(TraceLines(result))
		}
	}
}

// handleMeta dispatches meta-commands. Returns true if the game should exit.
func (c *CLI) handleMeta(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(ctx, arg)

	case "/help":
		c.printLines(HelpLines())

	case "/state":
		for _, line := range StateLines(c.Game) {
			c.printSystem(line)
		}

	case "/callbacks":
		for _, line := range CallbackLines(c.Game) {
			c.printSystem(line)
		}

	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdSave(name string) {
	msg, err := SaveGame(c.Game, c.SaveDir, name)
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printSystem(msg)
}

func (c *CLI) cmdLoad(ctx context.Context, name string) {
	g, msg, err := LoadGame(ctx, c.NewGame, c.SaveDir, name)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.Game = g
	c.lastCmd = ""
	c.printSystem(msg)
	c.printLines(g.Look())
}

// SaveGame writes g's replay log to dir/name.json and returns a
// confirmation.
func SaveGame(g *play.Game, dir, name string) (string, error) {
	if name == "" {
		name = "quicksave"
	}
	data, err := save.Save(g)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Game saved to %s.", name), nil
}

// LoadGame reads dir/name.json and replays it onto a fresh game.
func LoadGame(ctx context.Context, newGame func() (*play.Game, error), dir, name string) (*play.Game, string, error) {
	if name == "" {
		name = "quicksave"
	}
	if newGame == nil {
		return nil, "", fmt.Errorf("loading is not available")
	}
	data, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if err != nil {
		return nil, "", err
	}
	sd, err := save.Load(data)
	if err != nil {
		return nil, "", err
	}
	g, err := newGame()
	if err != nil {
		return nil, "", err
	}
	if err := save.Replay(ctx, g, sd); err != nil {
		return nil, "", err
	}
	return g, fmt.Sprintf("Game loaded from %s (turn %d).", name, sd.Turn), nil
}

// HelpLines lists meta-commands and the common game commands.
func HelpLines() []string {
	return []string{
		"System:",
		"  /save [name]  Save game (default: quicksave)",
		"  /load [name]  Load game (default: quicksave)",
		"  /quit         Exit game",
		"  /help         Show this help",
		"  /state        Debug: dump current state",
		"  /callbacks    Debug: list callbacks in evaluation order",
		"  /trace        Toggle debug trace output",
		"",
		"Game commands:",
		"  look (l), examine <thing> (x)",
		"  go <exit> (or n/s/e/w/u/d)",
		"  take <item> [from <thing>], drop <item>, put <item> in <thing>",
		"  give <item> to <someone>, steal <item> from <someone>",
		"  lock/unlock <thing> with <key>, use <item> on <thing>",
		"  eat, drink, wear, wield, remove <item>",
		"  hit <someone>, follow <someone>",
		"  say <text>, shout <text>, tell <someone> <text>",
		"  inventory (i), wait (z), again (g)",
	}
}

// StateLines describes the game state for /state.
func StateLines(g *play.Game) []string {
	w := g.World
	room := w.RoomOf(g.Player)
	var inv []string
	for _, id := range w.Contents(g.Player) {
		inv = append(inv, string(id))
	}
	lines := []string{
		fmt.Sprintf("Turn: %d", g.Turns),
		fmt.Sprintf("Location: %s", room),
		fmt.Sprintf("Inventory: %v", inv),
		fmt.Sprintf("RNG: seed %d, position %d", g.RNG.Seed(), g.RNG.Position()),
	}
	if len(g.Vars) > 0 {
		keys := make([]string, 0, len(g.Vars))
		for k := range g.Vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var vars []string
		for _, k := range keys {
			vars = append(vars, fmt.Sprintf("%s=%d", k, g.Vars[k]))
		}
		lines = append(lines, "Variables: "+strings.Join(vars, " "))
	}
	return lines
}

// CallbackLines lists registered callbacks with the verb each reacts to
// and whether it is disabled.
func CallbackLines(g *play.Game) []string {
	names := g.Engine.Callbacks()
	if len(names) == 0 {
		return []string{"No callbacks registered."}
	}
	lines := make([]string, 0, len(names))
	for i, name := range names {
		line := fmt.Sprintf("%d. %s", i+1, name)
		if cb, ok := g.Engine.Callback(name); ok {
			line += " on " + cb.Trigger.Func
			if cb.Trigger.Override {
				line += " (override)"
			}
		}
		if err := g.Engine.Disabled(name); err != nil {
			line += fmt.Sprintf(" (disabled: %v)", err)
		}
		lines = append(lines, line)
	}
	return lines
}

// TraceLines renders a turn's dispatch for /trace.
func TraceLines(r play.Result) []string {
	if r.Action == nil {
		return nil
	}
	var lines []string
	lines = append(lines, fmt.Sprintf("[trace] action %s %v", r.Action.Name, formatArgs(r.Action.Arguments)))
	d := r.Dispatch
	switch {
	case d.Executed:
		lines = append(lines, fmt.Sprintf("[trace] executed by %s", d.Callback))
	case d.Blocked:
		lines = append(lines, fmt.Sprintf("[trace] blocked by %s: %s", d.Callback, d.Reason))
	default:
		lines = append(lines, "[trace] no callback executed")
	}
	for _, e := range d.Events {
		lines = append(lines, fmt.Sprintf("[trace]   %s %s", e.Type, formatData(e.Data)))
	}
	for _, m := range r.Overheard {
		lines = append(lines, fmt.Sprintf("[trace]   to %s: %s", m.To, m.Text))
	}
	return lines
}

func formatArgs(vals []types.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return strings.Join(parts, " ")
}

func (c *CLI) printLines(lines []string) {
	for _, line := range lines {
		c.printLine(line)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
