// Package play provides the Step() turn loop that wires parsing, name
// resolution and built-in verbs to the rule engine.
package play

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/engine/parser"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// Config describes a playable world.
type Config struct {
	Title  string
	Intro  string
	Player types.EntityID
	Seed   int64
	Vars   types.Variables
	Logger *zap.Logger
}

// Game holds one world instance and the player's session in it.
type Game struct {
	Title  string
	Intro  string
	Player types.EntityID
	World  *world.Graph
	Vars   types.Variables
	Engine *engine.Engine
	RNG    *RNG

	Turns      int
	CommandLog []string
	// LastEvents is the trace of the most recent turn.
	LastEvents []types.Event

	log      *zap.Logger
	consumed []types.EntityID
}

// Result is the outcome of one Step.
type Result struct {
	Output []string
	// Action is the action dispatched to the engine, if any.
	Action   *types.Action
	Dispatch types.DispatchResult
	// Overheard holds messages delivered to other characters this turn.
	Overheard []types.Message
	Err       error
}

// New creates a game over an already populated world.
func New(e *engine.Engine, w *world.Graph, cfg Config) (*Game, error) {
	if !w.HasClass(cfg.Player, world.ClassAgent) {
		return nil, fmt.Errorf("player %q is not a character in the world", cfg.Player)
	}
	if w.RoomOf(cfg.Player) == "" {
		return nil, fmt.Errorf("player %q is not in a room", cfg.Player)
	}
	vars := cfg.Vars
	if vars == nil {
		vars = types.Variables{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Game{
		Title:  cfg.Title,
		Intro:  cfg.Intro,
		Player: cfg.Player,
		World:  w,
		Vars:   vars,
		Engine: e,
		RNG:    NewRNG(cfg.Seed),
		log:    log,
	}, nil
}

// Step processes one player command and returns the result.
func (g *Game) Step(ctx context.Context, input string) Result {
	var result Result

	// 1. Parse input.
	intent := parser.Parse(input)

	// 2. Log the command.
	g.CommandLog = append(g.CommandLog, input)

	// 3. Empty input.
	if intent.Verb == "" {
		result.Output = append(result.Output, "What do you want to do?")
		return result
	}

	// 4. Verbs that only read the world take no turn.
	switch intent.Verb {
	case "look":
		if intent.Object == "" {
			result.Output = g.Look()
			return result
		}
		intent.Verb = "examine"
	case "inventory":
		result.Output = g.Inventory()
		return result
	}

	// 5. Built-in verb: check legality, perform it, then dispatch it.
	restore := g.World.Checkpoint()
	g.consumed = g.consumed[:0]
	action, err := g.perform(intent)

	var refused refusal
	switch {
	case errors.As(err, &refused):
		g.World.Send(g.Player, string(refused))
	case err != nil:
		// Input that names nothing the player can see goes to act_failed,
		// and so does an unknown verb.
		g.actFailed(ctx, input, err, &result)
	case action.Name == "":
		// Handled without an action, e.g. wait.
	default:
		result.Action = &action
		g.dispatch(ctx, action, restore, &result)
	}

	// 6. Collect messages.
	for _, m := range g.World.Flush() {
		if m.To == g.Player {
			result.Output = append(result.Output, m.Text)
		} else {
			result.Overheard = append(result.Overheard, m)
		}
	}
	if len(result.Output) == 0 && result.Action != nil && !result.Dispatch.Executed {
		result.Output = append(result.Output, "Nothing happens.")
	}
	g.LastEvents = result.Dispatch.Events

	// 7. Increment turn count.
	g.Turns++
	return result
}

func (g *Game) dispatch(ctx context.Context, action types.Action, restore func(), result *Result) {
	res, err := g.Engine.Dispatch(ctx, g.World, g.Vars, action)
	result.Dispatch = res
	switch {
	case err != nil:
		// The whole turn is undone, built-in effects included.
		restore()
		result.Err = err
		g.log.Error("dispatch failed", zap.String("action", action.Name), zap.Error(err))
		g.World.Send(g.Player, "Something went wrong; nothing happens.")
	case res.Blocked:
		restore()
		if res.Reason != "" {
			g.World.Send(g.Player, res.Reason)
		}
	default:
		for _, id := range g.consumed {
			if g.World.Exists(id) {
				if err := g.World.Delete(id); err != nil {
					g.log.Warn("removing consumed item", zap.String("entity", string(id)), zap.Error(err))
				}
			}
		}
	}
}

func (g *Game) actFailed(ctx context.Context, input string, cause error, result *Result) {
	res, err := g.Engine.DispatchActFailed(ctx, g.World, g.Vars, g.Player, strings.TrimSpace(input))
	result.Dispatch = res
	if err != nil {
		result.Err = err
		g.log.Error("act_failed dispatch failed", zap.Error(err))
	}
	if res.Executed || res.Reason != "" {
		return
	}
	var unknown unknownVerbError
	if errors.As(cause, &unknown) {
		g.World.Send(g.Player, "I don't understand that.")
		return
	}
	g.World.Send(g.Player, sentence(cause.Error()))
}

// refusal is a built-in verb's answer when the action cannot happen.
type refusal string

func (r refusal) Error() string { return string(r) }

func refusef(format string, args ...any) error {
	return refusal(sentence(fmt.Sprintf(format, args...)))
}

type unknownVerbError string

func (e unknownVerbError) Error() string { return fmt.Sprintf("unknown verb %q", string(e)) }

// sentence capitalizes s and ends it with a full stop when it has none.
func sentence(s string) string {
	s = capitalize(s)
	if s != "" && !strings.ContainsAny(s[len(s)-1:], ".!?") {
		s += "."
	}
	return s
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
