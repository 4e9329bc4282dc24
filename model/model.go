// Package model gives characters a generative voice for dialogue no
// callback answers. A Character keeps a short transcript of what it has
// observed and asks a Generator for each reply.
package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/engine/dialogue"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// Roles in a transcript.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one transcript entry.
type Turn struct {
	Role string
	Text string
}

// Generator produces the next model turn for a system prompt and transcript.
type Generator interface {
	Generate(ctx context.Context, system string, history []Turn) (string, error)
}

// Option configures a Character.
type Option func(*Character)

// WithMaxTurns bounds the transcript. Older turns are dropped first.
func WithMaxTurns(n int) Option {
	return func(c *Character) { c.maxTurns = n }
}

// WithTimeout bounds each Generate call.
func WithTimeout(d time.Duration) Option {
	return func(c *Character) { c.timeout = d }
}

// WithLogger sets the character's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Character) { c.log = l }
}

// Character implements dialogue.Model over a Generator.
type Character struct {
	gen      Generator
	maxTurns int
	timeout  time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	system  string
	history []Turn
	pending bool
}

var _ dialogue.Model = (*Character)(nil)

// NewCharacter creates a character model.
func NewCharacter(gen Generator, opts ...Option) *Character {
	c := &Character{gen: gen, maxTurns: 20, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe records what the character just witnessed.
func (c *Character) Observe(_ context.Context, obs dialogue.Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.system = systemPrompt(obs)
	line := describe(obs)
	if n := len(c.history); n > 0 && c.history[n-1].Role == RoleUser {
		c.history[n-1].Text += "\n" + line
	} else {
		c.history = append(c.history, Turn{Role: RoleUser, Text: line})
	}
	c.pending = true
	c.trim()
}

// Reply asks the generator to answer the observations since the last
// reply. With nothing new observed it stays silent.
func (c *Character) Reply(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return "", nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	history := append([]Turn(nil), c.history...)
	start := time.Now()
	reply, err := c.gen.Generate(ctx, c.system, history)
	if err != nil {
		c.log.Warn("model reply failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", fmt.Errorf("generating reply: %w", err)
	}
	c.pending = false
	reply = strings.TrimSpace(reply)
	if reply != "" {
		c.history = append(c.history, Turn{Role: RoleModel, Text: reply})
		c.trim()
	}
	c.log.Debug("model replied", zap.Int("turns", len(c.history)), zap.Duration("elapsed", time.Since(start)))
	return reply, nil
}

// History returns a copy of the transcript.
func (c *Character) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.history...)
}

// trim keeps the last maxTurns turns, starting on a user turn.
func (c *Character) trim() {
	if c.maxTurns <= 0 || len(c.history) <= c.maxTurns {
		return
	}
	h := c.history[len(c.history)-c.maxTurns:]
	for len(h) > 0 && h[0].Role != RoleUser {
		h = h[1:]
	}
	c.history = append([]Turn(nil), h...)
}

func systemPrompt(obs dialogue.Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a character in a text adventure.", obs.ListenerName)
	if p := strings.TrimSpace(obs.Persona); p != "" {
		b.WriteString(" " + p)
	}
	if obs.Room != "" {
		fmt.Fprintf(&b, "\nYou are in %s.", obs.Room)
	}
	b.WriteString("\nStay in character. Answer in one or two short sentences of plain speech," +
		" without quotation marks, narration or stage directions." +
		" If the words were not meant for you, reply with nothing.")
	return b.String()
}

func describe(obs dialogue.Observation) string {
	switch obs.Speech {
	case dialogue.Tell:
		return fmt.Sprintf("%s says to you, %q", obs.SpeakerName, obs.Text)
	case dialogue.Shout:
		return fmt.Sprintf("%s shouts, %q", obs.SpeakerName, obs.Text)
	case dialogue.ActFailed:
		return fmt.Sprintf("%s tries to %q, but nothing comes of it.", obs.SpeakerName, obs.Text)
	default:
		return fmt.Sprintf("%s says, %q", obs.SpeakerName, obs.Text)
	}
}

// Attach gives every character with a persona, other than the player, its
// own Character over gen. It returns the ids it attached.
func Attach(e *engine.Engine, w *world.Graph, player types.EntityID, gen Generator, opts ...Option) []types.EntityID {
	var attached []types.EntityID
	for _, id := range w.Entities() {
		if id == player || !w.HasClass(id, world.ClassAgent) {
			continue
		}
		if p, _ := world.PropOr(w, id, "persona", "").(string); p == "" {
			continue
		}
		e.AttachModel(id, NewCharacter(gen, opts...))
		attached = append(attached, id)
	}
	return attached
}
