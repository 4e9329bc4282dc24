// Package engine owns the callback registry and runs one transactional
// resolution pass per dispatched action.
package engine

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nathoo/rulecore/engine/dialogue"
	"github.com/nathoo/rulecore/engine/events"
	"github.com/nathoo/rulecore/engine/triggers"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// ConfigError reports a malformed callback.
type ConfigError = triggers.ConfigError

// ActFailed is the verb dispatched when the player's input could not be
// turned into an action.
const ActFailed = "act_failed"

// Engine holds registered callbacks and attached dialogue models. It is not
// safe for concurrent use; callers serialize dispatches.
type Engine struct {
	resolver triggers.Resolver
	models   map[types.EntityID]dialogue.Model
	log      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithThresholds overrides the dialogue match thresholds.
func WithThresholds(t dialogue.Thresholds) Option {
	return func(e *Engine) { e.resolver.Thresholds = t }
}

// WithVocabulary adds verbs to the stock vocabulary.
func WithVocabulary(v triggers.Vocabulary) Option {
	return func(e *Engine) { e.resolver.Vocabulary.Merge(v) }
}

// New creates an engine with the stock vocabulary and thresholds.
func New(opts ...Option) *Engine {
	e := &Engine{
		resolver: triggers.Resolver{
			Registry:   triggers.NewRegistry(),
			Vocabulary: triggers.DefaultVocabulary(),
			Thresholds: dialogue.DefaultThresholds(),
		},
		models: map[types.EntityID]dialogue.Model{},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver.Logger = e.log
	e.resolver.Models = e.model
	return e
}

// RegisterCallback validates and adds a callback. Callbacks are evaluated
// in registration order.
func (e *Engine) RegisterCallback(cb triggers.Callback) error {
	if err := e.resolver.Registry.Add(cb, e.resolver.Vocabulary); err != nil {
		e.log.Error("rejected callback", zap.String("callback", cb.Name), zap.Error(err))
		return err
	}
	return nil
}

// AttachModel gives a character a generative fallback for unmatched
// dialogue. A nil model detaches.
func (e *Engine) AttachModel(id types.EntityID, m dialogue.Model) {
	if m == nil {
		delete(e.models, id)
		return
	}
	e.models[id] = m
}

// Callbacks returns registered callback names in evaluation order.
func (e *Engine) Callbacks() []string { return e.resolver.Registry.Names() }

// Callback returns a registered callback by name.
func (e *Engine) Callback(name string) (triggers.Callback, bool) {
	return e.resolver.Registry.Callback(name)
}

// Disabled returns why a callback was disabled at dispatch time, or nil.
func (e *Engine) Disabled(name string) error { return e.resolver.Registry.Disabled(name) }

// Vocabulary returns the verbs the engine can resolve.
func (e *Engine) Vocabulary() triggers.Vocabulary { return e.resolver.Vocabulary }

// Dispatch resolves one executed action. On error vars are restored to
// their state before the call, and so is store when it implements
// world.Checkpointer; a store without it keeps whatever effects ran before
// the failure. A constraint failure text is sent to the actor.
func (e *Engine) Dispatch(ctx context.Context, store world.Store, vars types.Variables, action types.Action) (types.DispatchResult, error) {
	log := e.log.With(zap.String("dispatch", uuid.NewString()), zap.String("action", action.Name),
		zap.String("actor", string(action.Actor)))

	var restore func()
	if cp, ok := store.(world.Checkpointer); ok {
		restore = cp.Checkpoint()
	}
	saved := maps.Clone(vars)

	out, err := e.resolver.Resolve(ctx, store, vars, action)
	if err != nil {
		if restore != nil {
			restore()
		}
		clear(vars)
		maps.Copy(vars, saved)
		log.Debug("dispatch aborted", zap.Error(err))
		return types.DispatchResult{Callback: out.Callback, Events: out.Events},
			fmt.Errorf("dispatching %s: %w", action.Name, err)
	}

	res := types.DispatchResult{
		Executed: out.State == triggers.Executed,
		Callback: out.Callback,
		Blocked:  out.State == triggers.Suppressed,
		Events:   out.Events,
	}
	if out.State == triggers.Failed || out.State == triggers.Suppressed {
		res.Reason = out.Reason
		if res.Reason != "" && store.Exists(action.Actor) {
			store.Send(action.Actor, res.Reason)
			res.Events = append(res.Events, events.Message(action.Actor, res.Reason))
		}
	}
	log.Debug("dispatched", zap.Stringer("state", out.State), zap.String("callback", out.Callback),
		zap.String("branch", out.Branch))
	return res, nil
}

// DispatchActFailed routes unparseable player input through the act_failed
// trigger so authors can answer it like speech.
func (e *Engine) DispatchActFailed(ctx context.Context, store world.Store, vars types.Variables, actor types.EntityID, text string) (types.DispatchResult, error) {
	return e.Dispatch(ctx, store, vars, types.Action{Name: ActFailed, Actor: actor, Arguments: []types.Value{text}})
}

func (e *Engine) model(id types.EntityID) dialogue.Model {
	return e.models[id]
}
